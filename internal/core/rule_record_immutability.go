package core

import (
	"context"
	"fmt"

	"plotledger/pkg/domain"
)

// NewRecordImmutabilityRule blocks any change that updates an existing record.
func NewRecordImmutabilityRule() domain.Rule {
	return recordImmutabilityRule{}
}

type recordImmutabilityRule struct{}

func (recordImmutabilityRule) Name() string { return "record_immutability" }

func (recordImmutabilityRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityRecord || change.Action == domain.ActionCreate {
			continue
		}
		var id uint64
		if rec, ok := change.Before.(domain.OwnershipRecord); ok {
			id = rec.ID
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "record_immutability",
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("record %d: %s not permitted", id, change.Action),
			Entity:   domain.EntityRecord,
			EntityID: id,
		})
	}
	return res, nil
}
