package core

import (
	"context"
	"fmt"

	"plotledger/pkg/domain"
)

// NewRecordBoundsRule blocks any created record that is empty or leaves the grid.
func NewRecordBoundsRule(width, height uint32) domain.Rule {
	return recordBoundsRule{width: width, height: height}
}

type recordBoundsRule struct {
	width, height uint32
}

func (recordBoundsRule) Name() string { return "record_bounds" }

func (r recordBoundsRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityRecord || change.Action != domain.ActionCreate {
			continue
		}
		rec, ok := change.After.(domain.OwnershipRecord)
		if !ok {
			continue
		}
		if err := rec.Rect.WithinGrid(r.width, r.height); err != nil {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "record_bounds",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("record %d: %v", rec.ID, err),
				Entity:   domain.EntityRecord,
				EntityID: rec.ID,
			})
		}
	}
	return res, nil
}
