package core

import (
	"context"
	"fmt"

	"plotledger/pkg/domain"
)

// NewHoleIntegrityRule blocks hole links that point backwards in time or at a
// record that does not overlap its owner.
func NewHoleIntegrityRule() domain.Rule {
	return holeIntegrityRule{}
}

type holeIntegrityRule struct{}

func (holeIntegrityRule) Name() string { return "hole_integrity" }

func (holeIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	block := func(link domain.HoleLink, msg string) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "hole_integrity",
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("hole %d of record %d %s", link.HoleID, link.RecordID, msg),
			Entity:   domain.EntityHole,
			EntityID: link.RecordID,
		})
	}
	for _, change := range changes {
		if change.Entity != domain.EntityHole {
			continue
		}
		link, ok := change.After.(domain.HoleLink)
		if !ok {
			continue
		}
		if link.HoleID <= link.RecordID {
			block(link, "is not a later record")
			continue
		}
		owner, okOwner := view.FindRecord(link.RecordID)
		hole, okHole := view.FindRecord(link.HoleID)
		if !okOwner || !okHole {
			block(link, "references a missing record")
			continue
		}
		if !domain.Overlaps(owner.Rect, hole.Rect) {
			block(link, "does not overlap its owner")
		}
	}
	return res, nil
}
