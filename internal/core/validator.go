package core

import (
	"fmt"

	"plotledger/pkg/domain"
)

// PlannedPiece is a validated tiling piece with its precomputed area.
type PlannedPiece struct {
	Piece
	Area uint64
}

// PurchasePlan is the outcome of a successful validation. It is only valid
// against the view it was produced from and must be settled in the same
// transaction.
type PurchasePlan struct {
	Target  Rect
	Pieces  []PlannedPiece
	Sellers []uint64
}

// Validate proves that tiling exactly covers target and that every piece is
// sellable by its declared record. Checks run in a fixed order and stop at the
// first failure, so the same input always fails with the same error.
func Validate(view TransactionView, params Params, target Rect, tiling []Piece) (PurchasePlan, error) {
	if err := target.WithinGrid(params.GridWidth, params.GridHeight); err != nil {
		return PurchasePlan{}, err
	}
	if target.Area() >= params.MaxPurchaseArea {
		return PurchasePlan{}, fmt.Errorf("%w: area %d, maximum %d", domain.ErrPurchaseTooLarge, target.Area(), params.MaxPurchaseArea)
	}
	if len(tiling) == 0 {
		return PurchasePlan{}, domain.ErrEmptyTiling
	}

	for i, p := range tiling {
		if !domain.Contains(target, p.Rect) {
			return PurchasePlan{}, fmt.Errorf("%w: piece %d %s", domain.ErrPieceOutsideTarget, i, p.Rect)
		}
	}
	// Each piece is at most the target's area, so the running check below
	// stops the sum before it can wrap.
	plan := PurchasePlan{Target: target, Pieces: make([]PlannedPiece, 0, len(tiling))}
	var covered uint64
	for _, p := range tiling {
		if p.Rect.Area() > target.Area()-covered {
			return PurchasePlan{}, fmt.Errorf("%w: pieces cover more than %d", domain.ErrIncompleteTiling, target.Area())
		}
		covered += p.Rect.Area()
		plan.Pieces = append(plan.Pieces, PlannedPiece{Piece: p, Area: p.Rect.Area()})
	}
	if covered != target.Area() {
		return PurchasePlan{}, fmt.Errorf("%w: pieces cover %d of %d", domain.ErrIncompleteTiling, covered, target.Area())
	}

	for i := range tiling {
		for j := i + 1; j < len(tiling); j++ {
			if domain.Overlaps(tiling[i].Rect, tiling[j].Rect) {
				return PurchasePlan{}, fmt.Errorf("%w: pieces %d and %d", domain.ErrOverlappingPieces, i, j)
			}
		}
	}

	seen := make(map[uint64]bool, len(tiling))
	for i, p := range tiling {
		if i > 0 && tiling[i-1].RecordID == p.RecordID {
			continue
		}
		if seen[p.RecordID] {
			return PurchasePlan{}, fmt.Errorf("%w: record %d reappears at piece %d", domain.ErrNonContiguousOwnerGrouping, p.RecordID, i)
		}
		seen[p.RecordID] = true
		plan.Sellers = append(plan.Sellers, p.RecordID)
	}

	for i, p := range tiling {
		rec, ok := view.FindRecord(p.RecordID)
		if !ok {
			return PurchasePlan{}, fmt.Errorf("%w: piece %d claims record %d", domain.ErrUnknownRecord, i, p.RecordID)
		}
		owned, err := domain.Intersection(target, rec.Rect)
		if err != nil {
			return PurchasePlan{}, fmt.Errorf("%w: piece %d, record %d does not overlap target", domain.ErrOwnershipMismatch, i, p.RecordID)
		}
		if !domain.Contains(owned, p.Rect) {
			return PurchasePlan{}, fmt.Errorf("%w: piece %d %s outside record %d %s", domain.ErrOwnershipMismatch, i, p.Rect, p.RecordID, rec.Rect)
		}
	}

	for i, p := range tiling {
		for _, holeID := range view.Holes(p.RecordID) {
			hole, ok := view.FindRecord(holeID)
			if !ok {
				return PurchasePlan{}, fmt.Errorf("%w: hole %d of record %d", domain.ErrUnknownRecord, holeID, p.RecordID)
			}
			if domain.Overlaps(p.Rect, hole.Rect) {
				return PurchasePlan{}, fmt.Errorf("%w: piece %d %s overlaps record %d %s", domain.ErrHoleConflict, i, p.Rect, holeID, hole.Rect)
			}
		}
	}
	return plan, nil
}
