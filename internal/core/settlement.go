package core

import (
	"fmt"

	"plotledger/pkg/domain"
)

// Payout is the amount credited to one seller record's owner.
type Payout struct {
	RecordID uint64 `json:"record_id"`
	Seller   string `json:"seller"`
	Amount   uint64 `json:"amount"`
}

// Settlement summarizes the effects of a settled purchase.
type Settlement struct {
	Record   OwnershipRecord
	Total    uint64
	Residual uint64
	Fee      uint64
	Payouts  []Payout
	Events   []Event
}

// Settle prices a validated plan, credits every seller, retains the residual
// as fees, appends the buyer's record and carves it out of each seller
// record. It must run inside the transaction that produced plan; on error the
// caller discards the transaction so partial credits never commit.
func Settle(tx Transaction, plan PurchasePlan, payment uint64, buyer string, feeBps uint32) (Settlement, error) {
	view := tx.Snapshot()
	var (
		out      Settlement
		runID    uint64
		runTotal uint64
		inRun    bool
	)
	flush := func() error {
		rec, ok := view.FindRecord(runID)
		if !ok {
			return fmt.Errorf("%w: %d", domain.ErrUnknownRecord, runID)
		}
		if err := tx.CreditProceeds(rec.Owner, runTotal); err != nil {
			return err
		}
		out.Payouts = append(out.Payouts, Payout{RecordID: runID, Seller: rec.Owner, Amount: runTotal})
		out.Events = append(out.Events, Event{
			Kind:     domain.EventPlotSectionSold,
			RecordID: runID,
			Amount:   runTotal,
			Buyer:    buyer,
			Seller:   rec.Owner,
		})
		return nil
	}

	for i, p := range plan.Pieces {
		if inRun && p.RecordID != runID {
			if err := flush(); err != nil {
				return Settlement{}, err
			}
			inRun = false
		}
		if !inRun {
			runID, runTotal, inRun = p.RecordID, 0, true
		}
		ppu := view.Price(p.RecordID)
		if ppu == 0 {
			return Settlement{}, fmt.Errorf("%w: record %d (piece %d)", domain.ErrNotForSale, p.RecordID, i)
		}
		amount, err := domain.MulPrice(p.Area, ppu)
		if err != nil {
			return Settlement{}, err
		}
		if runTotal, err = domain.AddAmount(runTotal, amount); err != nil {
			return Settlement{}, err
		}
		if out.Total, err = domain.AddAmount(out.Total, amount); err != nil {
			return Settlement{}, err
		}
	}
	if inRun {
		if err := flush(); err != nil {
			return Settlement{}, err
		}
	}

	if payment < out.Total {
		return Settlement{}, fmt.Errorf("%w: paid %d, price %d", domain.ErrInsufficientPayment, payment, out.Total)
	}
	out.Residual = payment - out.Total
	out.Fee = domain.FeeFor(out.Total, feeBps)
	if out.Residual < out.Fee {
		return Settlement{}, fmt.Errorf("%w: residual %d, fee %d", domain.ErrInsufficientFee, out.Residual, out.Fee)
	}
	if out.Residual > 0 {
		if err := tx.AddFees(out.Residual); err != nil {
			return Settlement{}, err
		}
	}

	rec, err := tx.AppendRecord(OwnershipRecord{Rect: plan.Target, Owner: buyer})
	if err != nil {
		return Settlement{}, err
	}
	for _, seller := range plan.Sellers {
		if err := tx.AppendHole(seller, rec.ID); err != nil {
			return Settlement{}, err
		}
	}
	out.Record = rec
	return out, nil
}
