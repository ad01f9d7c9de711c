package core

import (
	"fmt"

	"plotledger/pkg/domain"
)

// PriceReceipt reports an applied price update.
type PriceReceipt struct {
	RecordID      uint64 `json:"record_id"`
	PreviousPrice uint64 `json:"previous_price"`
	Price         uint64 `json:"price"`
}

// SetPrice updates the per-unit price of recordID on behalf of caller. Only
// the record's owner may price it; zero withdraws the record from sale.
func SetPrice(tx Transaction, recordID, price uint64, caller string) (PriceReceipt, Event, error) {
	rec, ok := tx.Snapshot().FindRecord(recordID)
	if !ok {
		return PriceReceipt{}, Event{}, fmt.Errorf("%w: %d", domain.ErrUnknownRecord, recordID)
	}
	if caller != rec.Owner {
		return PriceReceipt{}, Event{}, fmt.Errorf("%w: %q does not own record %d", domain.ErrNotOwner, caller, recordID)
	}
	prev, err := tx.SetPrice(recordID, price)
	if err != nil {
		return PriceReceipt{}, Event{}, err
	}
	evt := Event{
		Kind:         domain.EventPriceChanged,
		RecordID:     recordID,
		PricePerUnit: price,
		Seller:       rec.Owner,
		Rect:         rec.Rect,
	}
	return PriceReceipt{RecordID: recordID, PreviousPrice: prev, Price: price}, evt, nil
}

// PriceOf returns the per-unit price of recordID, zero when not for sale or unknown.
func PriceOf(view TransactionView, recordID uint64) uint64 {
	return view.Price(recordID)
}
