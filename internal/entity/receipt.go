package entity

import (
	"time"
)

// ReceiptRef points at one stored receipt image owned by an expense.
type ReceiptRef struct {
	ID          string    `json:"id"`
	ExpenseID   string    `json:"expense_id"`
	StoragePath string    `json:"storage_path"`
	CreatedAt   time.Time `json:"created_at"`
}

// FetchedImage holds the downloaded bytes of one receipt for the duration of a run.
type FetchedImage struct {
	ReceiptID   string `json:"receipt_id"`
	Data        []byte `json:"-"`
	ContentType string `json:"content_type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// AspectRatio returns height over width, or 0 when dimensions are unknown.
func (f *FetchedImage) AspectRatio() float64 {
	if f == nil || f.Width <= 0 || f.Height <= 0 {
		return 0
	}
	return float64(f.Height) / float64(f.Width)
}
