package entity

import (
	"time"
)

// ExpenseHeader is the read-only expense metadata printed above its receipts.
type ExpenseHeader struct {
	ID      string     `json:"id"`
	JobNo   string     `json:"job_no"`
	Date    *time.Time `json:"date,omitempty"`
	Details string     `json:"details"`
}

// CompilationRequest is one invocation of the receipt compilation pipeline.
type CompilationRequest struct {
	Expenses    []ExpenseHeader
	PeriodLabel string
	SubjectName string
	SubjectID   string
	AuthToken   string
}

// ExpenseIDs returns the expense ids in input order.
func (r CompilationRequest) ExpenseIDs() []string {
	ids := make([]string, 0, len(r.Expenses))
	for _, e := range r.Expenses {
		ids = append(ids, e.ID)
	}
	return ids
}

// RetrievalHandle is the time-limited download handle for a persisted document.
type RetrievalHandle struct {
	DownloadURL string    `json:"downloadUrl"`
	Filename    string    `json:"filename"`
	ManifestURL string    `json:"manifestUrl,omitempty"`
	ObjectKey   string    `json:"-"`
	ExpiresAt   time.Time `json:"-"`
}
