// Package request decodes and validates compile requests arriving at the
// transport boundary.
package request

import (
	"encoding/json"
	"strings"

	"github.com/joseph-ayodele/receipts-compiler/internal/common"
	"github.com/joseph-ayodele/receipts-compiler/internal/entity"
	"github.com/joseph-ayodele/receipts-compiler/internal/utils"
)

type Expense struct {
	ID      string  `json:"id"`
	JobNo   *string `json:"job_no,omitempty"`
	Date    *string `json:"date,omitempty"`
	Details *string `json:"details,omitempty"`
}

// CompileRequest is the wire form of one compilation request.
type CompileRequest struct {
	Expenses    []Expense `json:"expenses"`
	PeriodLabel string    `json:"periodLabel"`
	SubjectName *string   `json:"subjectName,omitempty"`
	SubjectID   *string   `json:"subjectId,omitempty"`
	AuthToken   string    `json:"authToken,omitempty"`
}

// Decode validates data against the request schema and decodes it.
// Failures are InvalidRequest.
func Decode(data []byte) (*CompileRequest, error) {
	if err := validateJSON(data); err != nil {
		return nil, common.NewKindError(common.KindInvalidRequest, "request body rejected", err)
	}
	var r CompileRequest
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, common.NewKindError(common.KindInvalidRequest, "request body rejected", err)
	}
	return &r, nil
}

// ToEntity converts the wire request. token, when non-empty, overrides the
// token carried in the body.
func (r *CompileRequest) ToEntity(token string) (entity.CompilationRequest, error) {
	v := common.NewValidator()
	out := entity.CompilationRequest{
		PeriodLabel: strings.TrimSpace(r.PeriodLabel),
		SubjectName: utils.StrOrEmpty(r.SubjectName),
		SubjectID:   utils.StrOrEmpty(r.SubjectID),
		AuthToken:   r.AuthToken,
		Expenses:    make([]entity.ExpenseHeader, 0, len(r.Expenses)),
	}
	if token != "" {
		out.AuthToken = token
	}
	v.Check(len(r.Expenses) > 0, "expenses", len(r.Expenses), "at least one expense is required").
		Field("periodLabel", out.PeriodLabel, common.MaxLength(maxLabelLen)).
		Field("subjectName", out.SubjectName, common.MaxLength(maxNameLen)).
		Field("subjectId", out.SubjectID, common.MaxLength(maxIDLen))

	for _, e := range r.Expenses {
		h := entity.ExpenseHeader{
			ID:      strings.TrimSpace(e.ID),
			JobNo:   utils.StrOrEmpty(e.JobNo),
			Details: utils.StrOrEmpty(e.Details),
		}
		v.Field("expenses.id", h.ID, common.Required, common.MaxLength(maxIDLen)).
			Field("expenses.job_no", h.JobNo, common.MaxLength(maxJobNoLen)).
			Field("expenses.details", h.Details, common.MaxLength(maxDetailsLen))
		if d := utils.StrOrEmpty(e.Date); d != "" {
			t, err := utils.ParseDate(d)
			v.Check(err == nil, "expenses.date", d, "must be YYYY-MM-DD or RFC 3339")
			if err == nil {
				h.Date = &t
			}
		}
		out.Expenses = append(out.Expenses, h)
	}
	if err := v.Err(); err != nil {
		return entity.CompilationRequest{}, err
	}
	return out, nil
}
