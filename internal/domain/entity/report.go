package entity

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-workflow/internal/domain/workflow"
)

// ReportType classifies the purpose of an expense report
type ReportType string

const (
	ReportTypeTeaching       ReportType = "Teaching"
	ReportTypeResearch       ReportType = "Research"
	ReportTypeAdministrative ReportType = "Administrative"
	ReportTypeOther          ReportType = "Other"
)

// IsValid returns true if the report type is known
func (t ReportType) IsValid() bool {
	switch t {
	case ReportTypeTeaching, ReportTypeResearch, ReportTypeAdministrative, ReportTypeOther:
		return true
	default:
		return false
	}
}

// ExpenseReport is a reimbursement claim and its approval trail
type ExpenseReport struct {
	ID             int64             `json:"id"`
	SubmitterID    string            `json:"submitterId"`
	SubmitterRole  workflow.Role     `json:"submitterRole"`
	SubmitterName  string            `json:"submitterName,omitempty"`
	SubmitterEmail string            `json:"submitterEmail,omitempty"`
	FacultyID      string            `json:"facultyId,omitempty"`
	Title          string            `json:"title"`
	Description    string            `json:"description,omitempty"`
	ReportType     ReportType        `json:"reportType"`
	FundType       workflow.FundType `json:"fundType,omitempty"`
	ProjectID      string            `json:"projectId,omitempty"`
	Items          []ExpenseItem     `json:"items"`
	TotalAmount    decimal.Decimal   `json:"totalAmount"`
	Currency       string            `json:"currency"`
	Status         workflow.State    `json:"status"`
	Approvals      []ApprovalRecord  `json:"approvals"`
	SubmissionDate *time.Time        `json:"submissionDate,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	Version        int64             `json:"version"`
}

// ReceiptPrefix is the storage directory holding a report's receipts
func ReceiptPrefix(reportID int64) string {
	return fmt.Sprintf("reports/%d/", reportID)
}

// OwnsReceipt reports whether ref names a single file directly under the report's receipt
// directory
func (r *ExpenseReport) OwnsReceipt(ref string) bool {
	if r.ID == 0 || path.Clean(ref) != ref {
		return false
	}
	name, ok := strings.CutPrefix(ref, ReceiptPrefix(r.ID))
	return ok && name != "" && !strings.Contains(name, "/")
}

// IsDraft reports whether the report content may still be edited
func (r *ExpenseReport) IsDraft() bool {
	return r.Status == workflow.StateDraft
}

// Stages returns the approval sequence known for the report. Until the entry stage assigns
// a fund type only the entry stage is known.
func (r *ExpenseReport) Stages() ([]workflow.Stage, error) {
	if r.FundType == "" {
		return []workflow.Stage{workflow.EntryStage(r.SubmitterRole)}, nil
	}
	return workflow.ResolveFor(r.FundType, r.SubmitterRole)
}

// NextStage returns the stage that has to decide the report next
func (r *ExpenseReport) NextStage() (workflow.Stage, bool) {
	if !r.Status.IsActionable() {
		return "", false
	}
	seq, err := r.Stages()
	if err != nil {
		return "", false
	}
	return workflow.NextStage(seq, r.Status)
}

// ActiveApprovals returns the approval records of the current pass through the chain
func (r *ExpenseReport) ActiveApprovals() []ApprovalRecord {
	var out []ApprovalRecord
	for _, a := range r.Approvals {
		if !a.Superseded {
			out = append(out, a)
		}
	}
	return out
}

// SupersedeApprovals marks every recorded decision as belonging to an earlier pass
func (r *ExpenseReport) SupersedeApprovals() {
	for i := range r.Approvals {
		r.Approvals[i].Superseded = true
	}
}

// LastActionBy returns when the actor last decided on this report
func (r *ExpenseReport) LastActionBy(actorID string) (time.Time, bool) {
	var last time.Time
	found := false
	for _, a := range r.Approvals {
		if a.ApprovedByID == actorID && (!found || a.Date.After(last)) {
			last = a.Date
			found = true
		}
	}
	return last, found
}

// HasActed reports whether the actor appears anywhere in the approval history
func (r *ExpenseReport) HasActed(actorID string) bool {
	_, ok := r.LastActionBy(actorID)
	return ok
}

// RecomputeTotal sums item amounts normalised to the rate table's base currency
func (r *ExpenseReport) RecomputeTotal(rates RateTable) error {
	total := decimal.Zero
	for _, item := range r.Items {
		amount, err := rates.Normalize(item.Amount, item.Currency)
		if err != nil {
			return err
		}
		total = total.Add(amount)
	}
	r.TotalAmount = total.Round(2)
	r.Currency = rates.Base
	return nil
}

// Clone returns a deep copy so callers can mutate without touching the original
func (r *ExpenseReport) Clone() *ExpenseReport {
	c := *r
	c.Items = append([]ExpenseItem(nil), r.Items...)
	c.Approvals = append([]ApprovalRecord(nil), r.Approvals...)
	for i, a := range c.Approvals {
		if a.Approved != nil {
			v := *a.Approved
			c.Approvals[i].Approved = &v
		}
	}
	if r.SubmissionDate != nil {
		t := *r.SubmissionDate
		c.SubmissionDate = &t
	}
	return &c
}

// SortByCreatedDesc orders reports newest first, ties broken by id ascending
func SortByCreatedDesc(reports []*ExpenseReport) {
	sort.SliceStable(reports, func(i, j int) bool {
		if !reports[i].CreatedAt.Equal(reports[j].CreatedAt) {
			return reports[i].CreatedAt.After(reports[j].CreatedAt)
		}
		return reports[i].ID < reports[j].ID
	})
}
