package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-workflow/internal/domain/workflow"
)

var testRates = RateTable{
	Base: "INR",
	Rates: map[string]decimal.Decimal{
		"USD": decimal.NewFromInt(83),
		"EUR": decimal.RequireFromString("90.5"),
	},
}

func item(amount, currency string) ExpenseItem {
	return ExpenseItem{
		Category:      CategoryTravel,
		Amount:        decimal.RequireFromString(amount),
		Currency:      currency,
		Date:          time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PaymentMethod: PaymentCard,
	}
}

func TestRecomputeTotal(t *testing.T) {
	r := &ExpenseReport{Items: []ExpenseItem{item("1000", "INR"), item("10", "USD"), item("2", "eur")}}

	if err := r.RecomputeTotal(testRates); err != nil {
		t.Fatalf("RecomputeTotal() error = %v", err)
	}
	want := decimal.RequireFromString("2011")
	if !r.TotalAmount.Equal(want) {
		t.Errorf("TotalAmount = %s, want %s", r.TotalAmount, want)
	}
	if r.Currency != "INR" {
		t.Errorf("Currency = %s, want INR", r.Currency)
	}
}

func TestRecomputeTotal_UnknownCurrency(t *testing.T) {
	r := &ExpenseReport{Items: []ExpenseItem{item("5", "JPY")}, TotalAmount: decimal.NewFromInt(7)}

	err := r.RecomputeTotal(testRates)
	if !errors.Is(err, workflow.ErrValidation) {
		t.Errorf("RecomputeTotal() error = %v, want %v", err, workflow.ErrValidation)
	}
	if !r.TotalAmount.Equal(decimal.NewFromInt(7)) {
		t.Error("total must not change when normalisation fails")
	}
}

func TestExpenseItem_Validate(t *testing.T) {
	valid := item("12.50", "INR")
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*ExpenseItem)
	}{
		{"zero amount", func(i *ExpenseItem) { i.Amount = decimal.Zero }},
		{"negative amount", func(i *ExpenseItem) { i.Amount = decimal.NewFromInt(-1) }},
		{"unknown category", func(i *ExpenseItem) { i.Category = "Snacks" }},
		{"missing currency", func(i *ExpenseItem) { i.Currency = " " }},
		{"missing date", func(i *ExpenseItem) { i.Date = time.Time{} }},
		{"unknown payment method", func(i *ExpenseItem) { i.PaymentMethod = "Barter" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := valid
			tt.mutate(&it)
			if err := it.Validate(); !errors.Is(err, workflow.ErrValidation) {
				t.Errorf("Validate() error = %v, want %v", err, workflow.ErrValidation)
			}
		})
	}
}

func TestExpenseReport_StagesBeforeAndAfterFundType(t *testing.T) {
	r := &ExpenseReport{SubmitterRole: workflow.RoleStudent, Status: workflow.StateSubmitted}

	seq, err := r.Stages()
	if err != nil || len(seq) != 1 || seq[0] != workflow.StageFaculty {
		t.Fatalf("Stages() = %v, %v; want [Faculty]", seq, err)
	}

	r.FundType = workflow.FundProject
	r.Status = workflow.StateSchoolChairApproved
	next, ok := r.NextStage()
	if !ok || next != workflow.StageDeanSRIC {
		t.Errorf("NextStage() = %s, %v; want Dean SRIC", next, ok)
	}

	r.Status = workflow.StateRejected
	if _, ok := r.NextStage(); ok {
		t.Error("terminal reports have no next stage")
	}
}

func TestExpenseReport_FacultySubmissionEntersAtSchoolChair(t *testing.T) {
	r := &ExpenseReport{SubmitterRole: workflow.RoleFaculty, Status: workflow.StateSubmitted}

	next, ok := r.NextStage()
	if !ok || next != workflow.StageSchoolChair {
		t.Errorf("NextStage() = %s, %v; want School Chair", next, ok)
	}
}

func TestExpenseReport_ApprovalHistoryHelpers(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	r := &ExpenseReport{Approvals: []ApprovalRecord{
		NewApprovalRecord(workflow.StageFaculty, workflow.ActionApprove, "fac-1", "", t1),
		NewApprovalRecord(workflow.StageSchoolChair, workflow.ActionSendBack, "chair-1", "missing bill", t2),
	}}

	if !r.HasActed("fac-1") || r.HasActed("someone") {
		t.Error("HasActed() mismatch")
	}
	if last, _ := r.LastActionBy("chair-1"); !last.Equal(t2) {
		t.Errorf("LastActionBy() = %v, want %v", last, t2)
	}
	if *r.Approvals[1].Approved {
		t.Error("sendback records approved=false")
	}

	r.SupersedeApprovals()
	if len(r.ActiveApprovals()) != 0 {
		t.Error("all approvals should be superseded")
	}
}

func TestExpenseReport_CloneIsDeep(t *testing.T) {
	now := time.Now()
	r := &ExpenseReport{
		Items:          []ExpenseItem{item("1", "INR")},
		Approvals:      []ApprovalRecord{NewApprovalRecord(workflow.StageFaculty, workflow.ActionApprove, "f", "", now)},
		SubmissionDate: &now,
	}

	c := r.Clone()
	c.Items[0].Currency = "USD"
	*c.Approvals[0].Approved = false
	c.Approvals[0].Superseded = true

	if r.Items[0].Currency != "INR" || !*r.Approvals[0].Approved || r.Approvals[0].Superseded {
		t.Error("Clone() shares state with the original")
	}
}

func TestSortByCreatedDesc(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	reports := []*ExpenseReport{
		{ID: 3, CreatedAt: base},
		{ID: 1, CreatedAt: base.Add(time.Hour)},
		{ID: 2, CreatedAt: base},
	}

	SortByCreatedDesc(reports)

	got := []int64{reports[0].ID, reports[1].ID, reports[2].ID}
	want := []int64{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestExpenseReport_OwnsReceipt(t *testing.T) {
	r := &ExpenseReport{ID: 7}
	tests := []struct {
		ref  string
		want bool
	}{
		{"reports/7/3f2a.pdf", true},
		{"reports/7/", false},
		{"reports/7/a/b.pdf", false},
		{"reports/7/../8/a.pdf", false},
		{"reports/7/./a.pdf", false},
		{"reports/70/a.pdf", false},
		{"reports/8/a.pdf", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := r.OwnsReceipt(tt.ref); got != tt.want {
			t.Errorf("OwnsReceipt(%q) = %v, want %v", tt.ref, got, tt.want)
		}
	}

	if (&ExpenseReport{}).OwnsReceipt("reports/0/a.pdf") {
		t.Error("unsaved report owns no receipts")
	}
}
