package workflow

import (
	"errors"
	"testing"
)

func TestResolveStages(t *testing.T) {
	tests := []struct {
		fund        FundType
		wantLen     int
		hasDeanSRIC bool
	}{
		{FundInstitute, 5, false},
		{FundProject, 5, true},
		{FundDepartment, 4, false},
		{FundProfessionalDevelopment, 4, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.fund), func(t *testing.T) {
			seq, err := ResolveStages(tt.fund)
			if err != nil {
				t.Fatalf("ResolveStages() error = %v", err)
			}
			if len(seq) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(seq), tt.wantLen)
			}
			if seq[0] != StageFaculty {
				t.Errorf("first stage = %s, want Faculty", seq[0])
			}
			if seq[len(seq)-2] != StageAudit || seq[len(seq)-1] != StageFinance {
				t.Errorf("sequence %v does not end in Audit, Finance", seq)
			}
			found := false
			for _, s := range seq {
				if s == StageDeanSRIC {
					found = true
				}
			}
			if found != tt.hasDeanSRIC {
				t.Errorf("Dean SRIC present = %v, want %v", found, tt.hasDeanSRIC)
			}
		})
	}
}

func TestResolveStages_InstituteOrder(t *testing.T) {
	seq, _ := ResolveStages(FundInstitute)
	want := []Stage{StageFaculty, StageSchoolChair, StageDirector, StageAudit, StageFinance}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("stage %d = %s, want %s", i, seq[i], want[i])
		}
	}
}

func TestResolveStages_Unknown(t *testing.T) {
	for _, f := range []FundType{"", "Alumni Fund"} {
		if _, err := ResolveStages(f); !errors.Is(err, ErrInvalidFundType) {
			t.Errorf("ResolveStages(%q) error = %v, want %v", f, err, ErrInvalidFundType)
		}
	}
}

func TestResolveStages_ReturnsCopy(t *testing.T) {
	seq, _ := ResolveStages(FundDepartment)
	seq[0] = StageFinance

	again, _ := ResolveStages(FundDepartment)
	if again[0] != StageFaculty {
		t.Error("mutating a resolved sequence changed the static table")
	}
}

func TestResolveFor_FacultySkipsFacultyStage(t *testing.T) {
	seq, err := ResolveFor(FundProject, RoleFaculty)
	if err != nil {
		t.Fatalf("ResolveFor() error = %v", err)
	}
	want := []Stage{StageSchoolChair, StageDeanSRIC, StageAudit, StageFinance}
	if len(seq) != len(want) {
		t.Fatalf("ResolveFor() = %v, want %v", seq, want)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Errorf("stage %d = %s, want %s", i, seq[i], want[i])
		}
	}

	student, _ := ResolveFor(FundProject, RoleStudent)
	if student[0] != StageFaculty {
		t.Errorf("student sequence should start at Faculty, got %v", student)
	}
}

func TestEntryStage(t *testing.T) {
	if EntryStage(RoleStudent) != StageFaculty {
		t.Error("students enter at Faculty")
	}
	if EntryStage(RoleFaculty) != StageSchoolChair {
		t.Error("faculty enter at School Chair")
	}
	for fund := range fundStages {
		seq, _ := ResolveFor(fund, RoleFaculty)
		if seq[0] != EntryStage(RoleFaculty) {
			t.Errorf("%s: faculty sequence starts at %s", fund, seq[0])
		}
	}
}

func TestNextStage(t *testing.T) {
	seq, _ := ResolveStages(FundInstitute)

	tests := []struct {
		current State
		want    Stage
		ok      bool
	}{
		{StateSubmitted, StageFaculty, true},
		{StateFacultyApproved, StageSchoolChair, true},
		{StateSchoolChairApproved, StageDirector, true},
		{StateDirectorApproved, StageAudit, true},
		{StateAuditApproved, StageFinance, true},
		{StateFinanceApproved, "", false},
		{StateDeanSRICApproved, "", false},
		{StateDraft, "", false},
	}

	for _, tt := range tests {
		got, ok := NextStage(seq, tt.current)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NextStage(%s) = %s, %v; want %s, %v", tt.current, got, ok, tt.want, tt.ok)
		}
	}
}

func TestStageOwnership(t *testing.T) {
	for stage := range stages {
		owner := stage.Owner()
		back, ok := StageForRole(owner)
		if !ok || back != stage {
			t.Errorf("StageForRole(%s) = %s, %v; want %s", owner, back, ok, stage)
		}
	}
	if _, ok := StageForRole(RoleStudent); ok {
		t.Error("students own no stage")
	}
	if _, ok := StageForRole(RoleAdmin); ok {
		t.Error("admins own no stage")
	}
}

func TestPendingStates(t *testing.T) {
	tests := []struct {
		stage Stage
		want  []State
	}{
		{StageFaculty, []State{StateSubmitted}},
		{StageSchoolChair, []State{StateSubmitted, StateFacultyApproved}},
		{StageDirector, []State{StateSchoolChairApproved}},
		{StageDeanSRIC, []State{StateSchoolChairApproved}},
		{StageAudit, []State{StateSchoolChairApproved, StateDirectorApproved, StateDeanSRICApproved}},
		{StageFinance, []State{StateAuditApproved}},
	}

	for _, tt := range tests {
		got := PendingStates(tt.stage)
		if len(got) != len(tt.want) {
			t.Errorf("PendingStates(%s) = %v; want %v", tt.stage, got, tt.want)
			continue
		}
		set := make(map[State]bool, len(got))
		for _, s := range got {
			set[s] = true
		}
		for _, s := range tt.want {
			if !set[s] {
				t.Errorf("PendingStates(%s) = %v; missing %s", tt.stage, got, s)
			}
		}
	}
}
