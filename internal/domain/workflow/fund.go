package workflow

import "fmt"

// FundType selects the approval sequence a report has to pass through
type FundType string

const (
	FundInstitute               FundType = "Institute Fund"
	FundDepartment              FundType = "Department Fund"
	FundProject                 FundType = "Project Fund"
	FundProfessionalDevelopment FundType = "Professional Development Fund"
)

var fundStages = map[FundType][]Stage{
	FundInstitute:               {StageFaculty, StageSchoolChair, StageDirector, StageAudit, StageFinance},
	FundProject:                 {StageFaculty, StageSchoolChair, StageDeanSRIC, StageAudit, StageFinance},
	FundDepartment:              {StageFaculty, StageSchoolChair, StageAudit, StageFinance},
	FundProfessionalDevelopment: {StageFaculty, StageSchoolChair, StageAudit, StageFinance},
}

// IsValid returns true if the fund type has a known stage sequence
func (f FundType) IsValid() bool {
	_, ok := fundStages[f]
	return ok
}

// RequiresProject reports whether approvals under this fund must reference a project
func (f FundType) RequiresProject() bool {
	return f == FundProject
}

// String returns the string representation of the fund type
func (f FundType) String() string {
	return string(f)
}

// ResolveStages returns the ordered approval stages for a fund type
func ResolveStages(fundType FundType) ([]Stage, error) {
	seq, ok := fundStages[fundType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFundType, fundType)
	}
	return append([]Stage(nil), seq...), nil
}

// ResolveFor returns the stages a specific report walks. Faculty submitters skip the
// Faculty stage.
func ResolveFor(fundType FundType, submitterRole Role) ([]Stage, error) {
	seq, err := ResolveStages(fundType)
	if err != nil {
		return nil, err
	}
	if submitterRole != RoleFaculty {
		return seq, nil
	}
	out := seq[:0]
	for _, s := range seq {
		if s != StageFaculty {
			out = append(out, s)
		}
	}
	return out, nil
}

// EntryStage is the first stage of every sequence for the submitter's role. It is the only
// stage known before a fund type is assigned, and the stage whose approval assigns it.
func EntryStage(submitterRole Role) Stage {
	if submitterRole == RoleFaculty {
		return StageSchoolChair
	}
	return StageFaculty
}

// NextStage returns the stage that decides a report in the given state. ok is false when
// no stage is pending (Draft, terminal, or the sequence is exhausted).
func NextStage(seq []Stage, current State) (Stage, bool) {
	if current == StateSubmitted {
		if len(seq) == 0 {
			return "", false
		}
		return seq[0], true
	}
	for i, s := range seq {
		if s.ApprovedState() == current && i+1 < len(seq) {
			return seq[i+1], true
		}
	}
	return "", false
}

// FundTypes returns every fund type with a stage sequence, in declaration order
func FundTypes() []FundType {
	return []FundType{FundInstitute, FundDepartment, FundProject, FundProfessionalDevelopment}
}

// PendingStates returns every status in which stage is the next to decide, across all fund
// types and submitter roles
func PendingStates(stage Stage) []State {
	seen := make(map[State]bool)
	var out []State
	add := func(s State) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, submitter := range []Role{RoleStudent, RoleFaculty} {
		if EntryStage(submitter) == stage {
			add(StateSubmitted)
		}
		for _, fund := range FundTypes() {
			seq, _ := ResolveFor(fund, submitter)
			for i := 1; i < len(seq); i++ {
				if seq[i] == stage {
					add(seq[i-1].ApprovedState())
				}
			}
		}
	}
	return out
}
