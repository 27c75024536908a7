package workflow

// Role is the institutional role an authenticated user acts under
type Role string

const (
	RoleStudent     Role = "Student"
	RoleFaculty     Role = "Faculty"
	RoleSchoolChair Role = "School Chair"
	RoleDeanSRIC    Role = "Dean SRIC"
	RoleDirector    Role = "Director"
	RoleAudit       Role = "Audit"
	RoleFinance     Role = "Finance"
	RoleAdmin       Role = "Admin"
)

var validRoles = map[Role]bool{
	RoleStudent:     true,
	RoleFaculty:     true,
	RoleSchoolChair: true,
	RoleDeanSRIC:    true,
	RoleDirector:    true,
	RoleAudit:       true,
	RoleFinance:     true,
	RoleAdmin:       true,
}

// IsValid returns true if the role is known
func (r Role) IsValid() bool {
	return validRoles[r]
}

// CanSubmit reports whether users with this role may file expense reports
func (r Role) CanSubmit() bool {
	return r == RoleStudent || r == RoleFaculty
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// Stage is one named step of an approval sequence
type Stage string

const (
	StageFaculty     Stage = "Faculty"
	StageSchoolChair Stage = "School Chair"
	StageDeanSRIC    Stage = "Dean SRIC"
	StageDirector    Stage = "Director"
	StageAudit       Stage = "Audit"
	StageFinance     Stage = "Finance"
)

type stageInfo struct {
	owner    Role
	approved State
}

var stages = map[Stage]stageInfo{
	StageFaculty:     {owner: RoleFaculty, approved: StateFacultyApproved},
	StageSchoolChair: {owner: RoleSchoolChair, approved: StateSchoolChairApproved},
	StageDeanSRIC:    {owner: RoleDeanSRIC, approved: StateDeanSRICApproved},
	StageDirector:    {owner: RoleDirector, approved: StateDirectorApproved},
	StageAudit:       {owner: RoleAudit, approved: StateAuditApproved},
	StageFinance:     {owner: RoleFinance, approved: StateFinanceApproved},
}

// IsValid returns true if the stage is known
func (s Stage) IsValid() bool {
	_, ok := stages[s]
	return ok
}

// Owner returns the role that decides this stage
func (s Stage) Owner() Role {
	return stages[s].owner
}

// ApprovedState returns the status a report reaches once this stage approves it
func (s Stage) ApprovedState() State {
	return stages[s].approved
}

// String returns the string representation of the stage
func (s Stage) String() string {
	return string(s)
}

// StageForRole returns the stage owned by a role, if any
func StageForRole(r Role) (Stage, bool) {
	for stage, info := range stages {
		if info.owner == r {
			return stage, true
		}
	}
	return "", false
}
