package event

// Type identifies the type of domain event
type Type string

const (
	TypeReportCreated   Type = "report.created"
	TypeReportSubmitted Type = "report.submitted"
	TypeReportReopened  Type = "report.reopened"
	TypeReportDeleted   Type = "report.deleted"
	TypeStatusChanged   Type = "report.status_changed"
	TypeReceiptAttached Type = "report.receipt_attached"
)

// Payload keys shared by publishers and subscribers
const (
	KeyFromStatus  = "from"
	KeyToStatus    = "to"
	KeyAction      = "action"
	KeyStage       = "stage"
	KeyRemarks     = "remarks"
	KeyTitle       = "title"
	KeySubmitter   = "submitterEmail"
	KeySubmitterID = "submitterId"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeReportCreated,
		TypeReportSubmitted,
		TypeReportReopened,
		TypeReportDeleted,
		TypeStatusChanged,
		TypeReceiptAttached:
		return true
	default:
		return false
	}
}
