package domain

// Severity classifies user-facing notifications and confirmation prompts.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityDanger  Severity = "danger"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError, SeverityDanger:
		return true
	}
	return false
}

// Result is the shape every agent RPC resolves to. The agent is an opaque
// collaborator: we consume this shape but never define its wire format.
type Result struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}
