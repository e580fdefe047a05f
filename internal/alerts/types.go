package alerts

import (
	"errors"
	"time"
)

// Type categorizes the incident.
type Type string

const (
	TypeSecurity    Type = "security"
	TypeFire        Type = "fire"
	TypeMedical     Type = "medical"
	TypeMaintenance Type = "maintenance"
	TypeEmergency   Type = "emergency"
	TypeOther       Type = "other"
)

var validTypes = map[Type]struct{}{
	TypeSecurity: {}, TypeFire: {}, TypeMedical: {},
	TypeMaintenance: {}, TypeEmergency: {}, TypeOther: {},
}

// ValidType reports whether t is a known alert type.
func ValidType(t Type) bool {
	_, ok := validTypes[t]
	return ok
}

// Severity grades the incident.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var validSeverities = map[Severity]struct{}{
	SeverityLow: {}, SeverityMedium: {}, SeverityHigh: {}, SeverityCritical: {},
}

// ValidSeverity reports whether s is a known severity grade.
func ValidSeverity(s Severity) bool {
	_, ok := validSeverities[s]
	return ok
}

// Status is the alert lifecycle state. Transitions move strictly forward:
// active -> acknowledged -> resolved, active -> resolved, or
// active -> false_alarm. Nothing leaves resolved or false_alarm.
type Status string

const (
	StatusActive       Status = "active"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
	StatusFalseAlarm   Status = "false_alarm"
)

// Alert is one incident report. Acknowledgment and resolution fields are
// write-once: once set they are never cleared or overwritten.
type Alert struct {
	ID             string     `json:"id"`
	Type           Type       `json:"type"`
	Severity       Severity   `json:"severity"`
	Location       string     `json:"location"`
	Description    string     `json:"description"`
	ReportedBy     string     `json:"reported_by"`
	IsPanic        bool       `json:"is_panic"`
	Status         Status     `json:"status"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	Resolution     string     `json:"resolution,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ReportParams carries alert creation input.
type ReportParams struct {
	Type        Type
	Severity    Severity
	Location    string
	Description string
	ReportedBy  string
	IsPanic     bool
}

// Filter narrows alert listings. Zero values match everything.
type Filter struct {
	Status     Status
	Severity   Severity
	ReportedBy string
}

// Stats is the aggregate count projection, recomputed on demand.
type Stats struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	Acknowledged int `json:"acknowledged"`
	Resolved     int `json:"resolved"`
	Critical     int `json:"critical"`
	Panic        int `json:"panic"`
}

var (
	ErrNotFound          = errors.New("alerts: alert not found")
	ErrInvalidTransition = errors.New("alerts: invalid status transition")
	ErrInvalidType       = errors.New("alerts: invalid alert type")
	ErrInvalidSeverity   = errors.New("alerts: invalid severity")
	ErrMissingLocation   = errors.New("alerts: location is required")
)
