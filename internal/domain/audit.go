package domain

import "time"

// Status is the terminal outcome of a recompute.
type Status string

const (
	StatusSuccess Status = "success"
	StatusEmpty   Status = "empty"
	StatusError   Status = "error"
)

// String returns the string representation of Status.
func (s Status) String() string {
	return string(s)
}

// AuditKind identifies which subsystem produced an audit entry.
type AuditKind string

const (
	AuditRecipe    AuditKind = "recipe"
	AuditTransform AuditKind = "transform"
	AuditCatalog   AuditKind = "catalog"
)

// MaxAuditMessage bounds stored audit messages.
const MaxAuditMessage = 800

// RecomputeAudit records one recompute outcome for a ticker.
// Corresponds to refresh_log table. Append-on-write.
type RecomputeAudit struct {
	AuditID         string
	Ticker          string
	Kind            AuditKind
	Status          Status
	Message         string
	LastSuccessDate *time.Time // latest date written, nil if none
	AttemptedAt     time.Time
}

// TruncateMessage caps msg at MaxAuditMessage bytes on a rune boundary.
func TruncateMessage(msg string) string {
	if len(msg) <= MaxAuditMessage {
		return msg
	}
	cut := MaxAuditMessage
	for cut > 0 && !isRuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
