// Package audit writes recompute outcomes to the refresh log.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"commodity-lab/internal/domain"
	"commodity-lab/internal/storage"
)

// Recorder appends audit entries for one subsystem.
type Recorder struct {
	store storage.AuditStore
	kind  domain.AuditKind
	now   func() time.Time
	newID func() string
}

// NewRecorder creates a recorder writing entries of kind to store.
// A nil store yields a recorder that drops every entry.
func NewRecorder(store storage.AuditStore, kind domain.AuditKind) *Recorder {
	return &Recorder{
		store: store,
		kind:  kind,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.NewString() },
	}
}

// WithClock returns a copy of r using now for AttemptedAt.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	out := *r
	out.now = now
	return &out
}

// Record appends one entry and returns it.
func (r *Recorder) Record(ctx context.Context, ticker string, status domain.Status, message string, lastSuccess *time.Time) (*domain.RecomputeAudit, error) {
	entry := &domain.RecomputeAudit{
		AuditID:         r.newID(),
		Ticker:          domain.NormalizeTicker(ticker),
		Kind:            r.kind,
		Status:          status,
		Message:         domain.TruncateMessage(message),
		LastSuccessDate: lastSuccess,
		AttemptedAt:     r.now(),
	}
	if r.store == nil {
		return entry, nil
	}
	if err := r.store.Record(ctx, entry); err != nil {
		return nil, fmt.Errorf("record audit for %s: %w", entry.Ticker, err)
	}
	return entry, nil
}
