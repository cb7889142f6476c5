package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"authgrid.org/internal/ids"
	"authgrid.org/internal/obs"
	"authgrid.org/internal/rbac"
)

// Ledger is the append-only security-event log. Writes are unconditional;
// reads are filtered by the caller's granted permissions.
type Ledger struct {
	store rbac.Store
	now   func() time.Time
}

var _ rbac.EventRecorder = (*Ledger)(nil)

// Option configures Ledger behavior.
type Option func(*Ledger)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(l *Ledger) {
		if fn != nil {
			l.now = fn
		}
	}
}

// NewLedger constructs a Ledger.
func NewLedger(store rbac.Store, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("audit: store is required")
	}
	l := &Ledger{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Record appends a security event. A store failure propagates to the caller;
// an audit write is never silently dropped. On success a structured audit
// line is also emitted to the service log.
func (l *Ledger) Record(ctx context.Context, eventType, authorUserID, affectedUserID, details string) (rbac.SecurityEvent, error) {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return rbac.SecurityEvent{}, errors.New("audit: event type is required")
	}
	ev := rbac.SecurityEvent{
		ID:             ids.New(),
		EventType:      eventType,
		AuthorUserID:   strings.TrimSpace(authorUserID),
		AffectedUserID: strings.TrimSpace(affectedUserID),
		OccurredUTC:    l.now().UTC(),
		Details:        details,
	}
	if err := l.store.Events(ctx).Append(ctx, &ev); err != nil {
		return rbac.SecurityEvent{}, err
	}
	logEvent(ev)
	return ev, nil
}

// QueryForCaller returns events visible to the given caller:
//
//	Audit.RoleChanges      -> every event
//	Audit.ViewAuthEvents   -> events whose type starts with Login or Logout
//	neither                -> nothing
//
// Always newest first.
func (l *Ledger) QueryForCaller(ctx context.Context, caller rbac.Principal) ([]rbac.SecurityEvent, error) {
	switch {
	case caller.HasPermission(rbac.PermRoleChanges):
		return l.store.Events(ctx).List(ctx, rbac.EventFilter{})
	case caller.HasPermission(rbac.PermViewAuthEvents):
		return l.store.Events(ctx).List(ctx, rbac.EventFilter{
			TypePrefixes: []string{"Login", "Logout"},
		})
	default:
		return nil, nil
	}
}

// logEvent emits the structured JSON audit line alongside the durable record.
func logEvent(ev rbac.SecurityEvent) {
	entry := map[string]any{
		"ts":       ev.OccurredUTC.Format(time.RFC3339Nano),
		"type":     "audit",
		"event":    ev.EventType,
		"event_id": ev.ID,
		"author":   ev.AuthorUserID,
		"affected": ev.AffectedUserID,
		"details":  ev.Details,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	obs.Logger().Println(string(data))
}
