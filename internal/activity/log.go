// internal/activity/log.go
package activity

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"hanumantlibrary/pkg/realtimestore"
)

const (
	TypeEntry         = "entry"
	TypeExit          = "exit"
	TypePayment       = "payment"
	TypeMemberAdded   = "member_added"
	TypeMemberRemoved = "member_removed"
)

// Activity is one append-only audit event.
type Activity struct {
	ID         string `json:"-"`
	Type       string `json:"type"`
	MemberID   string `json:"memberId"`
	MemberName string `json:"memberName"`
	Timestamp  string `json:"timestamp"`
	Details    string `json:"details,omitempty"`
}

// Log appends audit events for the attendance, fee and membership flows.
type Log struct {
	store realtimestore.Store
	log   *slog.Logger
	now   func() time.Time
}

func NewLog(store realtimestore.Store, log *slog.Logger) *Log {
	return &Log{store: store, log: log, now: time.Now}
}

// Append records an activity. Appends are fire-and-forget: a failure is
// logged but never fails the flow that produced the event.
func (l *Log) Append(ctx context.Context, a Activity) {
	if a.Timestamp == "" {
		a.Timestamp = l.now().Format(time.RFC3339)
	}
	if _, err := l.store.Push(ctx, realtimestore.CollectionActivities, a); err != nil {
		l.log.Error("append activity", "type", a.Type, "member", a.MemberID, "err", err)
	}
}

// Recent returns up to limit activities, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Activity, error) {
	snap, err := l.store.Get(ctx, realtimestore.CollectionActivities)
	if err != nil {
		return nil, err
	}

	activities := make([]Activity, 0, len(snap))
	for key := range snap {
		var a Activity
		if err := snap.Decode(key, &a); err != nil {
			l.log.Warn("skip malformed activity", "key", key, "err", err)
			continue
		}
		a.ID = key
		activities = append(activities, a)
	}

	sort.Slice(activities, func(i, j int) bool {
		return activities[i].Timestamp > activities[j].Timestamp
	})
	if limit > 0 && len(activities) > limit {
		activities = activities[:limit]
	}
	return activities, nil
}
