// Package services holds the mission and reputation engine. Services are written against the
// store interfaces and receive their collaborators through constructors.
package services

import (
	"context"
	"time"
)

// TaskQueue hands work to the background workers. Enqueueing the same mission twice while a
// verification is pending is not an error.
type TaskQueue interface {
	EnqueueVerification(ctx context.Context, missionID string) error
	EnqueueBadgeEvaluation(ctx context.Context, userID string) error
}

// dateOnly strips the time of day in loc.
func dateOnly(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
