// Package audit persists one record per deployment run for later review.
// Records are insert-only: a run's event log and summary are written exactly
// once, after the run concludes, no matter how it ended.
package audit

import (
	"time"

	"github.com/graphmart/graphmart/internal/deploy"
)

// Record is the audit trail of one deployment run as stored.
type Record struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	deploy.RunRecord
}
