package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskRef is what the notification helpers need to know about a task. The
// task service owns the full record.
type TaskRef struct {
	ID       uuid.UUID  `json:"id"`
	Title    string     `json:"title"`
	Deadline *time.Time `json:"deadline,omitempty"`
}
