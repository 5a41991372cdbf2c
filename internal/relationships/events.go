package relationships

import (
	"context"
	"time"
)

// Event describes a committed relationship transition.
type Event struct {
	Type       Status    `json:"type"`
	Actor      string    `json:"actor_id"`
	Target     string    `json:"target_id"`
	EdgeID     string    `json:"edge_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher forwards committed transitions to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
