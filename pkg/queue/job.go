package queue

import (
	"context"
	"encoding/json"
)

// Job handles one message type. A returned error schedules a retry; context.Canceled does not.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, payload json.RawMessage) error
}
