package events

import (
	"context"
	"errors"

	"github.com/friendgraph/backend/internal/relationships"
)

// Fanout delivers each event to every publisher, even when some of them fail.
type Fanout []relationships.Publisher

// Publish returns the joined errors of the publishers that failed.
func (f Fanout) Publish(ctx context.Context, event relationships.Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
