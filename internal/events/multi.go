package events

import (
	"context"
	"errors"
)

// MultiPublisher fans an event out to every publisher and joins their errors.
type MultiPublisher struct {
	publishers []Publisher
}

func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	return &MultiPublisher{publishers: publishers}
}

func (m *MultiPublisher) Publish(ctx context.Context, stream string, event Event) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, stream, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) error { return nil }
