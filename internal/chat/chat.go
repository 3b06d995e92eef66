// Package chat delivers short operator messages to team channels.
package chat

import (
	"context"
	"errors"
	"fmt"
)

// Message is one post to a named channel. Body is HTML.
type Message struct {
	Channel string
	Subject string
	Body    string
}

// Poster delivers a message to its channel.
type Poster interface {
	Post(ctx context.Context, msg Message) error
}

// PosterFunc adapts a function to Poster.
type PosterFunc func(ctx context.Context, msg Message) error

func (f PosterFunc) Post(ctx context.Context, msg Message) error { return f(ctx, msg) }

// MultiPoster posts to every poster and joins their errors.
type MultiPoster []Poster

func (m MultiPoster) Post(ctx context.Context, msg Message) error {
	var errs []error
	for i, p := range m {
		if err := p.Post(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("poster[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
