// Package observer fans events out to registered listeners.
package observer

import (
	"context"
	"sync"
)

// Observer receives events of type T.
type Observer[T any] interface {
	Notify(context.Context, T) error
}

// Func adapts a plain function into an Observer.
type Func[T any] func(context.Context, T) error

// Notify calls f.
func (f Func[T]) Notify(ctx context.Context, evt T) error {
	if f == nil {
		return nil
	}
	return f(ctx, evt)
}

// Publisher is the sending side handed to producers.
type Publisher[T any] interface {
	Publish(context.Context, T)
}

// Subject delivers each published event to every attached observer in
// registration order. A nil *Subject drops events.
type Subject[T any] struct {
	onError   func(error)
	observers []Observer[T]
	mu        sync.RWMutex
}

var _ Publisher[struct{}] = (*Subject[struct{}])(nil)

// NewSubject returns a Subject with the given observers attached.
func NewSubject[T any](observers ...Observer[T]) *Subject[T] {
	s := &Subject[T]{}
	s.Attach(observers...)
	return s
}

// Publish notifies observers synchronously. Observer failures go to the
// error handler and do not stop delivery to the rest.
func (s *Subject[T]) Publish(ctx context.Context, evt T) {
	if s == nil {
		return
	}
	s.mu.RLock()
	observers := append([]Observer[T](nil), s.observers...)
	onError := s.onError
	s.mu.RUnlock()

	for _, o := range observers {
		if err := o.Notify(ctx, evt); err != nil && onError != nil {
			onError(err)
		}
	}
}

// Attach registers observers; nil entries are ignored.
func (s *Subject[T]) Attach(observers ...Observer[T]) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range observers {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// OnError sets the callback for observer failures.
func (s *Subject[T]) OnError(fn func(error)) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}
