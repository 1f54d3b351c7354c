package taskpool

import "context"

// Limiter bounds the number of simultaneously running sub-tasks. Waiters
// queue in arrival order and are admitted as running tasks complete.
type Limiter struct {
	slots chan struct{}
}

func New(width int) *Limiter {
	if width <= 0 {
		width = 8
	}
	return &Limiter{slots: make(chan struct{}, width)}
}

func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Limiter) Release() {
	select {
	case <-l.slots:
	default:
	}
}

// Go runs fn under the limiter, blocking until a slot frees or ctx ends.
func (l *Limiter) Go(ctx context.Context, fn func()) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	go func() {
		defer l.Release()
		fn()
	}()
	return nil
}

// Width reports the configured concurrency bound.
func (l *Limiter) Width() int { return cap(l.slots) }
