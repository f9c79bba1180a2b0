package active

import (
	"context"
	"sync"
)

// WaitUntil blocks until the boolean lambda, bound over the given arguments,
// becomes true. Faults are waited through: a fault persists until a
// dependency change re-evaluates successfully. Cancelling the context
// unsubscribes and returns its error.
func WaitUntil(ctx context.Context, lambda *LambdaExpr, o *Options, args ...any) error {
	a, err := observe[bool](lambda, o, args)
	if err != nil {
		return err
	}
	defer a.Dispose()

	done := make(chan struct{})
	var once sync.Once
	tok := a.node.Subscribe(func(c Change) {
		if c.NewFault == nil && c.NewValue == true {
			once.Do(func() { close(done) })
		}
	})
	defer a.node.Unsubscribe(tok)

	// check after subscribing so a satisfying value cannot slip between
	if v, f := a.node.read(); f == nil && v == true {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
