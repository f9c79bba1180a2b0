package active

// Disposable is implemented by values owning resources the engine should
// release when a superseded value is discarded or a node is torn down
type Disposable interface {
	Dispose() error
}

// disposeValue releases a superseded value according to policy. With
// prefer-async the work runs on its own goroutine; the mutating thread only
// waits for it under block-on-async. Errors are routed through extension
// cleanup handling.
func disposeValue(n *Node, o *Options, v any, context string) {
	d, ok := v.(Disposable)
	if !ok {
		return
	}
	run := func() {
		if err := d.Dispose(); err != nil {
			raiseCleanupError(&CleanupError{Node: n, Err: err, Context: context})
		}
	}
	prefer, block := o.asyncDisposal()
	if !prefer {
		run()
		return
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		run()
	}()
	if block {
		<-done
	}
}
