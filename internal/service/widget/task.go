package widget

// Task is one asynchronous network operation and its typed outcome.
type Task[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func startTask[T any](fn func() (T, error)) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		t.value, t.err = fn()
	}()
	return t
}

// Done is closed once the operation and its view updates have finished.
func (t *Task[T]) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes.
func (t *Task[T]) Wait() (T, error) {
	<-t.done
	return t.value, t.err
}
