// Package async exposes an in-flight operation as a pollable tri-state value
// (loading, data, error) so view code can render it without callbacks.
package async

import (
	"context"
	"fmt"
	"sync"
)

// Status is the settlement state of a Promise.
type Status int

const (
	Pending Status = iota
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// State is a snapshot of a Promise. At most one of Data and Err is set, and
// only once Loading is false.
type State[T any] struct {
	Data    T     `json:"data"`
	Err     error `json:"-"`
	Loading bool  `json:"loading"`
}

// Promise holds the outcome of one asynchronous operation.
type Promise[T any] struct {
	mu     sync.RWMutex
	data   T
	err    error
	status Status
	done   chan struct{}
}

// Wrap starts op in its own goroutine and returns immediately with a
// Pending promise. A panic inside op settles the promise as Failed.
func Wrap[T any](ctx context.Context, op func(context.Context) (T, error)) *Promise[T] {
	p := &Promise[T]{done: make(chan struct{})}
	go func() {
		var (
			v   T
			err error
		)
		defer func() {
			if r := recover(); r != nil {
				var zero T
				p.settle(zero, fmt.Errorf("async: operation panicked: %v", r))
				return
			}
			p.settle(v, err)
		}()
		v, err = op(ctx)
	}()
	return p
}

// Resolved returns a promise already settled with v.
func Resolved[T any](v T) *Promise[T] {
	p := &Promise[T]{done: make(chan struct{})}
	p.settle(v, nil)
	return p
}

// Rejected returns a promise already settled with err.
func Rejected[T any](err error) *Promise[T] {
	p := &Promise[T]{done: make(chan struct{})}
	var zero T
	p.settle(zero, err)
	return p
}

func (p *Promise[T]) settle(v T, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != Pending {
		return
	}
	if err != nil {
		p.err = err
		p.status = Failed
	} else {
		p.data = v
		p.status = Ready
	}
	close(p.done)
}

// State returns the current snapshot.
func (p *Promise[T]) State() State[T] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return State[T]{Data: p.data, Err: p.err, Loading: p.status == Pending}
}

func (p *Promise[T]) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Done is closed once the promise settles.
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the promise settles or ctx ends. On ctx expiry the
// promise itself stays pending.
func (p *Promise[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		s := p.State()
		return s.Data, s.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
