package utils

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestStoppableWorkers(t *testing.T) {
	var stopped atomic.Int32
	started := make(chan struct{}, 2)
	worker := func(ctx context.Context) {
		started <- struct{}{}
		<-ctx.Done()
		stopped.Add(1)
	}
	sw := NewStoppableWorkers(worker)
	sw.AddWorkers(worker)
	<-started
	<-started
	test.That(t, sw.Context().Err(), test.ShouldBeNil)

	sw.Stop()
	test.That(t, stopped.Load(), test.ShouldEqual, int32(2))
	test.That(t, sw.Context().Err(), test.ShouldNotBeNil)

	// no-op once stopped
	sw.AddWorkers(worker)
	sw.Stop()
	test.That(t, stopped.Load(), test.ShouldEqual, int32(2))
}

func TestPanicCapturingGo(t *testing.T) {
	captured := make(chan interface{}, 1)
	PanicCapturingGoWithCallback(func() { panic("boom") }, func(err interface{}) { captured <- err })
	test.That(t, <-captured, test.ShouldEqual, "boom")
}

func TestGuard(t *testing.T) {
	var order []string
	cleanup := func(name string, err error) func() error {
		return func() error {
			order = append(order, name)
			return err
		}
	}

	func() {
		guard := NewGuard(cleanup("first", nil))
		defer guard.OnFail()
		guard.Add(cleanup("second", errors.New("busy")))
	}()
	test.That(t, order, test.ShouldResemble, []string{"second", "first"})

	order = nil
	func() {
		guard := NewGuard(cleanup("first", nil))
		defer guard.OnFail()
		guard.Success()
	}()
	test.That(t, order, test.ShouldBeEmpty)
}
