package cleanup

import (
	"context"
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"goa.design/streamcore/runtime/telemetry"
)

// newTestCoordinator builds a Coordinator with signal.Notify bypassed: tests
// push directly onto c.signals and observe exit via a recording exitFunc
// instead of killing the test binary.
func newTestCoordinator(forceDelay time.Duration) (*Coordinator, *exitRecorder) {
	rec := &exitRecorder{}
	c := &Coordinator{
		log:        telemetry.NoopLogger{},
		forceDelay: forceDelay,
		exit:       rec.record,
		signals:    make(chan os.Signal, 2),
		shutdown:   make(chan struct{}),
	}
	return c, rec
}

type exitRecorder struct {
	mu    sync.Mutex
	calls []int
}

func (r *exitRecorder) record(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, code)
}

func (r *exitRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *exitRecorder) first() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[0]
}

func TestRunInvokesCleanupOnceOnFirstSignal(t *testing.T) {
	c, rec := newTestCoordinator(time.Second)
	var calls int
	var mu sync.Mutex

	go c.run(context.Background(), func(context.Context) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	c.signals <- syscall.SIGINT

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, calls)
	require.Equal(t, 0, rec.first())
}

func TestRunClosesDoneOnFirstSignal(t *testing.T) {
	c, _ := newTestCoordinator(time.Second)
	go c.run(context.Background(), func(context.Context) {})
	c.signals <- syscall.SIGINT

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() channel was not closed after first signal")
	}
}

func TestRunForcesExitIfCleanupHangs(t *testing.T) {
	c, rec := newTestCoordinator(10 * time.Millisecond)
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	go c.run(context.Background(), func(context.Context) {
		<-block // never returns within the test
	})
	c.signals <- syscall.SIGINT

	require.Eventually(t, func() bool { return rec.count() >= 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 0, rec.first())
}

func TestRunExitsImmediatelyOnSecondSignal(t *testing.T) {
	c, rec := newTestCoordinator(time.Hour)
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	go c.run(context.Background(), func(context.Context) {
		<-block
	})
	c.signals <- syscall.SIGINT
	c.signals <- syscall.SIGTERM

	require.Eventually(t, func() bool { return rec.count() >= 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, rec.first())
}

func TestRunWithNilCleanupFnStillExits(t *testing.T) {
	c, rec := newTestCoordinator(time.Second)
	go c.run(context.Background(), nil)
	c.signals <- syscall.SIGINT

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 0, rec.first())
}

type fakeTool struct {
	name string
	err  error
}

func (t *fakeTool) Stop(context.Context) error { return t.err }

type fakeToolSource struct {
	tools []Tool
}

func (s *fakeToolSource) Tools() []Tool { return s.tools }

func TestStopAllToolsSwallowsPerToolErrors(t *testing.T) {
	good := &fakeTool{name: "good"}
	bad := &fakeTool{name: "bad", err: errors.New("stop failed")}
	agents := []ToolSource{
		&fakeToolSource{tools: []Tool{good, bad}},
	}

	require.NotPanics(t, func() {
		StopAllTools(context.Background(), nil, agents)
	})
}
