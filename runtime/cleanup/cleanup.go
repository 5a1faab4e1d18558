// Package cleanup implements the Cleanup Coordinator (C8): process signal
// handling that runs a supplied cleanup function exactly once, followed by
// a bounded forced exit, with a second signal triggering immediate exit.
package cleanup

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"goa.design/streamcore/runtime/telemetry"
)

// ForceExitDelay is the default delay between invoking the cleanup function
// and the coordinator forcing process exit, per §4.7.
const ForceExitDelay = 2 * time.Second

// exitFunc lets tests observe "would exit" without killing the test binary.
type exitFunc func(code int)

// Coordinator installs signal handlers for process termination and runs a
// supplied cleanup function exactly once on the first SIGINT/SIGTERM,
// forcing exit after a fixed delay if cleanup hangs. A second signal during
// shutdown exits immediately.
type Coordinator struct {
	log        telemetry.Logger
	forceDelay time.Duration
	exit       exitFunc

	once     sync.Once
	signals  chan os.Signal
	shutdown chan struct{}
}

// New constructs a Coordinator with the default 2s forced-exit delay.
func New(log telemetry.Logger) *Coordinator {
	if log == nil {
		log = telemetry.NoopLogger{}
	}
	return &Coordinator{
		log:        log,
		forceDelay: ForceExitDelay,
		exit:       os.Exit,
		signals:    make(chan os.Signal, 2),
		shutdown:   make(chan struct{}),
	}
}

// Install registers SIGINT/SIGTERM handlers and starts the coordinator
// goroutine. cleanupFn is invoked exactly once, on the first received
// signal; if it has not returned within the coordinator's forced-exit
// delay, the process exits anyway. A second signal received at any point
// after the first triggers immediate exit.
func (c *Coordinator) Install(ctx context.Context, cleanupFn func(context.Context)) {
	signal.Notify(c.signals, syscall.SIGINT, syscall.SIGTERM)
	go c.run(ctx, cleanupFn)
}

func (c *Coordinator) run(ctx context.Context, cleanupFn func(context.Context)) {
	sig, ok := <-c.signals
	if !ok {
		return
	}
	c.log.Info(ctx, "cleanup: received signal, starting shutdown", "signal", sig.String())
	close(c.shutdown)

	forced := time.AfterFunc(c.forceDelay, func() {
		c.log.Warn(ctx, "cleanup: forced exit, cleanup did not complete in time")
		c.exit(0)
	})

	go func() {
		if _, ok := <-c.signals; ok {
			c.log.Warn(ctx, "cleanup: second signal received, exiting immediately")
			c.exit(1)
		}
	}()

	c.once.Do(func() {
		if cleanupFn != nil {
			cleanupFn(ctx)
		}
	})
	forced.Stop()
	c.exit(0)
}

// Done returns a channel closed once the first termination signal has been
// received, for callers that want to react to shutdown starting without
// blocking on process exit (e.g. a server's main select loop).
func (c *Coordinator) Done() <-chan struct{} {
	return c.shutdown
}

// Tool is the minimal capability stopAllTools needs from an agent-exposed
// tool: an idempotent Stop.
type Tool interface {
	Stop(ctx context.Context) error
}

// ToolSource exposes the tools owned by one agent, for fan-out shutdown.
type ToolSource interface {
	Tools() []Tool
}

// StopAllTools invokes Stop on every tool exposed by agents, logging but not
// propagating per-tool failures so one stuck tool cannot block the rest of
// shutdown (§4.7).
func StopAllTools(ctx context.Context, log telemetry.Logger, agents []ToolSource) {
	if log == nil {
		log = telemetry.NoopLogger{}
	}
	for _, agent := range agents {
		for _, tool := range agent.Tools() {
			if err := tool.Stop(ctx); err != nil {
				log.Warn(ctx, "cleanup: tool stop failed", "error", err.Error())
			}
		}
	}
}
