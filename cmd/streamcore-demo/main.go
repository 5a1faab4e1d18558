// streamcore-demo is a standalone CLI that drives the stream-core pipeline
// end to end against a synthetic delta source: it wires a Stream Helper to
// stdout (native or SSE, per --wire-format), registers the resulting stream
// in the Stream Registry, feeds it through the Incremental Stream Parser,
// and installs the Cleanup Coordinator's signal handling, mirroring the
// reference runtime's own cmd/assistant entrypoint.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"goa.design/clue/log"
	"goa.design/streamcore/config"
	"goa.design/streamcore/runtime/cleanup"
	"goa.design/streamcore/runtime/stream"
	"goa.design/streamcore/runtime/streamregistry"
	"goa.design/streamcore/runtime/streamparser"
	"goa.design/streamcore/runtime/telemetry"
)

func main() {
	var (
		sessionID  string
		wireFormat string
		debug      bool
	)

	root := &cobra.Command{
		Use:   "streamcore-demo",
		Short: "Drive the stream-core pipeline against a synthetic delta source",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), sessionID, wireFormat, debug)
		},
	}
	root.Flags().StringVar(&sessionID, "session-id", "demo-session", "session id to register in the Stream Registry")
	root.Flags().StringVar(&wireFormat, "wire-format", "", "wire format override: native or sse (defaults to config.Load())")
	root.Flags().BoolVar(&debug, "debug", false, "enable debug logging")

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "streamcore-demo:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, sessionID, wireFormatFlag string, debug bool) error {
	if debug {
		ctx = log.Context(ctx, log.WithDebug())
	}
	logger := telemetry.NewClueLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if wireFormatFlag != "" {
		cfg.WireFormat = config.WireFormat(wireFormatFlag)
	}

	var sink stream.Sink
	switch cfg.WireFormat {
	case config.WireFormatSSE:
		sink = stream.NewSSEWriter(os.Stdout, time.Now())
	default:
		sink = stream.NewNativeWriter(os.Stdout)
	}

	helper := stream.New(sink,
		stream.WithGapThreshold(cfg.GapThreshold),
		stream.WithMaxLifetime(cfg.MaxStreamLifetime),
		stream.WithLogger(logger),
	)

	streams := streamregistry.New()
	streams.Register(sessionID, helper)
	defer streams.Unregister(sessionID)

	coordinator := cleanup.New(logger)
	shutdownCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	coordinator.Install(shutdownCtx, func(cleanupCtx context.Context) {
		_ = helper.Complete(cleanupCtx)
	})

	parser := streamparser.New(logger)
	source := demoDeltaSource()

	if err := stream.Drive(shutdownCtx, source, parser, helper, cfg.MaxBufferBytes); err != nil {
		return fmt.Errorf("drive stream: %w", err)
	}
	return nil
}

// demoDeltaSource produces a small, fixed sequence of deltas illustrating
// text streaming, a tool-result boundary, and a text-mode artifact-create
// marker split across deltas, closing once consumed.
func demoDeltaSource() <-chan stream.Delta {
	out := make(chan stream.Delta, 8)
	go func() {
		defer close(out)
		out <- stream.Delta{Kind: stream.DeltaText, Text: "Looking into that"}
		out <- stream.Delta{Kind: stream.DeltaText, Text: " now...\n"}
		out <- stream.Delta{Kind: stream.DeltaToolResultBoundary}
		out <- stream.Delta{Kind: stream.DeltaText, Text: "<artifact:create id=\"a1\" name=\"notes\">"}
		out <- stream.Delta{Kind: stream.DeltaText, Text: "Found three relevant files."}
		out <- stream.Delta{Kind: stream.DeltaText, Text: "</artifact>\n"}
		out <- stream.Delta{Kind: stream.DeltaEndOfStream}
	}()
	return out
}
