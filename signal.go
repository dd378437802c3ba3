package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// drainState is what a graceful shutdown is still waiting on: video streams
// mid-copy and connected /api/events listeners.
type drainState struct {
	Streams     int64
	Subscribers int
}

// drainReport reports the current drainState. A nil report yields nothing.
type drainReport func() drainState

func (p drainReport) attrs() []any {
	if p == nil {
		return nil
	}

	st := p()

	return []any{
		slog.Int64("open_streams", st.Streams),
		slog.Int("event_subscribers", st.Subscribers),
	}
}

// shutdownContext returns a context that is canceled on the first SIGINT or
// SIGTERM, which starts the server drain. A second signal exits immediately,
// cutting off any streams that are still playing.
func shutdownContext(parent context.Context, logger *slog.Logger, report drainReport) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("received signal, draining server",
				append([]any{slog.String("signal", sig.String())}, report.attrs()...)...,
			)
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, dropping open streams",
				append([]any{slog.String("signal", sig.String())}, report.attrs()...)...,
			)
			os.Exit(1)
		case <-parent.Done():
			return
		}
	}()

	return ctx
}
