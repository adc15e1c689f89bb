package main

import (
	"context"
	"fmt"

	chainDI "github.com/fd1az/dexops/business/chain/di"
	dexApp "github.com/fd1az/dexops/business/dex/app"
	dexDI "github.com/fd1az/dexops/business/dex/di"
	"github.com/fd1az/dexops/internal/monolith"
	"github.com/fd1az/dexops/pkg/ui"
)

// starter is the part of the application container the TUI start sequence needs.
type starter interface {
	monolith.Monolith
	StartModules(ctx context.Context, modules ...monolith.Module) error
}

func newMonitor(mono monolith.Monolith, args []string) (*dexApp.Monitor, error) {
	tokens, err := parseAddresses(args)
	if err != nil {
		return nil, err
	}
	sr := mono.Services()
	return dexApp.NewMonitor(
		chainDI.GetChainService(sr),
		dexDI.GetStreams(sr),
		dexDI.GetReporter(sr),
		dexApp.MonitorConfig{
			Tokens:        tokens,
			BlockThrottle: mono.Config().Stream.BlockThrottle,
		},
		mono.Logger(),
	), nil
}

func runWatchCLI(ctx context.Context, s *session, args []string) error {
	return runWatch(ctx, s.mono, args)
}

func runWatch(ctx context.Context, mono monolith.Monolith, args []string) error {
	monitor, err := newMonitor(mono, args)
	if err != nil {
		return err
	}
	if err := monitor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}

	<-ctx.Done()

	mono.Logger().Info(ctx, "shutting down")
	if err := monitor.Stop(); err != nil {
		mono.Logger().Error(ctx, "error stopping monitor", "error", err)
	}
	return nil
}

func runTUI(ctx context.Context, mono starter, modules []monolith.Module, args []string) error {
	// Channel to receive StartModulesMsg signal
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	errCh := make(chan error, 1)
	go func() {
		// Wait for the welcome screen to complete
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}

		ui.Send(ui.StartupMsg{Step: "config", Status: "done"})
		ui.Send(ui.StartupMsg{Step: "node", Status: "connecting"})
		if err := mono.StartModules(ctx, modules...); err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
			errCh <- err
			return
		}
		defer chainDI.GetChainService(mono.Services()).Close()
		ui.Send(ui.StartupMsg{Step: "node", Status: "done"})
		ui.Send(ui.StartupMsg{Step: "wallet", Status: "done"})

		errCh <- runWatch(ctx, mono, args)
	}()

	// Run TUI (blocking) - shows immediately with welcome screen
	if err := ui.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}
