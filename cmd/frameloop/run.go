package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/l1jgo/frameloop/internal/app"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the frame loop until interrupted or the frame limit is hit",
	RunE:  runLoop,
}

var (
	runFrames   uint64
	runScenario string
	runNoDraw   bool
)

func init() {
	runCmd.Flags().Uint64VarP(&runFrames, "frames", "n", 0, "stop after this many frames (overrides loop.max_frames)")
	runCmd.Flags().StringVarP(&runScenario, "scenario", "s", "", "scenario YAML (overrides loop.scenario)")
	runCmd.Flags().BoolVar(&runNoDraw, "no-draw", false, "do not print the canvas")
	rootCmd.AddCommand(runCmd)
}

func runLoop(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("frames") {
		cfg.Loop.MaxFrames = runFrames
	}
	if runScenario != "" {
		cfg.Loop.Scenario = runScenario
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	if runNoDraw {
		out = nil
	}
	d, err := app.New(ctx, cfg, log, out)
	if err != nil {
		return err
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownCh)
	go func() {
		select {
		case sig := <-shutdownCh:
			log.Info("shutdown signal", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	log.Info("frame loop started",
		zap.String("name", cfg.Server.Name),
		zap.Duration("frame_rate", cfg.Loop.FrameRate),
		zap.Int("workers", d.Pool.Workers()),
		zap.Bool("parallel", d.World.Parallel()),
	)
	runErr := d.Run(ctx)
	closeErr := d.Close()
	log.Info("frame loop stopped", zap.Uint64("frames", d.World.Frame()))

	if runErr != nil {
		return runErr
	}
	return closeErr
}
