package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"overlayctl/internal/config"
	"overlayctl/internal/diag"
	"overlayctl/internal/logging"
	"overlayctl/internal/monitor"
	"overlayctl/internal/overlay"
	"overlayctl/internal/schedule"
	"overlayctl/internal/script"
	"overlayctl/internal/tray"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the input-collection step chain",
	Long: `Run starts the overlay capability and executes the step chain:

  step 1  install the mouse and keyboard callbacks
  step 2  enable input collection
  step 3  re-enable input collection
  step 4  disable input collection
  finish  stop the capability and exit

The session also ends when timing.script_timeout elapses, when the finish
hotkey is pressed, or on SIGINT/SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("backend", "", "capability backend (auto, native, sim)")
	runCmd.Flags().String("log-path", "", "log file handed to the capability")
	runCmd.Flags().String("monitor-addr", "", "serve the status monitor on this address")
	runCmd.Flags().Bool("tray", false, "show the system tray menu")
	_ = viper.BindPFlag("backend", runCmd.Flags().Lookup("backend"))
	_ = viper.BindPFlag("log_path", runCmd.Flags().Lookup("log-path"))
	_ = viper.BindPFlag("monitor.addr", runCmd.Flags().Lookup("monitor-addr"))
	_ = viper.BindPFlag("tray.enabled", runCmd.Flags().Lookup("tray"))
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runSession(ctx, cfg, cmd.OutOrStdout())
}

// runSession wires the capability, loop, script and optional surfaces for
// one session and blocks until it has stopped.
func runSession(ctx context.Context, cfg *config.Config, out io.Writer) error {
	log := logging.New(out, cfg.Logging.Level, cfg.Logging.Format)
	diag.Log(ctx, log)

	capability, err := overlay.Open(cfg.Backend, overlay.Options{
		ReleaseKeyCode: cfg.Input.ReleaseKeyCode,
		LogLevel:       cfg.Logging.Level,
	})
	if err != nil {
		return fmt.Errorf("failed to open overlay backend: %w", err)
	}

	loop := schedule.NewLoop(nil)
	s := script.New(capability, loop, log, scriptOptions(cfg))

	if cfg.Monitor.Addr != "" {
		srv := monitor.NewServer(s, cfg.Monitor.Token, log)
		s.AddObserver(srv)
		go func() {
			if err := srv.Start(cfg.Monitor.Addr); err != nil {
				log.Warn("monitor unavailable", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var menu *tray.SessionMenu
	if cfg.Tray.Enabled {
		menu = tray.NewSessionMenu(s, tray.New("overlayctl", "overlayctl: starting", log))
		s.AddObserver(menu)
	}

	if err := s.Start(); err != nil {
		return err
	}

	if sim, ok := capability.(*overlay.Simulated); ok && len(cfg.Simulation.Events) > 0 {
		go func() {
			if err := sim.Play(ctx, cfg.Simulation.Synthetic()); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("synthetic input stopped", "error", err)
			}
		}()
	}

	if menu == nil {
		return ignoreCancel(s.Run(ctx))
	}

	// The tray event loop owns the calling goroutine until the session ends.
	runErr := make(chan error, 1)
	go func() {
		runErr <- s.Run(ctx)
		menu.Stop()
	}()
	menu.Run()
	return ignoreCancel(<-runErr)
}

func scriptOptions(cfg *config.Config) script.Options {
	return script.Options{
		LogPath: cfg.LogPath,
		Delays: script.Delays{
			Initial: cfg.Timing.InitialDelay,
			Step:    cfg.Timing.StepDelay,
			Finish:  cfg.Timing.FinishDelay,
			Timeout: cfg.Timing.ScriptTimeout,
		},
		ToggleKeyCode:  cfg.Input.ToggleKeyCode,
		MouseResult:    cfg.Input.MouseResult,
		KeyboardResult: cfg.Input.KeyboardResult,
		FinishHotkey:   cfg.Input.FinishHotkey,
	}
}

// A signal ends the session through the normal stop path, which is a
// successful run.
func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
