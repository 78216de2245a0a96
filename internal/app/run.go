package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/hangwatch/internal/appinfo"
	"github.com/blackwell-systems/hangwatch/internal/config"
	"github.com/blackwell-systems/hangwatch/internal/crashmark"
	"github.com/blackwell-systems/hangwatch/internal/hang"
	"github.com/blackwell-systems/hangwatch/internal/lifecycle"
	"github.com/blackwell-systems/hangwatch/internal/mainloop"
	"github.com/blackwell-systems/hangwatch/internal/output"
	"github.com/blackwell-systems/hangwatch/internal/startup"
)

var (
	runBlock      time.Duration
	runBlockEvery time.Duration
	runDuration   time.Duration
	runPIDFile    string
	runPanicAfter time.Duration

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run a main loop under the hang watchdog",
		Long: `Run a main loop on the process main thread and watch it for hangs.

The loop simulates a host application: it opens a first screen, which ends
startup, and then optionally blocks itself for --block every --block-every
to produce hangs.

While a hang lasts its evidence is kept on disk. If the process is killed
during a hang, the next run reports it as fatal.

Lifecycle sources:
  • signal (default): SIGTSTP backgrounds the loop, SIGCONT resumes it
  • file: the --state-file holds "active", "inactive" or "background"
  • manual: always active`,
		Example: `  # Watch until Ctrl+C
  hangwatch run

  # Simulate a 3s hang every 10s for one minute
  hangwatch run --block 3s --block-every 10s --duration 1m

  # Leave a fatal hang behind: kill the process while it is blocked
  hangwatch run --block 30s`,
		RunE: runRun,
	}
)

func init() {
	runCmd.Flags().Duration("threshold", 0, "hang threshold (default: 2s)")
	runCmd.Flags().Duration("probe-interval", 0, "liveness probe interval (default: threshold/2)")
	runCmd.Flags().String("lifecycle", "", "lifecycle source: signal, file or manual (default: signal)")
	runCmd.Flags().String("state-file", "", "state file for --lifecycle file (default: ~/.hangwatch/state)")
	runCmd.Flags().Bool("report-in-debug", false, "deliver events in hangwatch_debug builds")
	runCmd.Flags().DurationVar(&runBlock, "block", 0, "block the main loop for this long to simulate a hang")
	runCmd.Flags().DurationVar(&runBlockEvery, "block-every", 0, "repeat the simulated hang at this period (default: once)")
	runCmd.Flags().DurationVar(&runDuration, "duration", 0, "stop after this long (default: until interrupted)")
	runCmd.Flags().StringVar(&runPIDFile, "pid-file", "", "PID file path (default: ~/.hangwatch/run.pid)")
	runCmd.Flags().DurationVar(&runPanicAfter, "panic-after", 0, "panic on the main loop after this long to leave a crash marker")

	runCmd.Flags().MarkHidden("panic-after")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	if runPIDFile == "" {
		runPIDFile, err = getDefaultPIDFile()
		if err != nil {
			return fmt.Errorf("failed to get default PID file path: %w", err)
		}
	}
	release, err := acquirePIDFile(runPIDFile)
	if err != nil {
		return err
	}
	defer release()

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	crash, err := crashmark.Consume(st.kv)
	if err != nil {
		logger.Warn("failed to read crash marker", "error", err)
	}
	if crash != nil {
		logger.Warn("previous run crashed", "reason", crash.Reason, "at", crash.At)
	}

	source, stopSource, err := newLifecycleSource(cfg, logger)
	if err != nil {
		return err
	}
	defer stopSource()

	holder := appinfo.Default()
	loop := mainloop.New(mainloop.WithPanicHandler(crashmark.PanicHandler(st.kv, os.Getpid(), logger)))
	tracker := startup.NewTracker(startup.WithHolder(holder), startup.WithLogger(logger))
	recv := newEventRecorder(st.db, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runDuration)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// The loop only stops once the watchdog is closed.
		defer loop.Stop()

		// First screen: startup ends once it is shown.
		loop.Post(func() {
			holder.ScreenOpened("Home")
			tracker.Finish()
		})

		w, err := hang.Start(gctx, hang.Config{
			Threshold:          cfg.Threshold,
			ProbeInterval:      cfg.ProbeInterval,
			Receiver:           recv,
			Store:              st.kv,
			Startup:            tracker,
			Lifecycle:          source,
			Foreground:         loop,
			DidCrashPreviously: crash != nil,
			ReportInDebug:      cfg.ReportInDebug,
			AppInfo:            holder,
			Logger:             logger,
		})
		if err != nil {
			return fmt.Errorf("failed to start watchdog: %w", err)
		}
		defer w.Close()

		if w.DidHangPreviously() {
			logger.Info("evidence from a previous hang was found at start")
		}
		logger.Info("watching main loop",
			"threshold", cfg.Threshold,
			"store", cfg.Store,
			"lifecycle", cfg.Lifecycle,
			"pid", os.Getpid())

		return simulateHost(gctx, loop, holder, logger)
	})

	var spinner *output.Spinner
	if runDuration > 0 {
		spinner = output.NewSpinner(os.Stderr, "Watching main loop", runDuration, recv.status)
		spinner.Start()
	}

	// The main loop owns the main goroutine until the watchdog goroutine
	// stops it.
	if err := loop.Run(); err != nil {
		stop()
		g.Wait()
		return fmt.Errorf("main loop failed: %w", err)
	}
	err = g.Wait()

	times := tracker.Times()
	logger.Info("session finished",
		"startup_from_main", times.FromMain,
		"startup_from_process", times.FromProcess)

	if spinner != nil {
		spinner.Stop("Done watching.")
	}
	fmt.Fprint(cmd.OutOrStdout(), output.RenderHangSummary(recv.counts()))
	return err
}

// simulateHost plays the host application until ctx is done: it blocks
// the loop to produce hangs and opens screens in between.
func simulateHost(ctx context.Context, loop *mainloop.Loop, holder *appinfo.Holder, logger *slog.Logger) error {
	if runPanicAfter > 0 {
		time.AfterFunc(runPanicAfter, func() {
			loop.Post(func() { panic("simulated crash on the main loop") })
		})
	}

	if runBlock <= 0 {
		<-ctx.Done()
		return nil
	}

	screen := 0
	block := func() {
		screen++
		name := fmt.Sprintf("Screen%d", screen)
		logger.Debug("blocking main loop", "for", runBlock, "screen", name)
		loop.Post(func() {
			holder.ScreenOpened(name)
			renderSlowly(runBlock)
		})
	}

	block()
	if runBlockEvery <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(runBlockEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			block()
		case <-ctx.Done():
			return nil
		}
	}
}

// renderSlowly stands in for expensive work on the main loop.
func renderSlowly(d time.Duration) {
	time.Sleep(d)
}

// newLifecycleSource builds the configured lifecycle source and a function
// that stops it.
func newLifecycleSource(cfg *config.Config, logger *slog.Logger) (hang.LifecycleSignal, func(), error) {
	switch cfg.Lifecycle {
	case config.LifecycleFile:
		if err := os.MkdirAll(filepath.Dir(cfg.StateFile), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create state directory: %w", err)
		}
		src, err := lifecycle.NewFileSource(cfg.StateFile, lifecycle.WithFileErrorHandler(func(err error) {
			logger.Warn("failed to read state file", "path", cfg.StateFile, "error", err)
		}))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to watch state file: %w", err)
		}
		return src, src.Stop, nil
	case config.LifecycleSignal:
		src := lifecycle.NewSignalSource()
		return src, src.Stop, nil
	default:
		return lifecycle.NewManual(lifecycle.Active), func() {}, nil
	}
}
