package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-brawler/internal/config"
	"github.com/teslashibe/go-brawler/internal/log"
	"github.com/teslashibe/go-brawler/pkg/actuator"
	"github.com/teslashibe/go-brawler/pkg/arbiter"
	"github.com/teslashibe/go-brawler/pkg/channels"
	"github.com/teslashibe/go-brawler/pkg/control"
	"github.com/teslashibe/go-brawler/pkg/ibus"
	"github.com/teslashibe/go-brawler/pkg/mixer"
	"github.com/teslashibe/go-brawler/pkg/receiver"
	"github.com/teslashibe/go-brawler/pkg/vision"
	"github.com/teslashibe/go-brawler/pkg/web"
)

var (
	runDryRun     bool
	runVerbose    bool
	runReplay     string
	runReplayLoop bool
	runNoVision   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the control loop",
	Long: `Starts the receiver link, the camera tracker, the dashboard and the
control loop. Ctrl-C stops every ESC before exiting.

Use --dry-run to log actuator commands instead of driving GPIO, and
--replay to feed a recorded iBus capture instead of the serial port.`,
	RunE: runRobot,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "record actuator commands instead of driving the ESCs")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "with --dry-run, log every actuator write")
	runCmd.Flags().StringVar(&runReplay, "replay", "", "read iBus bytes from a capture file instead of the serial port")
	runCmd.Flags().BoolVar(&runReplayLoop, "loop", false, "with --replay, restart the capture at EOF")
	runCmd.Flags().BoolVar(&runNoVision, "no-vision", false, "run without the camera")
}

func runRobot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runNoVision {
		cfg.Vision.Enabled = false
	}
	logger := log.Component("main")

	ibcfg, err := cfg.IBus()
	if err != nil {
		return err
	}
	mx, err := mixer.New(cfg.Drive.Layout)
	if err != nil {
		return err
	}
	store := channels.NewStore(ibcfg.Channels)
	arb := arbiter.New(cfg.Channels)

	src, link, err := openLink(cfg, ibcfg)
	if err != nil {
		return err
	}
	pump := receiver.NewPump(src, ibus.NewDecoder(ibcfg), store, cfg.Receiver.Backoff)

	bank, err := openActuators(cfg, mx)
	if err != nil {
		link.Close()
		return err
	}

	deps := control.Deps{
		Store:    store,
		Arbiter:  arb,
		Mixer:    mx,
		Tracking: cfg.Tracking.Config,
		Hardware: control.Hardware{Actuators: bank, Link: link},
	}
	tracker := openTracker(cfg)
	if tracker != nil {
		deps.Tracker = tracker
	}

	loop, err := control.New(cfg.Control, deps)
	if err != nil {
		bank.Close()
		link.Close()
		if tracker != nil {
			tracker.Close()
		}
		return err
	}
	loop.LinkStats = pump.Stats

	var (
		srv   *web.Server
		webLn net.Listener
	)
	if cfg.Web.Enabled {
		srv = web.NewServer(cfg.Web.Addr, web.Deps{
			Status:    loop,
			Store:     store,
			Killer:    arb,
			LinkStats: pump.Stats,
		})
		// Bind before anything runs: a busy port fails here, not by
		// stopping a running loop.
		webLn, err = srv.Listen()
		if err != nil {
			bank.Close()
			link.Close()
			if tracker != nil {
				tracker.Close()
			}
			return err
		}
		loop.OnStatus = srv.PublishStatus
		if tracker != nil {
			tracker.OnFrame = srv.PublishFrame
		}
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	logger.Info("brawler starting",
		"run_id", loop.RunID(),
		"layout", mx.Name(),
		"checksum", ibcfg.Checksum,
		"dry_run", runDryRun,
		"vision", tracker != nil,
		"web", cfg.Web.Enabled,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pump.Run(gctx) })
	g.Go(func() error { return loop.Run(gctx) })
	if tracker != nil {
		g.Go(func() error { return tracker.Run(gctx) })
	}
	if srv != nil {
		g.Go(func() error { return serveDashboard(gctx, srv, webLn) })
	}

	err = g.Wait()
	if tracker != nil {
		err = errors.Join(err, tracker.Close())
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	logger.Info("brawler stopped", "link", pump.Stats(), "err", err)
	if rec, ok := bank.(*actuator.Recorder); ok {
		logger.Info("dry run summary", "writes", rec.Writes(), "closed", rec.Closed())
	}
	return err
}

// serveDashboard runs the dashboard on an already bound listener. The
// dashboard is not safety critical, so a failure while serving is logged
// and the control loop keeps running; only ctx ends the run.
func serveDashboard(ctx context.Context, srv *web.Server, ln net.Listener) error {
	if err := srv.Serve(ctx, ln); err != nil {
		log.Component("main").Error("dashboard stopped, robot keeps running", "err", err)
	}
	return nil
}

// openLink returns the receiver byte source and the handle that closes it.
func openLink(cfg *config.Config, ibcfg ibus.Config) (io.Reader, io.Closer, error) {
	if runReplay != "" {
		r, c, err := receiver.OpenReplay(runReplay, ibcfg.FrameSize(), runReplayLoop)
		if err != nil {
			return nil, nil, err
		}
		return r, c, nil
	}
	s := receiver.NewSerial(cfg.Receiver)
	return s, s, nil
}

func openActuators(cfg *config.Config, mx mixer.Mixer) (actuator.Bank, error) {
	if runDryRun {
		return actuator.NewRecorder(mx.Actuators(), runVerbose), nil
	}
	pwm, err := actuator.OpenPWM(cfg.Drive.PWMConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open ESC outputs: %w", err)
	}
	return actuator.NewDedup(pwm), nil
}

// openTracker starts the camera if enabled. A camera that fails to open
// is logged and the robot runs without it: autonomous mode only searches.
func openTracker(cfg *config.Config) *vision.Tracker {
	if !cfg.Vision.Enabled {
		return nil
	}
	logger := log.Component("main")

	cam, err := vision.OpenCamera(cfg.Vision.Config)
	if err != nil {
		logger.Warn("camera unavailable, autonomous mode will only search", "err", err)
		return nil
	}
	det, err := vision.New(cfg.Vision.Config)
	if err != nil {
		cam.Close()
		logger.Warn("detector unavailable, autonomous mode will only search", "err", err)
		return nil
	}
	return vision.NewTracker(cam, det, cfg.Vision.Config, cfg.Tracking.Config)
}
