package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-brawler/pkg/actuator"
)

var (
	calibrateYes    bool
	calibrateDryRun bool
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Teach the ESCs their throttle range",
	Long: `Sends full, zero and then neutral throttle to every ESC, drive and weapon
alike. Power the ESCs up during the first step.

Remove the weapon and lift the wheels off the ground first: the motors
may spin. Pass --yes to confirm.`,
	RunE: runCalibrate,
}

func init() {
	calibrateCmd.Flags().BoolVar(&calibrateYes, "yes", false, "confirm the robot is safe to spin up")
	calibrateCmd.Flags().BoolVar(&calibrateDryRun, "dry-run", false, "print the sequence without driving GPIO")
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	if !calibrateYes && !calibrateDryRun {
		return errors.New("calibration spins the motors; re-run with --yes once the robot is safe")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var out interface {
		actuator.DutySetter
		Close() error
	}
	if calibrateDryRun {
		out = actuator.NewRecorder(len(cfg.Drive.Pins), true)
	} else {
		bank, err := actuator.OpenPWM(cfg.Drive.PWMConfig)
		if err != nil {
			return fmt.Errorf("failed to open ESC outputs: %w", err)
		}
		out = bank
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	w := cmd.OutOrStdout()
	err = actuator.Calibrate(ctx, out, actuator.DefaultCalibration(), func(step actuator.CalibrationStep) {
		fmt.Fprintf(w, "%-8s %.1f%% duty for %s\n", step.Name, step.Percent, step.Hold)
	})
	return errors.Join(err, out.Close())
}
