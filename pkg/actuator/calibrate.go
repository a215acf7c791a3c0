package actuator

import (
	"context"
	"fmt"
	"time"
)

// DutySetter drives every ESC with the same raw duty cycle.
type DutySetter interface {
	SetDutyPercent(pct float64) error
}

// CalibrationStep holds one duty cycle for a while.
type CalibrationStep struct {
	Name    string
	Percent float64
	Hold    time.Duration
}

// DefaultCalibration teaches the ESCs their throttle range: full, zero,
// then neutral so they arm at stop.
func DefaultCalibration() []CalibrationStep {
	return []CalibrationStep{
		{Name: "full", Percent: DutyMax, Hold: 4 * time.Second},
		{Name: "zero", Percent: DutyMin, Hold: 3 * time.Second},
		{Name: "neutral", Percent: DutyNeutral, Hold: 4 * time.Second},
	}
}

// Calibrate plays steps in order. onStep, if set, is called as each step
// starts. If ctx is cancelled part way, the outputs are returned to
// neutral before the context error is returned.
func Calibrate(ctx context.Context, out DutySetter, steps []CalibrationStep, onStep func(CalibrationStep)) error {
	for _, step := range steps {
		if onStep != nil {
			onStep(step)
		}
		if err := out.SetDutyPercent(step.Percent); err != nil {
			return fmt.Errorf("calibration step %s: %w", step.Name, err)
		}

		timer := time.NewTimer(step.Hold)
		select {
		case <-ctx.Done():
			timer.Stop()
			if err := out.SetDutyPercent(DutyNeutral); err != nil {
				return fmt.Errorf("neutral after abort: %w", err)
			}
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}
