// Package alerts evaluates vital readings against machine thresholds and
// dispatches abnormal-reading notifications.
package alerts

import (
	"fmt"

	"procodus.dev/machine-monitor/internal/store"
)

// Evaluation is the outcome of checking one reading against the thresholds.
type Evaluation struct {
	// Abnormal is true when at least one dimension breaches its threshold.
	Abnormal bool

	// Reasons holds one human-readable line per breached dimension, in the
	// order temperature, vibration, pressure.
	Reasons []string
}

// Evaluate checks each non-nil dimension of the vital against the machine's
// ceilings. A dimension breaches only when strictly greater than its
// threshold.
func Evaluate(v store.Vital, t store.Thresholds) Evaluation {
	var reasons []string

	if v.Temperature != nil && *v.Temperature > t.Temperature {
		reasons = append(reasons, breach("temperature", *v.Temperature, t.Temperature))
	}
	if v.Vibration != nil && *v.Vibration > t.Vibration {
		reasons = append(reasons, breach("vibration", *v.Vibration, t.Vibration))
	}
	if v.Pressure != nil && *v.Pressure > t.Pressure {
		reasons = append(reasons, breach("pressure", *v.Pressure, t.Pressure))
	}

	return Evaluation{
		Abnormal: len(reasons) > 0,
		Reasons:  reasons,
	}
}

func breach(dimension string, value, threshold float64) string {
	return fmt.Sprintf("%s %.1f exceeds threshold %.1f", dimension, value, threshold)
}
