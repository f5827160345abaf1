package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nse-metrics/internal/model"
)

// maxListedErrors caps the per-symbol errors quoted in an alert body.
const maxListedErrors = 5

// RunAlerter turns finished calculation runs into alerts.
type RunAlerter struct {
	notifier Notifier
	// QuietSuccess suppresses INFO alerts for clean runs.
	QuietSuccess bool
}

// NewRunAlerter creates a RunAlerter sending through n.
func NewRunAlerter(n Notifier) *RunAlerter {
	return &RunAlerter{notifier: n}
}

// PublishRun sends the alert for res.
func (a *RunAlerter) PublishRun(ctx context.Context, res *model.RunResult) error {
	alert := AlertFor(res)
	if a.QuietSuccess && alert.Level == AlertInfo {
		return nil
	}
	return a.notifier.Send(ctx, alert)
}

// AlertFor maps a run to an alert: CRITICAL when the run failed, WARNING
// when it succeeded with skipped symbols, INFO otherwise.
func AlertFor(res *model.RunResult) Alert {
	var (
		level AlertLevel
		title string
		body  strings.Builder
	)
	switch {
	case !res.Success:
		level, title = AlertCritical, "Daily metrics run failed for "+res.TargetDate
	case len(res.Errors) > 0:
		level, title = AlertWarning, "Daily metrics run completed with errors for "+res.TargetDate
	default:
		level, title = AlertInfo, "Daily metrics calculated for "+res.TargetDate
	}

	fmt.Fprintf(&body, "inserted=%d updated=%d skipped=%d symbols=%d duration=%s",
		res.RecordsInserted, res.RecordsUpdated, res.Skipped, res.Symbols, res.Duration.Round(time.Millisecond))
	if res.Breadth != nil {
		fmt.Fprintf(&body, "\nbreadth up=%d down=%d mcclellan=%.2f",
			res.Breadth.UpCount, res.Breadth.DownCount, res.Breadth.McClellanOscillator)
	}
	for k, e := range res.Errors {
		if k == maxListedErrors {
			fmt.Fprintf(&body, "\n... and %d more", len(res.Errors)-k)
			break
		}
		body.WriteString("\n- " + e)
	}

	alert := newAlert(level, title, body.String())
	alert.RunID = res.RunID
	alert.TargetDate = res.TargetDate
	return alert
}
