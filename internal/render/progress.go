package render

import (
	"fmt"
	"strings"

	"github.com/acurast/acurast-cli/internal/lifecycle"
	"github.com/acurast/acurast-cli/internal/model"
)

// EventLine renders a lifecycle event as one progress line
func EventLine(ev lifecycle.Event) string {
	if ev.Err != nil {
		if ev.Status == 0 {
			return fmt.Sprintf("✗ Deployment failed: %v", ev.Err)
		}
		return fmt.Sprintf("✗ Deployment failed after %s: %v", ev.Status, ev.Err)
	}

	job := ""
	if ev.JobID != nil {
		job = ev.JobID.String()
	}

	switch ev.Status {
	case model.StatusUploaded:
		return fmt.Sprintf("✓ Uploaded script to %s", ev.Locator)
	case model.StatusPrepared:
		return "✓ Prepared job registration"
	case model.StatusSubmit:
		return fmt.Sprintf("✓ Submitted registration (tx %s)", ev.TxHash)
	case model.StatusWaitingForMatch:
		ids := make([]string, len(ev.JobIDs))
		for i, id := range ev.JobIDs {
			ids[i] = id.String()
		}
		return fmt.Sprintf("□ Waiting for processor match: %s", strings.Join(ids, ", "))
	case model.StatusMatched:
		return fmt.Sprintf("✓ Job %s matched", job)
	case model.StatusAcknowledged:
		return fmt.Sprintf("✓ Job %s acknowledged by %d processor(s)", job, ev.Acknowledged)
	case model.StatusEnvironmentVariablesSet:
		return fmt.Sprintf("✓ Job %s environment variables set", job)
	case model.StatusStarted:
		return fmt.Sprintf("✓ Job %s started", job)
	case model.StatusExecutionDone:
		return fmt.Sprintf("✓ Job %s execution done", job)
	case model.StatusFinalized:
		return fmt.Sprintf("✓ Job %s finalized", job)
	default:
		return fmt.Sprintf("□ %s", ev.Status)
	}
}
