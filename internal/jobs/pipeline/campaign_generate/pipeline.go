package campaign_generate

import (
	"fmt"

	jobrt "github.com/Crohnos/dnd-generator/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	campaignID, ok := jc.PayloadUint("campaign_id")
	if !ok {
		jc.Fail("validate", fmt.Errorf("missing campaign_id"))
		return nil
	}

	// A second attempt only happens when the previous worker stopped
	// heartbeating, so the campaign it left in generating has no live run.
	if jc.Job.Attempts > 1 {
		if _, err := p.runner.Recover(jc.Ctx, campaignID, InterruptedReason); err != nil {
			jc.Fail("recover", err)
			return nil
		}
	}

	jc.Progress("generate", 1)
	began, err := p.runner.Run(jc.Ctx, campaignID)
	if err != nil {
		p.log.Warn("Campaign generation failed", "campaign_id", campaignID, "error", err)
		jc.Fail("generate", err)
		return nil
	}
	if !began {
		p.log.Info("Campaign already generating or generated", "campaign_id", campaignID)
	}

	jc.Succeed("done", map[string]any{
		"campaign_id": campaignID,
		"skipped":     !began,
	})
	return nil
}
