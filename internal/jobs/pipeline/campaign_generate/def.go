package campaign_generate

import (
	"context"

	"github.com/Crohnos/dnd-generator/internal/platform/logger"
)

const JobType = "campaign_generate"

// Runner generates a campaign end to end. Run reports false when the campaign
// was already generating or completed; Recover releases a campaign whose
// previous run died mid-generation.
type Runner interface {
	Run(ctx context.Context, campaignID uint) (bool, error)
	Recover(ctx context.Context, campaignID uint, reason string) (bool, error)
}

// InterruptedReason is recorded on a campaign released by a reclaimed job.
const InterruptedReason = "generation interrupted"

type Pipeline struct {
	log    *logger.Logger
	runner Runner
}

func New(baseLog *logger.Logger, runner Runner) *Pipeline {
	return &Pipeline{
		log:    baseLog.With("job", JobType),
		runner: runner,
	}
}

func (p *Pipeline) Type() string { return JobType }
