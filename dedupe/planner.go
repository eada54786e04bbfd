package dedupe

import (
	"fmt"
	"path/filepath"

	"imagededup/types"

	"github.com/dustin/go-humanize"
)

// Planner turns a duplicate group into a side-effect-free resolution plan:
// one keeper chosen by quality, everything else bound for quarantine.
type Planner struct {
	scorer        *Scorer
	quarantineDir string
}

// NewPlanner creates a planner that routes losers into quarantineDir
func NewPlanner(scorer *Scorer, quarantineDir string) *Planner {
	return &Planner{scorer: scorer, quarantineDir: quarantineDir}
}

// Plan selects the keeper for a group and produces relocations for every
// other member, preserving original basenames (the relocator suffixes on
// collision at apply time). No filesystem mutation happens here. Scoring
// fallbacks are returned so the session can surface them.
func (p *Planner) Plan(group *types.DuplicateGroup) (*types.ResolutionPlan, []error) {
	var scoringErrs []error

	qualities := make(map[*types.ImageRecord]Quality, len(group.Members))
	for _, member := range group.Members {
		q, err := p.scorer.Score(member)
		if err != nil {
			scoringErrs = append(scoringErrs, err)
		}
		qualities[member] = q
	}

	keeper := group.Members[0]
	for _, member := range group.Members[1:] {
		if qualities[member].Better(qualities[keeper]) {
			keeper = member
		}
	}

	plan := &types.ResolutionPlan{
		Group:  group,
		Keeper: keeper,
	}

	// Members are already in path order, so relocations are deterministic
	var runnerUp *types.ImageRecord
	for _, member := range group.Members {
		if member == keeper {
			continue
		}
		if runnerUp == nil || qualities[member].Better(qualities[runnerUp]) {
			runnerUp = member
		}
		plan.Relocations = append(plan.Relocations, types.Relocation{
			Record:      member,
			Destination: filepath.Join(p.quarantineDir, filepath.Base(member.Path)),
		})
	}

	plan.Reason = explainChoice(qualities[keeper], qualities[runnerUp], keeper, runnerUp)

	return plan, scoringErrs
}

// explainChoice names the criterion that decided between the keeper and its
// closest competitor
func explainChoice(kq, rq Quality, keeper, runnerUp *types.ImageRecord) string {
	if runnerUp == nil {
		return "only candidate"
	}

	switch {
	case rq.Degraded && !kq.Degraded:
		return "kept the only readable copy"
	case kq.Area > rq.Area:
		return fmt.Sprintf("kept larger resolution: %dx%d vs %dx%d",
			keeper.Width, keeper.Height, runnerUp.Width, runnerUp.Height)
	case kq.HasSignal && rq.HasSignal && kq.Signal > rq.Signal:
		return fmt.Sprintf("kept stronger content signal: %.0f vs %.0f", kq.Signal, rq.Signal)
	case kq.Sharpness > rq.Sharpness:
		return fmt.Sprintf("kept sharper copy: edge energy %.0f vs %.0f", kq.Sharpness, rq.Sharpness)
	case kq.Size > rq.Size:
		return fmt.Sprintf("kept larger file: %s vs %s",
			humanize.Bytes(uint64(kq.Size)), humanize.Bytes(uint64(rq.Size)))
	default:
		return "kept first in path order"
	}
}
