package dedupe

import (
	"errors"
	"path/filepath"
	"sort"

	"imagededup/config"
	"imagededup/fileops"
	"imagededup/imageprocessor"
	"imagededup/journal"
	"imagededup/logging"
	"imagededup/scanner"
	"imagededup/signalhandler"
	"imagededup/types"

	"github.com/google/uuid"
)

// State is the session controller's observable state
type State int

const (
	StateIdle State = iota
	StateLayerPending
	StateAwaitingDecision
	StateApplying
	StateCompleted
	StateAborted
)

// String returns a readable state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLayerPending:
		return "layer-pending"
	case StateAwaitingDecision:
		return "awaiting-decision"
	case StateApplying:
		return "applying"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Options carries everything a session needs. All configuration is passed
// explicitly; the engine reads no ambient state.
type Options struct {
	// Directory is the dataset directory to deduplicate
	Directory string

	// Config holds thresholds, worker count, and policies
	Config config.Config

	// Unattended applies every plan across every layer without prompting
	Unattended bool

	// DryRun detects and plans but never touches the filesystem
	DryRun bool

	// Events receives engine callbacks; nil discards them
	Events EventSink

	// Decide presents plans in interactive mode; nil falls back to
	// unattended behavior
	Decide DecisionFunc

	// Signal optionally provides the external content signal for scoring
	Signal SignalFunc

	// Progress receives hashing progress updates; may be nil
	Progress func(done, total int)

	// Journal, when set, records applied moves for later undo
	Journal *journal.Journal
}

// Session drives the layer cascade: hash, detect, plan, review, apply.
// Everything after the hashing pool runs on the calling goroutine so group
// decisions and file moves stay deterministic.
type Session struct {
	opts      Options
	events    EventSink
	decide    DecisionFunc
	hasher    *imageprocessor.Hasher
	planner   *Planner
	relocator *fileops.Relocator
	summary   *types.SessionSummary
	state     State
	workers   int

	pool    []*types.ImageRecord
	keepers map[string]*types.ImageRecord
}

// NewSession prepares a session without touching the filesystem
func NewSession(opts Options) *Session {
	events := opts.Events
	if events == nil {
		events = NopSink{}
	}

	decide := opts.Decide
	if decide == nil || opts.Unattended {
		decide = func(Layer, *types.ResolutionPlan, int, int) Decision {
			return DecisionApplyLayer
		}
	}

	workers := opts.Config.Workers
	if workers < 1 {
		workers = signalhandler.GetOptimalProcs()
	}

	hasher := imageprocessor.NewHasher()
	quarantine := filepath.Join(opts.Directory, opts.Config.QuarantineDir)
	scorer := NewScorer(hasher, opts.Signal)

	return &Session{
		opts:      opts,
		events:    events,
		decide:    decide,
		hasher:    hasher,
		planner:   NewPlanner(scorer, quarantine),
		relocator: fileops.NewRelocator(quarantine),
		summary:   types.NewSessionSummary(uuid.NewString()),
		state:     StateIdle,
		workers:   workers,
		keepers:   make(map[string]*types.ImageRecord),
	}
}

// State returns the controller's current state
func (s *Session) State() State {
	return s.state
}

// Run is the engine entry point: scan the directory, run every detection
// layer in catalogue order, and resolve each duplicate group. The returned
// summary reflects partial work when the reviewer aborts; an abort is not
// an error.
func Run(opts Options) (*types.SessionSummary, error) {
	return NewSession(opts).Run()
}

// Run executes the session. See the package-level Run.
func (s *Session) Run() (*types.SessionSummary, error) {
	records, err := scanner.ScanDirectory(scanner.ScanOptions{
		Directory:     s.opts.Directory,
		QuarantineDir: s.opts.Config.QuarantineDir,
	})
	if err != nil {
		return nil, err
	}

	s.summary.Scanned = len(records)
	s.pool = records
	logging.LogInfo("Session %s: scanned %d images in %s", s.summary.SessionID, len(records), s.opts.Directory)

	for _, layer := range Catalogue(s.opts.Config.Thresholds) {
		aborted := s.runLayer(layer)
		if aborted {
			s.state = StateAborted
			s.summary.Aborted = true
			logging.LogInfo("Session %s aborted during layer %s", s.summary.SessionID, layer.Name)
			return s.summary, nil
		}
	}

	s.state = StateCompleted
	return s.summary, nil
}

// runLayer runs one detection layer end to end and reports whether the
// reviewer aborted the session
func (s *Session) runLayer(layer Layer) bool {
	s.state = StateLayerPending
	s.events.LayerStarted(layer)

	candidates := s.layerCandidates()

	var failures []scanner.HashError
	if layer.Exact {
		failures = scanner.EnsureContentHashes(candidates, s.hasher, s.workers, s.opts.Progress)
	} else {
		failures = scanner.EnsureFingerprints(candidates, layer.Kind, s.hasher, s.workers, s.opts.Progress)
	}
	for _, f := range failures {
		s.summary.Errors++
		s.events.FileError(f.Record.Path, f.Err)
	}

	groups := layer.Detect(candidates)
	if len(groups) == 0 {
		return false
	}
	s.summary.GroupsFound += len(groups)

	plans := make([]*types.ResolutionPlan, 0, len(groups))
	for _, group := range groups {
		s.events.GroupFormed(group)

		plan, scoringErrs := s.planner.Plan(group)
		for _, serr := range scoringErrs {
			s.summary.Errors++
			s.events.FileError(scoringErrPath(serr), serr)
		}
		plans = append(plans, plan)
	}

	// Stable review order: by keeper path
	sort.Slice(plans, func(i, j int) bool {
		return plans[i].Keeper.Path < plans[j].Keeper.Path
	})

	applyAll := s.opts.Unattended
	aborted := false
	skippedLayer := false

	// Only concluded groups (applied or individually skipped) claim their
	// members; a layer skip leaves the rest in the pool for looser layers
	var concluded []*types.DuplicateGroup

	for i, plan := range plans {
		if !applyAll {
			s.state = StateAwaitingDecision
			switch s.decide(layer, plan, i+1, len(plans)) {
			case DecisionApplyGroup:
				// apply this plan only; keep prompting
			case DecisionSkipGroup:
				s.summary.SkippedGroups++
				s.events.GroupResolved(plan, false)
				concluded = append(concluded, plan.Group)
				continue
			case DecisionSkipLayer:
				s.summary.SkippedLayers++
				skippedLayer = true
			case DecisionAbort:
				aborted = true
			case DecisionApplyLayer:
				applyAll = true
			}
			// Abort is cooperative: honored between group applications,
			// never mid-relocation
			if aborted || skippedLayer {
				break
			}
		}

		s.state = StateApplying
		s.apply(layer, plan)
		concluded = append(concluded, plan.Group)
	}

	// Concluded records leave the ungrouped pool, applied or not, so no
	// record ever belongs to two concluded groups
	s.removeFromPool(concluded)

	return aborted
}

// layerCandidates returns the ungrouped pool, plus the keepers of applied
// groups when the rescan policy re-admits them into looser layers
func (s *Session) layerCandidates() []*types.ImageRecord {
	if !s.opts.Config.RescanKeepers || len(s.keepers) == 0 {
		return s.pool
	}

	candidates := make([]*types.ImageRecord, 0, len(s.pool)+len(s.keepers))
	candidates = append(candidates, s.pool...)
	for _, keeper := range s.keepers {
		candidates = append(candidates, keeper)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Path < candidates[j].Path
	})
	return candidates
}

// apply commits one plan: relocate every loser with its sidecar, journal
// the moves, and account for the keeper
func (s *Session) apply(layer Layer, plan *types.ResolutionPlan) {
	if s.opts.DryRun {
		s.events.GroupResolved(plan, false)
		return
	}

	for _, rel := range plan.Relocations {
		result, err := s.relocator.Move(rel.Record.Path, rel.Record.SidecarPath, rel.Destination)
		if err != nil {
			s.summary.Errors++
			s.events.FileError(rel.Record.Path, err)

			// A partial failure may still have relocated the image half;
			// journal it so undo can bring it back
			if result.ImageDest == "" {
				continue
			}
		}

		s.summary.Moved++
		s.summary.BytesReclaimed += result.Bytes
		s.summary.MovedByLayer[layer.Name]++
		s.events.FileMoved(rel.Record, result.ImageDest, result.SidecarDest)
		logging.LogFileMoved(rel.Record.Path, result.ImageDest, rel.Record.SidecarPath)

		if s.opts.Journal != nil {
			move := journal.Move{
				SessionID:          s.summary.SessionID,
				Layer:              layer.Name,
				Reason:             plan.Reason,
				Source:             rel.Record.Path,
				Destination:        result.ImageDest,
				SidecarSource:      rel.Record.SidecarPath,
				SidecarDestination: result.SidecarDest,
				Bytes:              result.Bytes,
			}
			if jerr := s.opts.Journal.RecordMove(move); jerr != nil {
				logging.LogWarning("Cannot journal move of %s: %v", rel.Record.Path, jerr)
			}
		}
	}

	s.summary.Kept++
	s.keepers[plan.Keeper.Path] = plan.Keeper
	s.events.GroupResolved(plan, true)
}

// removeFromPool drops all members of the given groups from the ungrouped
// pool
func (s *Session) removeFromPool(groups []*types.DuplicateGroup) {
	claimed := make(map[*types.ImageRecord]bool)
	for _, group := range groups {
		for _, member := range group.Members {
			claimed[member] = true
		}
	}

	remaining := s.pool[:0]
	for _, record := range s.pool {
		if !claimed[record] {
			remaining = append(remaining, record)
		}
	}
	s.pool = remaining
}

// scoringErrPath extracts the failing path from a scoring error
func scoringErrPath(err error) string {
	var sfe *types.ScoringFallbackError
	if errors.As(err, &sfe) {
		return sfe.Path
	}
	return ""
}
