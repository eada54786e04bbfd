package dedupe

import "imagededup/types"

// EventSink receives engine callbacks so a presentation layer can render
// progress and errors. All callbacks arrive from a single goroutine.
type EventSink interface {
	// LayerStarted fires before a layer's hashing and detection begin
	LayerStarted(layer Layer)

	// GroupFormed fires once per detected duplicate group
	GroupFormed(group *types.DuplicateGroup)

	// GroupResolved fires after a group's plan is applied or skipped
	GroupResolved(plan *types.ResolutionPlan, applied bool)

	// FileMoved fires after an image (and sidecar) reached quarantine
	FileMoved(record *types.ImageRecord, imageDest, sidecarDest string)

	// FileError fires for any per-file failure; the session continues
	FileError(path string, err error)
}

// NopSink discards all events
type NopSink struct{}

func (NopSink) LayerStarted(Layer) {}

func (NopSink) GroupFormed(*types.DuplicateGroup) {}

func (NopSink) GroupResolved(*types.ResolutionPlan, bool) {}

func (NopSink) FileMoved(*types.ImageRecord, string, string) {}

func (NopSink) FileError(string, error) {}

// Decision is the reviewer's answer to one presented resolution plan
type Decision int

const (
	// DecisionApplyLayer commits this plan and every remaining plan in
	// the current layer without further prompts
	DecisionApplyLayer Decision = iota

	// DecisionApplyGroup commits this plan only and keeps prompting
	DecisionApplyGroup

	// DecisionSkipGroup leaves the group's files untouched and moves on
	DecisionSkipGroup

	// DecisionSkipLayer leaves every remaining group of the current layer
	// untouched; their members stay eligible for looser layers
	DecisionSkipLayer

	// DecisionAbort stops the session; applied groups stay applied,
	// everything else is left as found
	DecisionAbort
)

// DecisionFunc presents one plan and returns the reviewer's decision.
// groupNum counts from 1 within the current layer.
type DecisionFunc func(layer Layer, plan *types.ResolutionPlan, groupNum, totalGroups int) Decision
