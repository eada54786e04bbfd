package console

import (
	"fmt"
	"io"
	"path/filepath"

	"imagededup/dedupe"
	"imagededup/types"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// Presenter renders engine events for a terminal. It implements
// dedupe.EventSink; all callbacks arrive from one goroutine.
type Presenter struct {
	out io.Writer
}

// NewPresenter creates a presenter writing to out
func NewPresenter(out io.Writer) *Presenter {
	return &Presenter{out: out}
}

// LayerStarted prints the layer banner with its confidence description
func (p *Presenter) LayerStarted(layer dedupe.Layer) {
	fmt.Fprintln(p.out)
	color.New(color.Bold).Fprintf(p.out, "Layer: %s\n", layer.Name)
	fmt.Fprintf(p.out, "What this finds: %s\n", layer.Description)
	fmt.Fprintf(p.out, "Risk level: %s\n", layer.Risk)
}

// GroupFormed is quiet; groups are rendered when their plan is presented
// or resolved
func (p *Presenter) GroupFormed(group *types.DuplicateGroup) {}

// GroupResolved reports the outcome of one group
func (p *Presenter) GroupResolved(plan *types.ResolutionPlan, applied bool) {
	if !applied {
		fmt.Fprintf(p.out, "  kept all %d files of group (%s)\n",
			len(plan.Group.Members), filepath.Base(plan.Keeper.Path))
		return
	}
	color.New(color.FgGreen).Fprintf(p.out, "  keeping %s", filepath.Base(plan.Keeper.Path))
	fmt.Fprintf(p.out, " — %s\n", plan.Reason)
}

// FileMoved reports one relocation into quarantine
func (p *Presenter) FileMoved(record *types.ImageRecord, imageDest, sidecarDest string) {
	if sidecarDest != "" {
		fmt.Fprintf(p.out, "  -> %s moved to quarantine (with caption)\n", filepath.Base(record.Path))
	} else {
		fmt.Fprintf(p.out, "  -> %s moved to quarantine\n", filepath.Base(record.Path))
	}
}

// FileError reports a per-file failure; the session keeps going
func (p *Presenter) FileError(path string, err error) {
	color.New(color.FgRed).Fprintf(p.out, "  error: %v\n", err)
}

// PrintSummary renders the final session summary
func (p *Presenter) PrintSummary(summary *types.SessionSummary) {
	fmt.Fprintln(p.out)
	color.New(color.Bold).Fprintln(p.out, "DEDUPLICATION COMPLETE")
	if summary.Aborted {
		color.New(color.FgYellow).Fprintln(p.out, "(session aborted; groups already applied remain applied)")
	}
	fmt.Fprintln(p.out)

	fmt.Fprintf(p.out, "  Images scanned:    %d\n", summary.Scanned)
	fmt.Fprintf(p.out, "  Groups found:      %d\n", summary.GroupsFound)
	fmt.Fprintf(p.out, "  Files kept:        %d\n", summary.Kept)
	fmt.Fprintf(p.out, "  Files moved:       %d\n", summary.Moved)
	fmt.Fprintf(p.out, "  Space reclaimed:   %s\n", humanize.Bytes(uint64(summary.BytesReclaimed)))
	if summary.SkippedGroups > 0 {
		fmt.Fprintf(p.out, "  Groups skipped:    %d\n", summary.SkippedGroups)
	}
	if summary.SkippedLayers > 0 {
		fmt.Fprintf(p.out, "  Layers skipped:    %d\n", summary.SkippedLayers)
	}
	if summary.Errors > 0 {
		fmt.Fprintf(p.out, "  Errors:            %d (see log)\n", summary.Errors)
	}

	if len(summary.MovedByLayer) > 0 {
		fmt.Fprintln(p.out, "\n  By layer:")
		for _, layer := range layerOrder(summary.MovedByLayer) {
			fmt.Fprintf(p.out, "    %-12s %d duplicates\n", layer, summary.MovedByLayer[layer])
		}
	}
	fmt.Fprintln(p.out)
}

// layerOrder returns the catalogue layer names that actually moved files,
// in catalogue order
func layerOrder(byLayer map[string]int) []string {
	ordered := []string{"EXACT", "NEAR-EXACT", "STRUCTURAL", "WAVELET", "SIMILAR"}
	var present []string
	for _, name := range ordered {
		if byLayer[name] > 0 {
			present = append(present, name)
		}
	}
	return present
}

// Progress returns a hashing progress callback that redraws in place
func (p *Presenter) Progress(label string) func(done, total int) {
	return func(done, total int) {
		fmt.Fprintf(p.out, "\r%s: %d/%d", label, done, total)
		if done == total {
			fmt.Fprintln(p.out)
		}
	}
}
