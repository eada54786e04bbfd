package console

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"imagededup/dedupe"
	"imagededup/types"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// IsInteractive reports whether stdin is attached to a terminal
func IsInteractive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// PromptDecision renders one resolution plan and reads a single-keystroke
// decision. It satisfies dedupe.DecisionFunc.
func (p *Presenter) PromptDecision(layer dedupe.Layer, plan *types.ResolutionPlan, groupNum, totalGroups int) dedupe.Decision {
	fmt.Fprintf(p.out, "\n  [%d/%d] %d files are duplicates (%s layer)\n\n",
		groupNum, totalGroups, len(plan.Group.Members), layer.Name)
	fmt.Fprintln(p.out, renderPlanTable(plan))
	fmt.Fprintf(p.out, "\n  Recommend keeping: %s\n", filepath.Base(plan.Keeper.Path))
	fmt.Fprintf(p.out, "  Because: %s\n", plan.Reason)
	fmt.Fprintf(p.out, "  This will move %d duplicate(s) to quarantine.\n", len(plan.Relocations))

	for {
		fmt.Fprint(p.out, "\n  (c)ontinue this group, (a)ll in layer, (s)kip group, skip (l)ayer, e(x)it: ")
		choice := readKey()
		fmt.Fprintln(p.out, choice)

		switch choice {
		case "c":
			return dedupe.DecisionApplyGroup
		case "a":
			return dedupe.DecisionApplyLayer
		case "s":
			return dedupe.DecisionSkipGroup
		case "l":
			return dedupe.DecisionSkipLayer
		case "x":
			return dedupe.DecisionAbort
		default:
			fmt.Fprintln(p.out, "  Please press c, a, s, l, or x")
		}
	}
}

// renderPlanTable lays out a group's members with the keep/move verdict
func renderPlanTable(plan *types.ResolutionPlan) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"", "File", "Size", "Dimensions", "Caption"})

	for _, member := range plan.Group.Members {
		verdict := "move"
		if member == plan.Keeper {
			verdict = "KEEP"
		}
		caption := ""
		if member.HasSidecar() {
			caption = "yes"
		}
		tw.AppendRow(table.Row{
			verdict,
			filepath.Base(member.Path),
			humanize.Bytes(uint64(member.Size)),
			fmt.Sprintf("%dx%d", member.Width, member.Height),
			caption,
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})

	return tw.Render()
}

// readKey reads a single keystroke without waiting for Enter, falling back
// to line input when raw mode is unavailable
func readKey() string {
	fd := int(os.Stdin.Fd())

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		if len(line) > 0 {
			return string(line[0])
		}
		return ""
	}
	defer term.Restore(fd, oldState)

	buf := make([]byte, 1)
	if _, err := os.Stdin.Read(buf); err != nil {
		return ""
	}

	// Ctrl-C in raw mode arrives as a byte; treat it as exit
	if buf[0] == 3 {
		return "x"
	}

	return string(buf)
}
