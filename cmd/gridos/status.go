package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gridos/internal/kernel"
)

var (
	statusTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	statusLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	statusBox   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// renderStatus draws the kernel's counters as a terminal panel. Called only
// from the driver goroutine; Kernel.Stats is not safe from anywhere else.
func renderStatus(k *kernel.Kernel) string {
	st := k.Stats()

	var b strings.Builder
	b.WriteString(statusTitle.Render("gridos"))
	fmt.Fprintf(&b, "  tick %d\n", st.Tick)

	fmt.Fprintf(&b, "%s %d/%d  %s %d/%d\n",
		statusLabel.Render("tic"), st.LastTic, st.MaxTic,
		statusLabel.Render("depth"), st.LastDepth, st.MaxDepth)
	fmt.Fprintf(&b, "%s active=%d yields=%d done=%d\n",
		statusLabel.Render("co "), st.Active, st.Yields, st.Completed)
	fmt.Fprintf(&b, "%s in=%d out=%d dropped=%d\n",
		statusLabel.Render("msg"), st.MsgIn, st.MsgOut, st.Dropped)

	if faults := st.CoFaults + st.HandlerErr + st.ModuleErr + st.TopFaults; faults > 0 {
		fmt.Fprintf(&b, "%s co=%d handler=%d module=%d top=%d\n",
			statusWarn.Render("faults"), st.CoFaults, st.HandlerErr, st.ModuleErr, st.TopFaults)
	}
	if txt := k.StatusText(); txt != "" {
		b.WriteString(statusLabel.Render(strings.TrimRight(txt, "\n")))
		b.WriteString("\n")
	}

	return statusBox.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}
