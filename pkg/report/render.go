package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A"))
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E06C75"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7F848E"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
)

var columnWidths = []int{14, 8, 10, 10, 10, 10}

func cell(style lipgloss.Style, width int, text string) string {
	return style.Width(width).Render(text)
}

func flag(ok bool, yes, no string) string {
	if ok {
		return okStyle.Render(yes)
	}

	return badStyle.Render(no)
}

func recommendationStyle(r Recommendation) lipgloss.Style {
	switch r {
	case RecommendationExcellent:
		return okStyle
	case RecommendationGood:
		return warnStyle
	default:
		return badStyle
	}
}

// Render writes a human readable report.
func Render(w io.Writer, vr *ValidationReport) error {
	var sb strings.Builder

	mode := "live submission"
	if vr.DryRun {
		mode = "dry run"
	}

	sb.WriteString(titleStyle.Render("Builder coverage report"))
	sb.WriteString(mutedStyle.Render(fmt.Sprintf("  (%s, bundle %s)", mode, vr.BundleHash)))
	sb.WriteString("\n\n")

	headers := []string{"BUILDER", "SHARE", "HEALTH", "SELECTED", "RESULT", "LATENCY"}
	for i, h := range headers {
		sb.WriteString(cell(headerStyle, columnWidths[i], h))
	}

	sb.WriteString("\n")

	for _, line := range vr.Builders {
		result := mutedStyle.Render("-")
		if line.Submitted {
			result = flag(line.Accepted, "accepted", "rejected")
		}

		selected := mutedStyle.Render("no")
		if line.Selected {
			selected = okStyle.Render("yes")
		}

		row := []string{
			line.Name,
			fmt.Sprintf("%.1f%%", line.Share*100),
			flag(line.Healthy, "ok", "down"),
			selected,
			result,
			line.Latency.Round(time.Millisecond).String(),
		}

		for i, c := range row {
			sb.WriteString(cell(lipgloss.NewStyle(), columnWidths[i], c))
		}

		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Healthy builders: %d/%d, selected: %d (top %d)\n",
		vr.HealthyCount, vr.ActiveCount, vr.SelectedCount, vr.TopN))
	sb.WriteString(fmt.Sprintf("Coverage:         %.1f%%\n", vr.Coverage*100))
	sb.WriteString(fmt.Sprintf("Concentration:    %.4f (HHI)\n", vr.Concentration))
	sb.WriteString("Recommendation:   ")
	sb.WriteString(recommendationStyle(vr.Recommendation).Bold(true).Render(string(vr.Recommendation)))
	sb.WriteString("\n")

	for _, msg := range vr.Messages {
		sb.WriteString(warnStyle.Render("! " + msg))
		sb.WriteString("\n")
	}

	_, err := io.WriteString(w, sb.String())

	return err
}
