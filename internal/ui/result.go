package ui

import (
	"strings"
)

// Detail is one key/value line of a result box.
type Detail struct {
	Key   string
	Value string
}

// RenderSuccess renders a success box with details in the given order.
func RenderSuccess(title string, details []Detail, width int) string {
	lines := []string{SuccessTitleStyle.Render(SuccessMarker + "  " + title)}
	if len(details) > 0 {
		lines = append(lines, "")
	}
	for _, d := range details {
		lines = append(lines, KeyStyle.Render(d.Key+":")+" "+ValueStyle.Render(d.Value))
	}
	return boxStyle(SuccessColor, width).Render(strings.Join(lines, "\n"))
}

// RenderFailure renders an error box with optional troubleshooting hints.
func RenderFailure(title string, err error, hints []string, width int) string {
	lines := []string{ErrorTitleStyle.Render(FailureMarker + "  " + title)}
	if err != nil {
		lines = append(lines, "", ErrorMessageStyle.Render("Error: "+err.Error()))
	}
	if len(hints) > 0 {
		lines = append(lines, "", HintStyle.Bold(true).Render("Troubleshooting:"))
		for _, h := range hints {
			lines = append(lines, HintStyle.Render("  • "+h))
		}
	}
	return boxStyle(ErrorColor, width).Render(strings.Join(lines, "\n"))
}
