package util

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

const (
	ColorCritical = lipgloss.Color("#cc0000")
	ColorWarning  = lipgloss.Color("#e69138")
	ColorOk       = lipgloss.Color("#04B575")
	ColorUnknown  = lipgloss.Color("#68228B")
)

// KeyValuePair is one line of a key/value listing. Value is rendered with
// Format and colored by Style, which receives the raw values.
type KeyValuePair struct {
	Key    string
	Format string
	Value  []any
	Style  func([]any) lipgloss.Style
}

func OkStyle([]any) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(ColorOk)
}

// PrintKeyValues renders pairs as an aligned listing.
func PrintKeyValues(pairs []KeyValuePair) string {
	width := 0
	for _, kv := range pairs {
		width = max(width, lipgloss.Width(kv.Key))
	}
	keyStyle := lipgloss.NewStyle().Bold(true).Width(width + 2)

	lines := make([]string, len(pairs))
	for idx, kv := range pairs {
		value := fmt.Sprintf(kv.Format, kv.Value...)
		if kv.Style != nil {
			value = kv.Style(kv.Value).Render(value)
		}
		lines[idx] = lipgloss.JoinHorizontal(lipgloss.Top, keyStyle.Render(kv.Key+":"), value)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
