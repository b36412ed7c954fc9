package styles

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/managershow/esteira/internal/config"
	"github.com/managershow/esteira/internal/models"
)

var (
	// Column styles
	ColumnStyle         lipgloss.Style
	TerminalColumnStyle lipgloss.Style
	ColumnWidth         = 26

	// Text styles
	TitleStyle    lipgloss.Style
	SubtitleStyle lipgloss.Style
	LabelStyle    lipgloss.Style // For field labels like "Stage:", "City:"
	ValueStyle    lipgloss.Style // For field values
	CardStyle     lipgloss.Style
)

// Init initializes all CLI styles with the given theme
func Init(t config.Theme) {
	t.ApplyDefaults()

	ColumnStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(t.ColumnBorder)).
		Padding(0, 1).
		Width(ColumnWidth)

	TerminalColumnStyle = ColumnStyle.
		BorderForeground(lipgloss.Color(t.Terminal))

	TitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(t.Title))

	SubtitleStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Subtle))

	LabelStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(t.Accent))

	ValueStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Normal))

	CardStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(t.Accent)).
		Padding(1, 2)
}

// ═══════════════════════════════════════════════════════════════════
// HELPER FUNCTIONS
// ═══════════════════════════════════════════════════════════════════

// ColoredText renders text with a hex color
func ColoredText(text, hexColor string) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(hexColor)).
		Render(text)
}

// RenderBoard lays the columns out side by side
func RenderBoard(title string, columns []models.Column) string {
	rendered := make([]string, 0, len(columns))
	for _, col := range columns {
		rendered = append(rendered, RenderColumn(col))
	}
	board := lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
	return lipgloss.JoinVertical(lipgloss.Left, TitleStyle.Render(title), board)
}

// RenderColumn renders one stage with a card line per entity
func RenderColumn(col models.Column) string {
	var b strings.Builder
	b.WriteString(LabelStyle.Render(fmt.Sprintf("%s (%d)", col.Label, col.Len())))
	for _, e := range col.Entities {
		b.WriteString("\n")
		b.WriteString(ValueStyle.Render(truncate(e.Title, ColumnWidth-4)))
		if sub := entitySubtitle(e); sub != "" {
			b.WriteString("\n  ")
			b.WriteString(SubtitleStyle.Render(truncate(sub, ColumnWidth-6)))
		}
	}
	if col.Len() == 0 {
		b.WriteString("\n")
		b.WriteString(SubtitleStyle.Render("(empty)"))
	}

	if col.Terminal {
		return TerminalColumnStyle.Render(b.String())
	}
	return ColumnStyle.Render(b.String())
}

// RenderEntity renders an entity's fields in a card
func RenderEntity(e *models.Entity, stageLabel string) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(e.Title))
	b.WriteString("\n\n")
	field := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(LabelStyle.Render(label + ": "))
		b.WriteString(ValueStyle.Render(value))
		b.WriteString("\n")
	}
	field("ID", e.ID)
	field("Stage", stageLabel)
	field("Position", fmt.Sprintf("%d", e.Position))
	field("Counterpart", e.Counterpart)
	field("City", e.City)
	if !e.Date.IsZero() {
		field("Date", e.Date.Format("2006-01-02"))
	}
	return CardStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func entitySubtitle(e *models.Entity) string {
	parts := make([]string, 0, 3)
	if e.City != "" {
		parts = append(parts, e.City)
	}
	if !e.Date.IsZero() {
		parts = append(parts, e.Date.Format("02/01"))
	}
	if e.Counterpart != "" {
		parts = append(parts, e.Counterpart)
	}
	return strings.Join(parts, " · ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
