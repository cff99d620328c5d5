package styles

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/merge-o-matic/mom/internal/utils"
	"golang.org/x/term"
)

var (
	HeavilyEmphasized = lipgloss.
				NewStyle().
				Foreground(Colors.Yellow).
				Bold(true)

	Emphasized = HeavilyEmphasized.Foreground(Colors.WhiteBlackAdaptive)

	Info    = Emphasized.Foreground(Colors.Blue)
	Warning = Emphasized.Foreground(Colors.Yellow)
	Error   = Emphasized.Foreground(Colors.Red)

	Dimmed       = lipgloss.NewStyle().Foreground(Colors.Grey)
	DimmedItalic = Dimmed.Italic(true)

	Success = Emphasized.Foreground(Colors.Green)

	Added    = lipgloss.NewStyle().Foreground(Colors.Green)
	Removed  = lipgloss.NewStyle().Foreground(Colors.Red)
	Modified = lipgloss.NewStyle().Foreground(Colors.Yellow)

	None = lipgloss.NewStyle()

	Colors = struct {
		Yellow, DimYellow, Red, DimRed, Green, DimGreen, BrightGrey, Grey, WhiteBlackAdaptive, DimGrey, Blue, DimBlue lipgloss.AdaptiveColor
	}{
		Yellow:             lipgloss.AdaptiveColor{Dark: "#FBE331", Light: "#C0A802"},
		DimYellow:          lipgloss.AdaptiveColor{Dark: "#AF9A04", Light: "#AF9A04"},
		WhiteBlackAdaptive: lipgloss.AdaptiveColor{Dark: "#F3F0E3", Light: "#16150E"},
		Red:                lipgloss.AdaptiveColor{Dark: "#D93337", Light: "#54121B"},
		DimRed:             lipgloss.AdaptiveColor{Dark: "#54121B", Light: "#D93337"},
		Green:              lipgloss.AdaptiveColor{Dark: "#63AC67", Light: "#5B8537"},
		DimGreen:           lipgloss.AdaptiveColor{Dark: "#293D2A", Light: "#63AC67"},
		BrightGrey:         lipgloss.AdaptiveColor{Dark: "#B4B2A6", Light: "#4B4A3F"},
		Grey:               lipgloss.AdaptiveColor{Dark: "#8A887D", Light: "#68675F"},
		DimGrey:            lipgloss.AdaptiveColor{Dark: "#4B4A3F", Light: "#B4B2A6"},
		Blue:               lipgloss.AdaptiveColor{Dark: "#679FE1", Light: "#1D2A3A"},
		DimBlue:            lipgloss.AdaptiveColor{Dark: "#1D2A3A", Light: "#679FE1"},
	}
)

func TerminalWidth() int {
	termWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || termWidth <= 0 {
		return 80
	}
	return termWidth
}

// ChangeLine colours one line of a merge summary by its leading status letter.
func ChangeLine(line string) string {
	switch {
	case strings.HasPrefix(line, "A "):
		return Added.Render(line)
	case strings.HasPrefix(line, "D "):
		return Removed.Render(line)
	case strings.HasPrefix(line, "M "):
		return Modified.Render(line)
	case strings.HasPrefix(line, "C "):
		return Error.Render(line)
	}
	return Dimmed.Render(line)
}

func RenderSuccessMessage(heading string, additionalLines ...string) string {
	s := Success.Render(utils.CapitalizeFirst(heading))
	for _, line := range additionalLines {
		s += "\n" + Dimmed.Render(line)
	}

	return MakeBoxed(s, Colors.Green, lipgloss.Center)
}

func RenderErrorMessage(heading string, additionalLines ...string) string {
	s := lipgloss.NewStyle().Foreground(Colors.Red).Bold(true).Render(utils.CapitalizeFirst(heading))
	for _, line := range additionalLines {
		s += "\n" + lipgloss.NewStyle().Foreground(Colors.Red).Render(line)
	}

	return MakeBoxed(s, Colors.Red, lipgloss.Center)
}

func MakeBoxed(s string, borderColor lipgloss.AdaptiveColor, alignment lipgloss.Position) string {
	termWidth := TerminalWidth() - 2     // Leave room for padding (if the terminal is too small to fit, we need to wrap)
	stringWidth := lipgloss.Width(s) + 2 // Account for padding (on the other hand, if the terminal is wide enough, add back in the space so it doesn't needlessly wrap)
	w := min(termWidth, stringWidth)

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		AlignHorizontal(alignment).
		Width(w).
		Render(s)
}
