package style

import (
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/gamut"
	"github.com/rivo/uniseg"
)

const (
	ColorLightGrey = lipgloss.Color("245")
	ColorCyan      = lipgloss.Color("63")
	ColorBrightRed = lipgloss.Color("196")
	ColorFuscia    = lipgloss.Color("170")
	ColorDarkGrey  = lipgloss.Color("241")
	ColorGreen     = lipgloss.Color("2")
	ColorAmber     = lipgloss.Color("214")
	ColorGrey2     = lipgloss.Color("235")
)

const Background1 = "☖"

const ToolbarSeparator = " │ "

// Styles
var (
	AppStyle = lipgloss.NewStyle().Padding(1, 2)

	HotkeyStyle = lipgloss.NewStyle().
			Foreground(ColorAmber).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorFuscia).
			PaddingRight(1)

	FieldStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDarkGrey).
			Padding(0, 1)

	FocusedFieldStyle = FieldStyle.
				BorderForeground(ColorCyan)

	ButtonStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorCyan).
			Padding(0, 2)

	FocusedButtonStyle = ButtonStyle.
				Border(lipgloss.DoubleBorder()).
				Foreground(ColorFuscia).
				Bold(true)

	DisabledButtonStyle = ButtonStyle.
				BorderForeground(ColorDarkGrey).
				Foreground(ColorDarkGrey).
				Faint(true)

	ToolbarStyle = lipgloss.NewStyle().
			PaddingRight(2)

	ToolbarDisabledStyle = ToolbarStyle.
				Foreground(ColorDarkGrey).
				Faint(true)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ColorLightGrey)

	StatusConnectingStyle = StatusStyle.
				Foreground(ColorAmber)

	StatusConnectedStyle = StatusStyle.
				Foreground(ColorGreen)

	StatusErrorStyle = lipgloss.NewStyle().
				Foreground(ColorBrightRed).
				Bold(true)

	SubScreenStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(ColorCyan). // Cyan border
			Background(ColorGrey2).      // Dark gray background
			Padding(1, 1)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorFuscia)
)

var Subtle = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}

var DialogBoxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("#874BFD")).
	Padding(1, 0).
	BorderTop(true).
	BorderLeft(true).
	BorderRight(true).
	BorderBottom(true)

var (
	GradientFrom = lipgloss.Color("#F25D94")
	GradientTo   = lipgloss.Color("#EDFF82")
)

// Gradient renders text in bold with one colour per grapheme cluster, blended
// from one colour to the other.
func Gradient(text string, from, to color.Color) string {
	var clusters []string
	gr := uniseg.NewGraphemes(text)
	for gr.Next() {
		clusters = append(clusters, gr.Str())
	}

	ramp := []color.Color{from}
	if len(clusters) > 1 {
		ramp = gamut.Blends(from, to, len(clusters))
	}

	var b strings.Builder
	for i, cluster := range clusters {
		c, _ := colorful.MakeColor(ramp[i%len(ramp)])
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(c.Hex())).Render(cluster))
	}
	return b.String()
}

func RenderSubscreen(w, h int, title, content string) string {
	return lipgloss.Place(
		w,
		h,
		lipgloss.Center,
		lipgloss.Center,
		SubScreenStyle.Render(
			lipgloss.JoinVertical(
				lipgloss.Left,
				TitleStyle.Render(title),
				content,
			),
		),
		lipgloss.WithWhitespaceChars(Background1),
		lipgloss.WithWhitespaceForeground(Subtle),
	)
}

// RenderDialog centres content in a bordered dialog with a gradient title.
func RenderDialog(w, h int, title string, content ...string) string {
	heading := lipgloss.NewStyle().
		Align(lipgloss.Center).
		Render(Gradient(title, GradientFrom, GradientTo))

	return lipgloss.Place(w, h,
		lipgloss.Center, lipgloss.Center,
		DialogBoxStyle.Render(lipgloss.JoinVertical(
			lipgloss.Center,
			append([]string{heading}, content...)...,
		)),
		lipgloss.WithWhitespaceChars("☃︎"),
		lipgloss.WithWhitespaceForeground(Subtle),
	)
}
