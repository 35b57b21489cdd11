package output

import (
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"
)

const (
	defaultDescriptionWidth = 80
	minDescriptionWidth     = 20
	// Long prose stays readable on wide terminals.
	maxDescriptionWidth = 100
	// Descriptions come from IPFS and may be arbitrarily large.
	maxDescriptionBytes = 16 << 10
)

const truncatedMarker = "\n\n… (description truncated)"

// TerminalWidth returns the stdout width, then $COLUMNS, then fallback.
func TerminalWidth(fallback int) int {
	if fallback <= 0 {
		fallback = defaultDescriptionWidth
	}
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	if cols, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && cols > 0 {
		return cols
	}
	return fallback
}

// RenderDescription renders an org, proposal or task description for the
// terminal. Plain output, a non-terminal stdout, or a render failure yield
// the sanitized source text.
func RenderDescription(text string, plain bool) string {
	text = sanitizeDescription(text)
	if plain || !term.IsTerminal(int(os.Stdout.Fd())) {
		return text
	}
	rendered, err := RenderMarkdownWithWidth(text, TerminalWidth(defaultDescriptionWidth))
	if err != nil {
		return text
	}
	return rendered
}

// RenderMarkdownWithWidth renders text with glamour, wrapping at width
// clamped to the description bounds.
func RenderMarkdownWithWidth(text string, width int) (string, error) {
	text = sanitizeDescription(text)
	if text == "" {
		return "", nil
	}
	width = min(max(width, minDescriptionWidth), maxDescriptionWidth)

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(rendered, "\n"), nil
}

// sanitizeDescription strips terminal escape sequences from untrusted
// content, caps its size on a rune boundary, and trims surrounding space.
func sanitizeDescription(text string) string {
	text = strings.TrimSpace(ansi.Strip(text))
	if len(text) <= maxDescriptionBytes {
		return text
	}
	cut := maxDescriptionBytes
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return strings.TrimSpace(text[:cut]) + truncatedMarker
}
