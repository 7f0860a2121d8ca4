package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB")).
			Width(18)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	blockStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
)

// field is one line of a key/value listing.
type field struct {
	key   string
	value string
	bad   bool
}

func printTitle(w io.Writer, title string) {
	fmt.Fprintln(w, titleStyle.Render(title))
}

func printFields(w io.Writer, fields []field) {
	for _, f := range fields {
		value := okStyle.Render(f.value)
		if f.bad {
			value = errorStyle.Render(f.value)
		}
		fmt.Fprintln(w, keyStyle.Render(f.key)+value)
	}
}

// printBlock renders multi-line engine text in a bordered box.
func printBlock(w io.Writer, text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		fmt.Fprintln(w, dimStyle.Render("(empty)"))
		return
	}
	fmt.Fprintln(w, blockStyle.Render(text))
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
