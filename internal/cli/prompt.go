package cli

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// promptLine prints label and reads one line of input.
func (a *App) promptLine(label string) (string, error) {
	fmt.Fprint(a.Out, label)
	line, err := a.reader().ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptPassword prints label and reads a line without echoing it when the
// input is a terminal. Piped input (including tests) falls back to a plain
// line read.
func (a *App) promptPassword(label string) (string, error) {
	f, ok := a.In.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return a.promptLine(label)
	}

	fmt.Fprint(a.Out, label)
	raw, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(a.Out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}
