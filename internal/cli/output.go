package cli

import (
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	dimColor  = color.New(color.Faint)
)

// setupColor turns color off for pipes, NO_COLOR and --no-color
func setupColor(disabled bool) {
	if disabled || os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}
}
