package ui

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// Logo is printed above interactive commands
const Logo = `
   ┌─────────────────────────────────────────┐
   │  pinback · pinboard archive backup      │
   └─────────────────────────────────────────┘
`

// ColorEnabled turns ANSI colours on. It defaults to whether stdout is a
// terminal and NO_COLOR is unset.
var ColorEnabled = os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(os.Stdout.Fd()))

var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

func colorize(colorString string) func(string) string {
	return func(text string) string {
		if !ColorEnabled {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

func PrintLogo() {
	fmt.Print(Cyan(Logo))
}

// PrintError prints msg, followed by the first arg if given, in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf("%s: %v", msg, args[0])
	}
	fmt.Fprintln(os.Stderr, Red(msg))
}

func PrintSuccess(msg string) {
	fmt.Println(Green(msg))
}

// PrintInfo prints a label: value pair
func PrintInfo(label string, value string) {
	fmt.Printf("%s: %s\n", Cyan(label), Yellow(value))
}

func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf("%s: %v", msg, args[0])
	}
	fmt.Fprintln(os.Stderr, Yellow(msg))
}

func PrintHighlight(msg string) {
	fmt.Println(Magenta(msg))
}
