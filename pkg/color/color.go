package color

import (
	"fmt"

	fcolor "github.com/fatih/color"
)

// fatih/color already honours NO_COLOR and disables itself when stdout is
// not a terminal.
var (
	brightRed = fcolor.New(fcolor.FgHiRed)
	green     = fcolor.New(fcolor.FgGreen)
	yellow    = fcolor.New(fcolor.FgYellow)
	blue      = fcolor.New(fcolor.FgBlue)
	cyan      = fcolor.New(fcolor.FgCyan)
	gray      = fcolor.New(fcolor.FgHiBlack)
	bold      = fcolor.New(fcolor.Bold)
)

func EnableColor(enable bool) {
	fcolor.NoColor = !enable
}

func IsColorEnabled() bool {
	return !fcolor.NoColor
}

func BrightRedText(text string) string {
	return brightRed.Sprint(text)
}

func GreenText(text string) string {
	return green.Sprint(text)
}

func YellowText(text string) string {
	return yellow.Sprint(text)
}

func BlueText(text string) string {
	return blue.Sprint(text)
}

func CyanText(text string) string {
	return cyan.Sprint(text)
}

func GrayText(text string) string {
	return gray.Sprint(text)
}

func BoldText(text string) string {
	return bold.Sprint(text)
}

func Error(message string) string {
	if !IsColorEnabled() {
		return message
	}
	return BrightRedText("Error: ") + message
}

func Warning(message string) string {
	if !IsColorEnabled() {
		return message
	}
	return YellowText("Warning: ") + message
}

func Position(line, col int) string {
	return CyanText(fmt.Sprintf("%d:%d", line, col))
}

func ErrorWithPosition(line, col int, message, context string) string {
	if !IsColorEnabled() {
		return fmt.Sprintf("Error at %d:%d: %s\n%s", line, col, message, context)
	}

	return fmt.Sprintf("%s at %s: %s\n%s",
		BrightRedText(BoldText("Error")),
		Position(line, col),
		message,
		GrayText(context))
}
