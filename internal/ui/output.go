// Package ui provides colored terminal output for the CLI.
package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

const headerWidth = 60

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	stepColor    = color.New(color.FgCyan)
	successColor = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	blueColor    = color.New(color.FgBlue)
	yellowColor  = color.New(color.FgYellow)
)

// Header prints a banner with the text centered in a ruled box.
func Header(text string) {
	line := strings.Repeat("=", headerWidth)
	headerColor.Println(line)
	headerColor.Println(center(text, headerWidth))
	headerColor.Println(line)
}

// Step prints a numbered progress step.
func Step(current, total int, format string, a ...interface{}) {
	stepColor.Printf("[%d/%d] ", current, total)
	fmt.Printf(format+"\n", a...)
}

// Success prints a green success message.
func Success(format string, a ...interface{}) {
	successColor.Printf("✓ "+format+"\n", a...)
}

// Info prints a plain informational message.
func Info(format string, a ...interface{}) {
	fmt.Printf(format+"\n", a...)
}

// Warning prints a yellow warning message.
func Warning(format string, a ...interface{}) {
	warningColor.Printf("⚠ "+format+"\n", a...)
}

// Error prints a red error message.
func Error(format string, a ...interface{}) {
	errorColor.Printf("✗ "+format+"\n", a...)
}

// BlueText prints blue text, used for values the user should notice.
func BlueText(format string, a ...interface{}) {
	blueColor.Printf(format+"\n", a...)
}

// YellowText prints yellow text, used for values needing review.
func YellowText(format string, a ...interface{}) {
	yellowColor.Printf(format+"\n", a...)
}

// center left-pads text to sit in the middle of width. Text wider than
// width is returned unchanged.
func center(text string, width int) string {
	if len(text) >= width {
		return text
	}
	padding := (width - len(text)) / 2
	return strings.Repeat(" ", padding) + text
}
