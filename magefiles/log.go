package main

import (
	"fmt"
)

// Color constants for terminal output.
const (
	resetColor  = "\033[0m"
	redColor    = "\033[31m"
	greenColor  = "\033[32m"
	yellowColor = "\033[33m"
)

// LogRed prints a log message with red color.
func LogRed(msg string, args ...any) {
	log(redColor, msg, args...)
}

// LogGreen prints a log message with green color.
func LogGreen(msg string, args ...any) {
	log(greenColor, msg, args...)
}

// LogYellow prints a log message with yellow color.
func LogYellow(msg string, args ...any) {
	log(yellowColor, msg, args...)
}

// log prints msg followed by its key-value pairs in the given color.
func log(colorCode string, msg string, args ...any) {
	fmt.Printf("%s%s%s\n", colorCode, msg, resetColor)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Printf("%s  %v: %v%s\n", colorCode, args[i], args[i+1], resetColor)
	}
}
