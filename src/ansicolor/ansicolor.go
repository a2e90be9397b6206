package ansicolor

import "runtime"

// See this file for a good color reference:
// https://github.com/fatih/color/blob/master/color.go

var Reset = "\033[0m"
var Bold = "\033[1m"
var Faint = "\033[2m"
var Italic = "\033[3m"
var Underline = "\033[4m"

var Red = "\033[31m"
var Green = "\033[32m"
var Yellow = "\033[33m"
var Blue = "\033[34m"
var Cyan = "\033[36m"
var Gray = "\033[37m"

var BgRed = "\033[41m"
var BgYellow = "\033[43m"
var BgBlue = "\033[44m"

func init() {
	if runtime.GOOS == "windows" {
		Disable()
	}
}

// Disable turns every escape sequence into an empty string. Used for JSON
// logging and terminals that can't render colors.
func Disable() {
	Reset, Bold, Faint, Italic, Underline = "", "", "", "", ""
	Red, Green, Yellow, Blue, Cyan, Gray = "", "", "", "", "", ""
	BgRed, BgYellow, BgBlue = "", "", ""
}
