/*
 * MIT License
 *
 * Copyright (c) 2019 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package logger provides the structured, level-gated logging used across
// tcplb: configuration loading, listener lifecycle, session relay and the
// top supervisor all log through this package instead of the standard
// "log" package.
package logger

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Level orders severities, lowest value is most severe.
type Level uint8

const (
	FatalLevel Level = iota
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
	// NilLevel disables an entry entirely and cannot be set as the logger's floor.
	NilLevel
)

// GetLevelListString returns the list of level names, lowercase, for CLI flag help text.
func GetLevelListString() []string {
	return []string{
		strings.ToLower(FatalLevel.String()),
		strings.ToLower(ErrorLevel.String()),
		strings.ToLower(WarnLevel.String()),
		strings.ToLower(InfoLevel.String()),
		strings.ToLower(DebugLevel.String()),
	}
}

// GetLevelString returns the Level matching the given name, defaulting to InfoLevel.
func GetLevelString(l string) Level {
	switch {
	case strings.Contains(strings.ToLower(FatalLevel.String()), strings.ToLower(l)):
		return FatalLevel
	case strings.Contains(strings.ToLower(ErrorLevel.String()), strings.ToLower(l)):
		return ErrorLevel
	case strings.Contains(strings.ToLower(WarnLevel.String()), strings.ToLower(l)):
		return WarnLevel
	case strings.Contains(strings.ToLower(InfoLevel.String()), strings.ToLower(l)):
		return InfoLevel
	case strings.Contains(strings.ToLower(DebugLevel.String()), strings.ToLower(l)):
		return DebugLevel
	}

	return InfoLevel
}

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "Debug"
	case InfoLevel:
		return "Info"
	case WarnLevel:
		return "Warning"
	case ErrorLevel:
		return "Error"
	case FatalLevel:
		return "Fatal"
	case NilLevel:
		return ""
	}

	return "unknown"
}

// Logrus returns the logrus.Level carrying the same severity.
func (l Level) Logrus() logrus.Level {
	switch l {
	case DebugLevel:
		return logrus.DebugLevel
	case InfoLevel:
		return logrus.InfoLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case FatalLevel:
		return logrus.FatalLevel
	default:
		return logrus.PanicLevel
	}
}

// stdout reports whether entries at this level are written to stdout rather than stderr.
func (l Level) stdout() bool {
	return l == InfoLevel || l == DebugLevel
}
