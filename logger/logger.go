/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
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

package logger

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the structured, level-gated logging surface used throughout tcplb.
type Logger interface {
	// SetLevel changes the minimal level of message that reaches the output.
	SetLevel(lvl Level)
	// GetLevel returns the minimal level of message that reaches the output.
	GetLevel() Level

	// SetFields sets the default fields merged into every entry produced by this logger.
	SetFields(f Fields)
	// GetFields returns the default fields merged into every entry produced by this logger.
	GetFields() Fields

	// Clone returns a new Logger sharing this one's level and default fields.
	Clone() Logger

	Debug(message string, data interface{}, args ...interface{})
	Info(message string, data interface{}, args ...interface{})
	Warning(message string, data interface{}, args ...interface{})
	Error(message string, data interface{}, args ...interface{})
	// Fatal logs at FatalLevel then calls os.Exit(1).
	Fatal(message string, data interface{}, args ...interface{})

	// CheckError logs err at lvlKO if non-nil; if err is nil and lvlOK is not NilLevel, logs message at lvlOK.
	// Returns true if err was non-nil.
	CheckError(lvlKO, lvlOK Level, message string, err error) bool

	// Entry returns a new Entry pre-seeded with this logger's fields, ready for further enrichment before Log.
	Entry(lvl Level, message string, args ...interface{}) *Entry
}

type lgr struct {
	mu     sync.RWMutex
	level  Level
	fields Fields
	name   string
	out    *logrus.Logger
	err    *logrus.Logger
}

// New returns a Logger named after the given component (e.g. a listener's bind
// address, or "supervisor"), writing InfoLevel and DebugLevel entries to
// stdout and WarnLevel/ErrorLevel/FatalLevel entries to stderr, each as a
// single timestamped line.
func New(name string) Logger {
	l := &lgr{
		name:   name,
		fields: NewFields(),
	}

	l.out = newLogrus(os.Stdout)
	l.err = newLogrus(os.Stderr)
	l.SetLevel(InfoLevel)

	return l
}

func newLogrus(w *os.File) *logrus.Logger {
	r := logrus.New()
	r.SetOutput(w)
	r.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		DisableColors:   true,
	})
	return r
}

func (l *lgr) SetLevel(lvl Level) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lvl == NilLevel {
		lvl = InfoLevel
	}

	l.level = lvl
	l.out.SetLevel(lvl.Logrus())
	l.err.SetLevel(lvl.Logrus())
}

func (l *lgr) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.level
}

func (l *lgr) SetFields(f Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.fields = f
}

func (l *lgr) GetFields() Fields {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.fields
}

func (l *lgr) Clone() Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c := &lgr{
		name:   l.name,
		level:  l.level,
		fields: l.fields,
		out:    l.out,
		err:    l.err,
	}

	return c
}

func (l *lgr) backend(lvl Level) *logrus.Logger {
	if lvl.stdout() {
		return l.out
	}
	return l.err
}

func (l *lgr) caller() string {
	if _, file, line, ok := runtime.Caller(3); ok {
		return fmt.Sprintf("%s:%d", file, line)
	}
	return ""
}

func (l *lgr) Entry(lvl Level, message string, args ...interface{}) *Entry {
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}

	return &Entry{
		log:     l.backend,
		Time:    time.Now(),
		Level:   lvl,
		Caller:  l.caller(),
		Message: message,
		Fields:  l.GetFields(),
	}
}

func (l *lgr) Debug(message string, data interface{}, args ...interface{}) {
	l.Entry(DebugLevel, message, args...).DataSet(data).Log()
}

func (l *lgr) Info(message string, data interface{}, args ...interface{}) {
	l.Entry(InfoLevel, message, args...).DataSet(data).Log()
}

func (l *lgr) Warning(message string, data interface{}, args ...interface{}) {
	l.Entry(WarnLevel, message, args...).DataSet(data).Log()
}

func (l *lgr) Error(message string, data interface{}, args ...interface{}) {
	l.Entry(ErrorLevel, message, args...).DataSet(data).Log()
}

func (l *lgr) Fatal(message string, data interface{}, args ...interface{}) {
	l.Entry(FatalLevel, message, args...).DataSet(data).Log()
}

func (l *lgr) CheckError(lvlKO, lvlOK Level, message string, err error) bool {
	e := l.Entry(lvlKO, message)
	e.ErrorAdd(err)
	return e.Check(lvlOK)
}
