/***********************************************************************************************************************
 *
 *   MIT License
 *
 *   Copyright (c) 2021 Nicolas JUHEL
 *
 *   Permission is hereby granted, free of charge, to any person obtaining a copy
 *   of this software and associated documentation files (the "Software"), to deal
 *   in the Software without restriction, including without limitation the rights
 *   to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 *   copies of the Software, and to permit persons to whom the Software is
 *   furnished to do so, subject to the following conditions:
 *
 *   The above copyright notice and this permission notice shall be included in all
 *   copies or substantial portions of the Software.
 *
 *   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 *   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 *   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 *   AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 *   LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 *   OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 *   SOFTWARE.
 *
 *
 **********************************************************************************************************************/

package logger

import (
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	FieldTime    = "time"
	FieldLevel   = "level"
	FieldCaller  = "caller"
	FieldMessage = "message"
	FieldError   = "error"
	FieldData    = "data"
)

// Entry is one log record in progress, built by Logger.Entry and flushed by Log.
type Entry struct {
	log func(lvl Level) *logrus.Logger

	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Caller  string    `json:"caller"`
	Message string    `json:"message"`
	Error   []error   `json:"error"`
	Data    interface{}
	Fields  Fields `json:"fields"`
}

// FieldAdd adds one key/value pair to the entry's custom fields.
func (e *Entry) FieldAdd(key string, val interface{}) *Entry {
	e.Fields = e.Fields.Add(key, val)
	return e
}

// DataSet attaches arbitrary structured data to the entry.
func (e *Entry) DataSet(data interface{}) *Entry {
	e.Data = data
	return e
}

// ErrorAdd appends errors to the entry, skipping nils.
func (e *Entry) ErrorAdd(err ...error) *Entry {
	for _, er := range err {
		if er == nil {
			continue
		}
		e.Error = append(e.Error, er)
	}
	return e
}

// Check logs the entry at lvlNoErr if no error was ever added, otherwise at its configured Level.
// It returns true if an error was present.
func (e *Entry) Check(lvlNoErr Level) bool {
	found := len(e.Error) > 0

	if !found {
		e.Level = lvlNoErr
	}

	e.Log()
	return found
}

// Log flushes the entry to its backing logrus.Logger, then terminates the
// process if the entry's level is FatalLevel (mirroring the teacher's
// Entry.Log convention that a Fatal-level entry is terminal).
func (e *Entry) Log() {
	if e.Level == NilLevel || e.log == nil {
		return
	}

	log := e.log(e.Level)
	if log == nil {
		return
	}

	tag := NewFields().Add(FieldLevel, e.Level.String())

	if !e.Time.IsZero() {
		tag = tag.Add(FieldTime, e.Time.Format(time.RFC3339Nano))
	}

	if e.Caller != "" {
		tag = tag.Add(FieldCaller, e.Caller)
	}

	if len(e.Error) > 0 {
		msg := make([]string, 0, len(e.Error))
		for _, er := range e.Error {
			msg = append(msg, er.Error())
		}
		tag = tag.Add(FieldError, strings.Join(msg, ", "))
	}

	if e.Data != nil {
		tag = tag.Add(FieldData, e.Data)
	}

	if len(e.Fields) > 0 {
		tag = tag.Merge(e.Fields)
	}

	log.WithFields(tag.Logrus()).Log(e.Level.Logrus(), e.Message)

	if e.Level == FatalLevel {
		os.Exit(1)
	}
}
