/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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

// Package config loads and validates the tcplb INI configuration file: a
// single [options] section and a [mappings] section, each mapping key being
// a "listen_addr:listen_port" pair and its value a comma-separated worker
// list, same on-disk shape as the original PumpkinLB config file.
package config

// Worker is one upstream a listener may dial.
type Worker struct {
	Addr string `validate:"required"`
	Port int    `validate:"required,min=1,max=65535"`
}

// Mapping binds one local listen address/port to an ordered set of workers.
type Mapping struct {
	ListenAddr string `validate:"required"`
	ListenPort int    `validate:"required,min=1,max=65535"`
	Workers    []Worker `validate:"required,min=1,dive"`
}

// DefaultBufferSize is used for relay reads/writes when [options] omits buffer_size.
const DefaultBufferSize = 4096

// Options are the process-wide, [options]-section settings.
type Options struct {
	// PreResolveWorkers resolves each worker hostname once at load time via
	// net.LookupHost, instead of letting net.Dial resolve it on every
	// connect attempt.
	PreResolveWorkers bool

	// BufferSize is the chunk size used for relay reads and writes.
	BufferSize int
}

// Config is the fully parsed and validated configuration of one tcplb run.
type Config struct {
	Options  Options
	Mappings []Mapping
}
