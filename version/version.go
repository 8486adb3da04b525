/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
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

// Package version carries the build-time identity of the tcplb binary: its
// name, release tag, commit, and build date, set via -ldflags at compile
// time and surfaced both by --version and by the supervisor's startup
// banner.
package version

import "fmt"

// Values below are overridden at build time with:
//
//	go build -ldflags "-X github.com/nabbar/tcplb/version.release=v1.0.0 \
//	  -X github.com/nabbar/tcplb/version.commit=$(git rev-parse --short HEAD) \
//	  -X github.com/nabbar/tcplb/version.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	release = "dev"
	commit  = "none"
	date    = "unknown"
)

const packageName = "tcplb"

// Info is the immutable build identity of the running binary.
type Info struct {
	Package string
	Release string
	Commit  string
	Date    string
}

// Get returns the current build Info.
func Get() Info {
	return Info{
		Package: packageName,
		Release: release,
		Commit:  commit,
		Date:    date,
	}
}

// Header returns a single-line, human-readable banner, e.g.
// "tcplb v1.0.0 (commit a1b2c3d, built 2026-07-29T10:00:00Z)".
func (i Info) Header() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Package, i.Release, i.Commit, i.Date)
}

// String implements fmt.Stringer so Info can be logged or printed directly.
func (i Info) String() string {
	return i.Header()
}
