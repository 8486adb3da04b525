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

package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/ini.v1"

	liberr "github.com/nabbar/tcplb/errors"
	"github.com/nabbar/tcplb/logger"
)

const (
	sectionOptions  = "options"
	sectionMappings = "mappings"
	keyPreResolve   = "pre_resolve_workers"
	keyBufferSize   = "buffer_size"
	defaultAddr     = "0.0.0.0"
)

var validate = validator.New()

// Load reads and validates the INI file at path, logging one warning line
// per skipped malformed mapping or worker entry (mirroring the original
// implementation's tolerance: a bad line is dropped, not fatal). It returns
// a fatal error when the file cannot be read (ConfigUnreadable), when the
// [mappings] section is absent or yields no usable mapping
// (ConfigMissingSection), or when a parsed mapping fails struct validation
// (ConfigValidation).
func Load(path string, log logger.Logger) (*Config, liberr.Error) {
	// Only '=' separates key from value, so "addr:port" mapping keys stay whole.
	f, err := ini.LoadSources(ini.LoadOptions{AllowBooleanKeys: true, AllowShadows: true, KeyValueDelimiters: "="}, path)
	if err != nil {
		return nil, liberr.New(uint16(liberr.ConfigUnreadable), fmt.Sprintf("%s: %s", path, err.Error()))
	}

	cfg := &Config{
		Options: Options{PreResolveWorkers: true, BufferSize: DefaultBufferSize},
	}

	if sec := f.Section(sectionOptions); sec != nil {
		cfg.Options = parseOptions(sec, cfg.Options, log)
	}

	sec, err := f.GetSection(sectionMappings)
	if err != nil {
		return nil, liberr.New(uint16(liberr.ConfigMissingSection), "missing required [mappings] section")
	}

	cfg.Mappings = parseMappings(sec, cfg.Options.PreResolveWorkers, log)

	if len(cfg.Mappings) < 1 {
		return nil, liberr.New(uint16(liberr.ConfigMissingSection), "[mappings] section defines no usable mapping")
	}

	for i := range cfg.Mappings {
		if verr := validate.Struct(cfg.Mappings[i]); verr != nil {
			return nil, liberr.New(uint16(liberr.ConfigValidation), verr.Error())
		}
	}

	return cfg, nil
}

func parseOptions(sec *ini.Section, prev Options, log logger.Logger) Options {
	if sec.HasKey(keyPreResolve) {
		raw := sec.Key(keyPreResolve).String()

		switch {
		case raw == "1" || strings.EqualFold(raw, "true"):
			prev.PreResolveWorkers = true
		case raw == "0" || strings.EqualFold(raw, "false"):
			prev.PreResolveWorkers = false
		default:
			log.Warning("unknown value for [options] -> pre_resolve_workers %q, keeping previous value %t", nil, raw, prev.PreResolveWorkers)
		}
	}

	if sec.HasKey(keyBufferSize) {
		raw := sec.Key(keyBufferSize).String()

		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			prev.BufferSize = n
		} else {
			log.Warning("unknown value for [options] -> buffer_size %q, keeping previous value %d", nil, raw, prev.BufferSize)
		}
	}

	return prev
}

func parseMappings(sec *ini.Section, preResolve bool, log logger.Logger) []Mapping {
	mappings := make([]Mapping, 0, len(sec.Keys()))
	// seen maps a normalized "addr:port" endpoint to its index in mappings,
	// so two differently-spelled keys naming the same endpoint (e.g. "9001"
	// and "0.0.0.0:9001") are detected as duplicates too, not just literal
	// repeats of the same ini key.
	seen := make(map[string]int, len(sec.Keys()))

	for _, k := range sec.Keys() {
		addrPort := k.Name()
		rawWorkers := k.String()

		if shadows := k.ValueWithShadows(); len(shadows) > 1 {
			rawWorkers = shadows[len(shadows)-1]
			log.Warning("key %s repeated %d times in [mappings], using last value %q", nil, addrPort, len(shadows), rawWorkers)
		}

		if rawWorkers == "" {
			log.Warning("skipping %s: no workers defined", nil, addrPort)
			continue
		}

		addr, port, ok := splitAddrPort(addrPort)
		if !ok {
			log.Warning("skipping invalid mapping %s", nil, addrPort)
			continue
		}

		workers := parseWorkers(rawWorkers, preResolve, log)
		if len(workers) < 1 {
			log.Warning("skipping %s: no valid workers after parsing", nil, addrPort)
			continue
		}

		m := Mapping{ListenAddr: addr, ListenPort: port, Workers: workers}
		endpoint := net.JoinHostPort(addr, strconv.Itoa(port))

		if i, dup := seen[endpoint]; dup {
			log.Warning("duplicate mapping for %s (from %s), overwriting earlier definition", nil, endpoint, addrPort)
			mappings[i] = m
			continue
		}

		seen[endpoint] = len(mappings)
		mappings = append(mappings, m)
	}

	return mappings
}

func splitAddrPort(addrPort string) (addr string, port int, ok bool) {
	parts := strings.Split(addrPort, ":")

	switch len(parts) {
	case 1:
		addr = defaultAddr
		port, ok = parsePort(parts[0])
	case 2:
		addr = parts[0]
		if addr == "" {
			addr = defaultAddr
		}
		port, ok = parsePort(parts[1])
	default:
		ok = false
	}

	return addr, port, ok
}

func parsePort(s string) (int, bool) {
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return 0, false
	}
	return p, true
}

func parseWorkers(raw string, preResolve bool, log logger.Logger) []Worker {
	var workers []Worker

	for _, w := range strings.Split(raw, ",") {
		w = strings.TrimSpace(w)
		parts := strings.Split(w, ":")

		if len(parts) != 2 || len(parts[0]) < 3 || len(parts[1]) == 0 {
			log.Warning("skipping invalid worker %q", nil, w)
			continue
		}

		addr := parts[0]
		if preResolve {
			resolved, err := net.LookupHost(addr)
			if err != nil || len(resolved) < 1 {
				log.Warning("skipping worker, could not resolve %q", nil, addr)
				continue
			}
			addr = resolved[0]
		}

		port, ok := parsePort(parts[1])
		if !ok {
			log.Warning("skipping worker, could not parse port %q", nil, parts[1])
			continue
		}

		workers = append(workers, Worker{Addr: addr, Port: port})
	}

	return workers
}
