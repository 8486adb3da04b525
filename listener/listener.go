// Package listener implements one Listener Supervisor: a bound TCP socket,
// the round-robin accept/dispatch loop feeding it, the reaper that prunes
// finished sessions, and the retry scanner that re-dispatches sessions
// whose worker connect failed.
package listener

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/nabbar/tcplb/config"
	liberr "github.com/nabbar/tcplb/errors"
	"github.com/nabbar/tcplb/logger"
	"github.com/nabbar/tcplb/monitor"
	"github.com/nabbar/tcplb/session"
	"github.com/nabbar/tcplb/workerpool"
)

const (
	// bindRetryInterval is how often a failed bind is retried.
	bindRetryInterval = 1 * time.Second
	// bindRetryWindow bounds how long the bind loop logs at warning level
	// before escalating failing-bind log lines to error level, matching the layered
	// patience the rest of the supervisor applies to slow operations.
	bindRetryWindow = 5 * time.Second

	// reaperInterval is the cadence of the completed-session sweep.
	reaperInterval = 1500 * time.Millisecond
	// reaperJoinBound is how long the reaper waits on each session's Done
	// channel before moving on, so one slow session can't stall the sweep.
	reaperJoinBound = 20 * time.Millisecond

	// retryFastInterval is the scan cadence while a recent scan has found
	// a session to retry, to react quickly to a cluster of failures.
	retryFastInterval = 100 * time.Millisecond
	// retrySlowInterval is the scan cadence once the scanner has gone
	// idle for a while, to avoid burning CPU on a quiet listener.
	retrySlowInterval = 2 * time.Second
	// retryIdleThreshold is the number of consecutive empty scans after
	// which the scanner backs off to retrySlowInterval.
	retryIdleThreshold = 5

	// acceptErrorBackoff bounds the pause after a non-shutdown Accept
	// error, so a sustained accept-error condition degrades to a slow
	// retry instead of a busy loop.
	acceptErrorBackoff = 3 * time.Second
)

// Listener owns one bound address, its worker pool, and the set of active
// sessions it has dispatched. activeSessions is mutated only by this
// Listener's own goroutines (accept loop and retry scanner append, reaper
// removes, Shutdown clears), always under mu.
type Listener struct {
	mapping config.Mapping
	pool    *workerpool.Pool
	buf     int
	log     logger.Logger

	ln net.Listener

	mu             sync.Mutex
	activeSessions []*session.Session
	lastBindErr    string

	shutdown chan struct{}
	wg       sync.WaitGroup
}

// New returns a Listener for one configured mapping. Call Serve to bind and
// run it, and Shutdown to drain it.
func New(mapping config.Mapping, bufferSize int, log logger.Logger) *Listener {
	return &Listener{
		mapping:  mapping,
		pool:     workerpool.New(mapping.Workers),
		buf:      bufferSize,
		log:      log,
		shutdown: make(chan struct{}),
	}
}

// Addr returns the bound local address, valid only after Serve has
// successfully bound the listening socket.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// ActiveSessionCount returns the current number of sessions this listener
// believes are in flight.
func (l *Listener) ActiveSessionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.activeSessions)
}

// WorkerCount returns the number of workers configured for this listener.
func (l *Listener) WorkerCount() int {
	return l.pool.Len()
}

// Status returns a point-in-time snapshot of this listener for the monitor
// registry.
func (l *Listener) Status() monitor.Status {
	l.mu.Lock()
	bound := l.ln != nil
	lastBindErr := l.lastBindErr
	active := len(l.activeSessions)
	l.mu.Unlock()

	return monitor.Status{
		ListenAddr:     l.mapping.ListenAddr,
		ListenPort:     l.mapping.ListenPort,
		Bound:          bound,
		WorkerCount:    l.pool.Len(),
		ActiveSessions: active,
		LastBindError:  lastBindErr,
		Cursor:         l.pool.Cursor(),
	}
}

// Serve binds the configured address, retrying indefinitely on failure
// until either the bind succeeds or Shutdown is called, then runs the
// accept loop, reaper, and retry scanner until Shutdown. Serve blocks until
// all three have returned.
func (l *Listener) Serve() {
	ln := l.bindWithRetry()
	if ln == nil {
		return
	}

	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()

	l.wg.Add(3)
	go l.acceptLoop()
	go l.reaperLoop()
	go l.retryScanLoop()

	l.wg.Wait()
}

func (l *Listener) bindWithRetry() net.Listener {
	addr := net.JoinHostPort(l.mapping.ListenAddr, strconv.Itoa(l.mapping.ListenPort))

	started := time.Now()
	for {
		select {
		case <-l.shutdown:
			return nil
		default:
		}

		ln, err := net.Listen("tcp", addr)
		if err == nil {
			l.log.Info("bound listener on %s", nil, addr)
			return ln
		}

		wrapped := liberr.New(uint16(liberr.ListenerBindFailed), err.Error())

		l.mu.Lock()
		l.lastBindErr = wrapped.Error()
		l.mu.Unlock()

		if time.Since(started) < bindRetryWindow {
			l.log.Warning("bind attempt failed for %s: %s", nil, addr, wrapped.Error())
		} else {
			l.log.Error("bind still failing for %s after %s: %s", nil, addr, bindRetryWindow, wrapped.Error())
		}

		select {
		case <-time.After(bindRetryInterval):
		case <-l.shutdown:
			return nil
		}
	}
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.shutdown:
				return
			default:
				wrapped := liberr.New(uint16(liberr.ListenerAcceptFailed), err.Error())
				l.log.Warning("accept failed: %s", nil, wrapped.Error())

				select {
				case <-time.After(acceptErrorBackoff):
				case <-l.shutdown:
					return
				}
				continue
			}
		}

		worker := l.pool.Next()
		sess := session.New(conn, worker, l.buf, l.log)

		l.mu.Lock()
		l.activeSessions = append(l.activeSessions, sess)
		l.mu.Unlock()

		go sess.Run()
	}
}

func (l *Listener) reaperLoop() {
	defer l.wg.Done()

	t := time.NewTicker(reaperInterval)
	defer t.Stop()

	for {
		select {
		case <-l.shutdown:
			return
		case <-t.C:
			l.reapOnce()
		}
	}
}

func (l *Listener) reapOnce() {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.activeSessions[:0]
	for _, s := range l.activeSessions {
		select {
		case <-s.Done():
		case <-time.After(reaperJoinBound):
			kept = append(kept, s)
			continue
		}
	}

	l.activeSessions = kept
}

func (l *Listener) retryScanLoop() {
	defer l.wg.Done()

	successfulRuns := 0

	for {
		interval := retryFastInterval
		if successfulRuns > retryIdleThreshold {
			interval = retrySlowInterval
		}

		select {
		case <-l.shutdown:
			return
		case <-time.After(interval):
		}

		if l.retryScanOnce() {
			successfulRuns = -1
		}

		if successfulRuns < retryIdleThreshold+1 {
			successfulRuns++
		}
	}
}

// retryScanOnce finds at most one failed session per pass, dispatches a
// replacement, and reports whether it found one (to reset the adaptive
// pacing). It intentionally does one per pass rather than draining every
// failed session at once, matching the original's incremental scan.
func (l *Listener) retryScanOnce() bool {
	l.mu.Lock()
	var target *session.Session
	for _, s := range l.activeSessions {
		if s.FailedToConnect() {
			target = s
			break
		}
	}
	l.mu.Unlock()

	if target == nil {
		return false
	}

	target.ClearFailedToConnect()

	alt := l.pool.Alternate(target.Worker())
	replacement := session.New(target.ClientConn(), alt, l.buf, l.log)

	l.mu.Lock()
	l.activeSessions = append(l.activeSessions, replacement)
	l.mu.Unlock()

	go replacement.Run()

	return true
}

// Shutdown stops the bind/accept/reaper/retry loops, closes the listening
// socket, and terminates every still-active session, waiting up to
// drainBudget for the loops to notice before returning.
func (l *Listener) Shutdown(drainBudget time.Duration) {
	close(l.shutdown)

	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(drainBudget):
		l.log.Warning("listener %s did not fully drain within %s", nil, l.mapping.ListenAddr, drainBudget)
	}

	l.mu.Lock()
	sessions := l.activeSessions
	l.activeSessions = nil
	l.mu.Unlock()

	for _, s := range sessions {
		s.Terminate()
	}
}
