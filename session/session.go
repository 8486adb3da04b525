// Package session implements the per-connection handler: given an accepted
// client socket and a chosen worker endpoint, it dials the worker and
// relays bytes in both directions until either side closes, an error
// occurs, or the owning listener shuts it down.
package session

import (
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nabbar/tcplb/config"
	liberr "github.com/nabbar/tcplb/errors"
	"github.com/nabbar/tcplb/logger"
)

// GracefulWindow is how long a failed connect phase holds the client socket
// open before returning, giving the retry scanner a chance to observe
// FailedToConnect before the reaper could otherwise prune the session.
const GracefulWindow = 3 * time.Second

// Session couples one accepted client connection to one worker for its
// lifetime. failedToConnect is the cross-goroutine flag set exactly once by
// Run's connect phase and cleared exactly once by the retry scanner that
// re-dispatches the client socket to a replacement Session — an
// atomic.Bool stands in here for the cross-process shared flag the original
// design describes, since this port runs sessions as goroutines rather than
// processes.
type Session struct {
	client     net.Conn
	clientAddr string
	worker     config.Worker
	bufferSize int
	log        logger.Logger

	failedToConnect atomic.Bool
	terminating     atomic.Bool
	closing         atomic.Bool

	done chan struct{}
}

// New returns a Session for an already-accepted client connection and the
// worker it was round-robin-assigned to.
func New(client net.Conn, worker config.Worker, bufferSize int, log logger.Logger) *Session {
	return &Session{
		client:     client,
		clientAddr: client.RemoteAddr().String(),
		worker:     worker,
		bufferSize: bufferSize,
		log:        log,
		done:       make(chan struct{}),
	}
}

// ClientConn returns the session's client socket, so the retry scanner can
// hand it to a replacement Session without the original ever closing it.
func (s *Session) ClientConn() net.Conn {
	return s.client
}

// ClientAddr returns the remote address of the client, captured at accept time.
func (s *Session) ClientAddr() string {
	return s.clientAddr
}

// Worker returns the backend this session was dispatched to.
func (s *Session) Worker() config.Worker {
	return s.worker
}

// FailedToConnect reports whether the connect phase failed and has not yet
// been observed and cleared by the retry scanner.
func (s *Session) FailedToConnect() bool {
	return s.failedToConnect.Load()
}

// ClearFailedToConnect is called exactly once by the retry scanner when it
// picks this session up, just before it dispatches a replacement session.
func (s *Session) ClearFailedToConnect() {
	s.failedToConnect.Store(false)
}

// Done is closed once the session's Run has returned, for the reaper's
// non-blocking join.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Terminate marks the session as terminating, so the resulting I/O errors
// are not logged by Run, and closes the client socket; the relay then closes
// the worker socket as it unwinds.
func (s *Session) Terminate() {
	s.terminating.Store(true)
	_ = s.client.Close()
}

// Run executes the connect phase, then — only on success — the relay
// phase. It always closes done on return. Pre-connect failure is reported
// solely via FailedToConnect; the client socket is left open for the retry
// scanner. Run must be called at most once per Session.
func (s *Session) Run() {
	defer close(s.done)

	worker, err := net.DialTimeout("tcp", net.JoinHostPort(s.worker.Addr, strconv.Itoa(s.worker.Port)), GracefulWindow)
	if err != nil {
		wrapped := liberr.New(uint16(liberr.WorkerDialFailed), err.Error())
		s.log.Info("worker connect failed for %s -> %s:%d: %s", nil, s.clientAddr, s.worker.Addr, s.worker.Port, wrapped.Error())
		s.failedToConnect.Store(true)
		time.Sleep(GracefulWindow)
		return
	}
	defer func() { _ = worker.Close() }()

	s.relay(worker)
}

// relay copies bytes in both directions concurrently until either
// direction reaches EOF or errors; closing both sockets then unblocks the
// other direction's read. Each direction preserves FIFO order
// independently, matching the original readiness-multiplexed loop's
// observable behavior with Go's native concurrent-copy idiom instead of a
// hand-rolled select/poll cycle.
func (s *Session) relay(worker net.Conn) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		s.pipe(s.client, worker, "worker->client")
	}()

	go func() {
		defer wg.Done()
		s.pipe(worker, s.client, "client->worker")
	}()

	wg.Wait()
}

// pipe copies one direction and then closes both sockets so the other
// direction's blocked read unblocks. Whichever direction finishes first
// claims first-responder status via closing.Swap: only it may log, so the
// other direction's resulting "closed network connection" error (an echo
// of this close, not a genuine relay failure) is never reported.
func (s *Session) pipe(dst io.Writer, src io.Reader, direction string) {
	buf := make([]byte, s.bufferSize)

	_, err := io.CopyBuffer(dst, src, buf)

	firstResponder := !s.closing.Swap(true)
	if err != nil && firstResponder && !s.terminating.Load() {
		wrapped := liberr.New(uint16(liberr.RelayFailed), err.Error())
		s.log.Error("relay error (%s) for %s: %s", nil, direction, s.clientAddr, wrapped.Error())
	}

	s.client.Close()
	if c, ok := dst.(net.Conn); ok {
		c.Close()
	}
	if c, ok := src.(net.Conn); ok {
		c.Close()
	}
}
