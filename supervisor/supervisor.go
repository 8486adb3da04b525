// Package supervisor owns the whole tcplb process: it starts one Listener
// Supervisor per configured mapping, waits for a termination signal, and
// drains every listener within a fixed graceful-shutdown budget.
package supervisor

import (
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/nabbar/tcplb/config"
	"github.com/nabbar/tcplb/listener"
	"github.com/nabbar/tcplb/logger"
	"github.com/nabbar/tcplb/monitor"
	"github.com/nabbar/tcplb/version"
)

// GracefulShutdownTime bounds how long the supervisor waits for every
// listener to drain once a shutdown has begun.
const GracefulShutdownTime = 6 * time.Second

// perListenerDrainBudget is the share of GracefulShutdownTime each listener
// gets to drain concurrently with its siblings.
const perListenerDrainBudget = 3 * time.Second

// Supervisor runs one Listener Supervisor per configured mapping and
// coordinates their shutdown.
type Supervisor struct {
	log       logger.Logger
	registry  *monitor.Registry
	listeners []*listener.Listener

	terminating atomic.Bool
	wg          sync.WaitGroup
}

// New builds a Supervisor for the given configuration; it does not start
// anything until Run is called.
func New(cfg *config.Config, log logger.Logger) *Supervisor {
	s := &Supervisor{
		log:      log,
		registry: monitor.NewRegistry(),
	}

	for _, m := range cfg.Mappings {
		s.listeners = append(s.listeners, listener.New(m, cfg.Options.BufferSize, log))
	}

	return s
}

// Registry returns the monitor registry this supervisor keeps updated.
func (s *Supervisor) Registry() *monitor.Registry {
	return s.registry
}

// Run starts every listener, blocks until SIGINT/SIGTERM/SIGQUIT (or the
// given stop channel, if non-nil, is closed — used by tests to avoid
// depending on real process signals), then performs an orderly shutdown and
// returns.
func (s *Supervisor) Run(stop <-chan struct{}) {
	s.log.Info(version.Get().Header(), nil)

	for _, l := range s.listeners {
		s.wg.Add(1)
		go func(l *listener.Listener) {
			defer s.wg.Done()
			l.Serve()
		}(l)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(quit)

	go s.statusLoop()

	select {
	case sig := <-quit:
		s.log.Info("received signal %s, beginning graceful shutdown", nil, sig.String())
	case <-stop:
		s.log.Info("shutdown requested, beginning graceful shutdown", nil)
	}

	s.Shutdown()
}

// Shutdown drains every listener, bounded overall by GracefulShutdownTime.
// It is safe to call more than once; only the first call has effect.
func (s *Supervisor) Shutdown() {
	if !s.terminating.CompareAndSwap(false, true) {
		return
	}

	var wg sync.WaitGroup
	for _, l := range s.listeners {
		wg.Add(1)
		go func(l *listener.Listener) {
			defer wg.Done()

			before := l.ActiveSessionCount()
			started := time.Now()
			l.Shutdown(perListenerDrainBudget)

			st := l.Status()
			s.log.Info("listener %s: drained %d sessions in %s", nil,
				net.JoinHostPort(st.ListenAddr, strconv.Itoa(st.ListenPort)), before, time.Since(started))
		}(l)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("all listeners drained", nil)
	case <-time.After(GracefulShutdownTime):
		s.log.Warning("graceful shutdown budget of %s exceeded, exiting anyway", nil, GracefulShutdownTime)
	}

	s.wg.Wait()
}

// statusLoop periodically refreshes the monitor registry so Registry()
// reflects recent activity even between explicit queries.
func (s *Supervisor) statusLoop() {
	t := time.NewTicker(time.Second)
	defer t.Stop()

	for range t.C {
		if s.terminating.Load() {
			return
		}
		s.refreshStatus()
	}
}

func (s *Supervisor) refreshStatus() {
	for _, l := range s.listeners {
		st := l.Status()
		key := net.JoinHostPort(st.ListenAddr, strconv.Itoa(st.ListenPort))
		s.registry.Set(key, st)
	}
}
