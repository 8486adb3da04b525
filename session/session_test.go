package session_test

import (
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/nabbar/tcplb/config"
	"github.com/nabbar/tcplb/logger"
	"github.com/nabbar/tcplb/session"
)

func listenLoopback(t *testing.T) net.Listener {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	return ln
}

func workerFor(t *testing.T, ln net.Listener) config.Worker {
	t.Helper()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("failed to split worker address: %v", err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("failed to parse worker port: %v", err)
	}

	return config.Worker{Addr: host, Port: port}
}

func TestRunRelaysBothDirections(t *testing.T) {
	workerLn := listenLoopback(t)
	defer workerLn.Close()

	worker := workerFor(t, workerLn)

	serverSide := make(chan net.Conn, 1)
	go func() {
		c, err := workerLn.Accept()
		if err != nil {
			return
		}
		serverSide <- c
	}()

	clientLn := listenLoopback(t)
	defer clientLn.Close()

	clientDialed := make(chan net.Conn, 1)
	go func() {
		c, err := net.Dial("tcp", clientLn.Addr().String())
		if err != nil {
			return
		}
		clientDialed <- c
	}()

	acceptedClient, err := clientLn.Accept()
	if err != nil {
		t.Fatalf("failed to accept simulated client: %v", err)
	}

	s := session.New(acceptedClient, worker, 4096, logger.New("test"))
	go s.Run()

	wc := <-serverSide
	defer wc.Close()

	cc := <-clientDialed
	defer cc.Close()

	if _, err := cc.Write([]byte("ping")); err != nil {
		t.Fatalf("client write failed: %v", err)
	}

	buf := make([]byte, 4)
	if _, err := io.ReadFull(wc, buf); err != nil {
		t.Fatalf("worker did not receive relayed bytes: %v", err)
	}
	if string(buf) != "ping" {
		t.Fatalf("expected ping, got %q", buf)
	}

	if _, err := wc.Write([]byte("pong")); err != nil {
		t.Fatalf("worker write failed: %v", err)
	}

	if _, err := io.ReadFull(cc, buf); err != nil {
		t.Fatalf("client did not receive relayed bytes: %v", err)
	}
	if string(buf) != "pong" {
		t.Fatalf("expected pong, got %q", buf)
	}

	s.Terminate()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate after Terminate()")
	}
}

// TestRunEndsOnNaturalPeerClose exercises session closure that is never
// routed through Terminate: the simulated client simply hangs up, as a real
// client would at the end of a request. Both relay directions must notice
// and Run must return promptly, with neither goroutine's resulting "closed
// network connection" error escaping as a logged relay failure.
func TestRunEndsOnNaturalPeerClose(t *testing.T) {
	workerLn := listenLoopback(t)
	defer workerLn.Close()

	worker := workerFor(t, workerLn)

	serverSide := make(chan net.Conn, 1)
	go func() {
		c, err := workerLn.Accept()
		if err != nil {
			return
		}
		serverSide <- c
	}()

	clientLn := listenLoopback(t)
	defer clientLn.Close()

	clientDialed := make(chan net.Conn, 1)
	go func() {
		c, err := net.Dial("tcp", clientLn.Addr().String())
		if err != nil {
			return
		}
		clientDialed <- c
	}()

	acceptedClient, err := clientLn.Accept()
	if err != nil {
		t.Fatalf("failed to accept simulated client: %v", err)
	}

	s := session.New(acceptedClient, worker, 4096, logger.New("test"))
	go s.Run()

	wc := <-serverSide
	defer wc.Close()

	cc := <-clientDialed

	// The client hangs up on its own, the way a real client does at the end
	// of a request — never through s.Terminate().
	cc.Close()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end after the client closed its side")
	}
}

func TestRunSetsFailedToConnectOnDialFailure(t *testing.T) {
	clientLn := listenLoopback(t)
	defer clientLn.Close()

	go func() {
		c, err := net.Dial("tcp", clientLn.Addr().String())
		if err == nil {
			defer c.Close()
			time.Sleep(4 * time.Second)
		}
	}()

	acceptedClient, err := clientLn.Accept()
	if err != nil {
		t.Fatalf("failed to accept simulated client: %v", err)
	}

	unreachable := config.Worker{Addr: "127.0.0.1", Port: 1}

	s := session.New(acceptedClient, unreachable, 4096, logger.New("test"))

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not return after failed connect")
	}

	if !s.FailedToConnect() {
		t.Fatal("expected FailedToConnect to be true after dial failure")
	}

	s.ClearFailedToConnect()
	if s.FailedToConnect() {
		t.Fatal("expected FailedToConnect to be false after clear")
	}
}
