package listener_test

import (
	"net"
	"strconv"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/tcplb/config"
	"github.com/nabbar/tcplb/listener"
	"github.com/nabbar/tcplb/logger"
)

// freePort reserves and immediately releases a TCP port on loopback, for
// handing a Listener an address nothing else is bound to yet.
func freePort() int {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).ToNot(HaveOccurred())
	defer func() { _ = ln.Close() }()

	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	Expect(err).ToNot(HaveOccurred())

	port, err := strconv.Atoi(portStr)
	Expect(err).ToNot(HaveOccurred())

	return port
}

// startTaggingWorker starts a worker that writes tag as soon as a client
// connects, then echoes whatever the client sends afterward — used to tell
// which of several workers a given client ended up relayed to.
func startTaggingWorker(tag string) config.Worker {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).ToNot(HaveOccurred())

	go func() {
		defer GinkgoRecover()
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer func() { _ = c.Close() }()
				if _, err := c.Write([]byte(tag)); err != nil {
					return
				}
				buf := make([]byte, 4096)
				for {
					n, err := c.Read(buf)
					if n > 0 {
						if _, werr := c.Write(buf[:n]); werr != nil {
							return
						}
					}
					if err != nil {
						return
					}
				}
			}(c)
		}
	}()

	DeferCleanup(func() { _ = ln.Close() })

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	Expect(err).ToNot(HaveOccurred())
	port, err := strconv.Atoi(portStr)
	Expect(err).ToNot(HaveOccurred())

	return config.Worker{Addr: host, Port: port}
}

func startEchoWorker() config.Worker {
	return startTaggingWorker("")
}

// unreachableWorker returns a worker address nothing is listening on, so
// dialing it fails immediately with connection refused.
func unreachableWorker() config.Worker {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).ToNot(HaveOccurred())

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	Expect(err).ToNot(HaveOccurred())
	port, err := strconv.Atoi(portStr)
	Expect(err).ToNot(HaveOccurred())

	Expect(ln.Close()).ToNot(HaveOccurred())

	return config.Worker{Addr: host, Port: port}
}

func dialListener(mapping config.Mapping) net.Conn {
	var conn net.Conn
	var err error

	addr := net.JoinHostPort(mapping.ListenAddr, strconv.Itoa(mapping.ListenPort))
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("tcp", addr)
		if err == nil {
			return conn
		}
		time.Sleep(50 * time.Millisecond)
	}
	Expect(err).ToNot(HaveOccurred())
	return conn
}

var _ = Describe("Listener", func() {
	var log = logger.New("test")

	// Scenario 1 (spec.md §8): a single worker relays bytes in both
	// directions through one listener.
	It("relays bytes through a single worker", func() {
		worker := startEchoWorker()
		mapping := config.Mapping{
			ListenAddr: "127.0.0.1",
			ListenPort: freePort(),
			Workers:    []config.Worker{worker},
		}

		l := listener.New(mapping, 4096, log)
		go l.Serve()
		defer l.Shutdown(2 * time.Second)

		conn := dialListener(mapping)
		defer func() { _ = conn.Close() }()

		_, err := conn.Write([]byte("hello"))
		Expect(err).ToNot(HaveOccurred())

		buf := make([]byte, 5)
		Expect(conn.SetReadDeadline(time.Now().Add(2 * time.Second))).ToNot(HaveOccurred())
		n, err := conn.Read(buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(buf[:n])).To(Equal("hello"))
	})

	// Scenario 2 (spec.md §8): round-robin across two real workers —
	// consecutive accepted connections land on different workers in
	// declaration order.
	It("round-robins across two workers", func() {
		workerA := startTaggingWorker("A")
		workerB := startTaggingWorker("B")

		mapping := config.Mapping{
			ListenAddr: "127.0.0.1",
			ListenPort: freePort(),
			Workers:    []config.Worker{workerA, workerB},
		}

		l := listener.New(mapping, 4096, log)
		go l.Serve()
		defer l.Shutdown(2 * time.Second)

		conn1 := dialListener(mapping)
		defer func() { _ = conn1.Close() }()

		tag1 := make([]byte, 1)
		Expect(conn1.SetReadDeadline(time.Now().Add(2 * time.Second))).ToNot(HaveOccurred())
		_, err := conn1.Read(tag1)
		Expect(err).ToNot(HaveOccurred())

		conn2 := dialListener(mapping)
		defer func() { _ = conn2.Close() }()

		tag2 := make([]byte, 1)
		Expect(conn2.SetReadDeadline(time.Now().Add(2 * time.Second))).ToNot(HaveOccurred())
		_, err = conn2.Read(tag2)
		Expect(err).ToNot(HaveOccurred())

		Expect(string(tag1)).To(Equal("A"))
		Expect(string(tag2)).To(Equal("B"))
	})

	// Scenario 3 (spec.md §8): a dial failure against the first-assigned
	// worker is followed by the retry scanner re-dispatching the same
	// client socket to an alternate worker, without the client ever
	// observing a closed connection.
	It("fails over to an alternate worker after a dial failure", func() {
		dead := unreachableWorker()
		alive := startEchoWorker()

		mapping := config.Mapping{
			ListenAddr: "127.0.0.1",
			ListenPort: freePort(),
			Workers:    []config.Worker{dead, alive},
		}

		l := listener.New(mapping, 4096, log)
		go l.Serve()
		defer l.Shutdown(2 * time.Second)

		conn := dialListener(mapping)
		defer func() { _ = conn.Close() }()

		_, err := conn.Write([]byte("retry-me"))
		Expect(err).ToNot(HaveOccurred())

		buf := make([]byte, len("retry-me"))
		Expect(conn.SetReadDeadline(time.Now().Add(8 * time.Second))).ToNot(HaveOccurred())
		n, err := readFull(conn, buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(buf[:n])).To(Equal("retry-me"))
	})

	// Scenario 4 (spec.md §8): bytes exchanged before Shutdown are
	// delivered; Shutdown then returns within its bounded budget and closes
	// the still-open session.
	It("drains an active session on graceful shutdown", func() {
		worker := startEchoWorker()
		mapping := config.Mapping{
			ListenAddr: "127.0.0.1",
			ListenPort: freePort(),
			Workers:    []config.Worker{worker},
		}

		l := listener.New(mapping, 4096, log)
		go l.Serve()

		conn := dialListener(mapping)
		defer func() { _ = conn.Close() }()

		_, err := conn.Write([]byte("ping"))
		Expect(err).ToNot(HaveOccurred())

		buf := make([]byte, 4)
		Expect(conn.SetReadDeadline(time.Now().Add(2 * time.Second))).ToNot(HaveOccurred())
		_, err = conn.Read(buf)
		Expect(err).ToNot(HaveOccurred())

		Expect(l.ActiveSessionCount()).To(Equal(1))

		started := time.Now()
		l.Shutdown(2 * time.Second)
		Expect(time.Since(started)).To(BeNumerically("<", 3*time.Second))

		Expect(conn.SetReadDeadline(time.Now().Add(2 * time.Second))).ToNot(HaveOccurred())
		_, err = conn.Read(buf)
		Expect(err).To(HaveOccurred())
	})
})

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
