package supervisor_test

import (
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/tcplb/config"
	"github.com/nabbar/tcplb/logger"
	"github.com/nabbar/tcplb/supervisor"
)

func freeTCPPort() int {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).ToNot(HaveOccurred())
	defer func() { _ = ln.Close() }()

	return ln.Addr().(*net.TCPAddr).Port
}

var _ = Describe("Supervisor", func() {
	It("starts every listener and stops cleanly when told to", func() {
		cfg := &config.Config{
			Options: config.Options{BufferSize: config.DefaultBufferSize},
			Mappings: []config.Mapping{
				{
					ListenAddr: "127.0.0.1",
					ListenPort: freeTCPPort(),
					Workers:    []config.Worker{{Addr: "127.0.0.1", Port: freeTCPPort()}},
				},
			},
		}

		s := supervisor.New(cfg, logger.New("test"))

		stop := make(chan struct{})
		runDone := make(chan struct{})

		go func() {
			defer GinkgoRecover()
			s.Run(stop)
			close(runDone)
		}()

		time.Sleep(200 * time.Millisecond)
		close(stop)

		Eventually(runDone, 8*time.Second).Should(BeClosed())
	})

	// Coordinates startup/shutdown across more than one configured mapping,
	// confirming each gets its own bound listener and every one of them
	// drains as part of one Shutdown call.
	It("coordinates multiple listeners through one shutdown", func() {
		cfg := &config.Config{
			Options: config.Options{BufferSize: config.DefaultBufferSize},
			Mappings: []config.Mapping{
				{
					ListenAddr: "127.0.0.1",
					ListenPort: freeTCPPort(),
					Workers:    []config.Worker{{Addr: "127.0.0.1", Port: freeTCPPort()}},
				},
				{
					ListenAddr: "127.0.0.1",
					ListenPort: freeTCPPort(),
					Workers:    []config.Worker{{Addr: "127.0.0.1", Port: freeTCPPort()}},
				},
			},
		}

		s := supervisor.New(cfg, logger.New("test"))

		stop := make(chan struct{})
		runDone := make(chan struct{})

		go func() {
			defer GinkgoRecover()
			s.Run(stop)
			close(runDone)
		}()

		Eventually(func() int {
			return len(s.Registry().All())
		}, 3*time.Second, 50*time.Millisecond).Should(Equal(2))

		for _, st := range s.Registry().All() {
			Expect(st.Bound).To(BeTrue())
		}

		close(stop)

		Eventually(runDone, 8*time.Second).Should(BeClosed())
	})
})
