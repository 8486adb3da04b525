package monitor_test

import (
	"testing"

	"github.com/nabbar/tcplb/monitor"
)

func TestRegistrySetGetRoundtrip(t *testing.T) {
	r := monitor.NewRegistry()

	r.Set("0.0.0.0:9001", monitor.Status{
		ListenAddr:     "0.0.0.0",
		ListenPort:     9001,
		Bound:          true,
		WorkerCount:    2,
		ActiveSessions: 3,
	})

	s, ok := r.Get("0.0.0.0:9001")
	if !ok {
		t.Fatal("expected status to be present")
	}
	if s.WorkerCount != 2 || s.ActiveSessions != 3 {
		t.Fatalf("unexpected status: %+v", s)
	}
}

func TestRegistryAllReturnsCopy(t *testing.T) {
	r := monitor.NewRegistry()
	r.Set("a", monitor.Status{ListenAddr: "a"})

	all := r.All()
	all["a"] = monitor.Status{ListenAddr: "mutated"}

	s, _ := r.Get("a")
	if s.ListenAddr != "a" {
		t.Fatal("All() should return a copy, not a live view")
	}
}

func TestRegistryGetMissingKey(t *testing.T) {
	r := monitor.NewRegistry()
	if _, ok := r.Get("missing"); ok {
		t.Fatal("expected ok=false for missing key")
	}
}
