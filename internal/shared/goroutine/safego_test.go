package goroutine

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestSafeGoRuns(t *testing.T) {
	var wg sync.WaitGroup
	ran := false
	SafeGo(slog.Default(), &wg, "job", func() { ran = true })
	wg.Wait()
	if !ran {
		t.Fatalf("expected fn to run")
	}
}

func TestSafeGoRecoversPanic(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	var wg sync.WaitGroup
	SafeGo(log, &wg, "fanout", func() { panic("boom") })
	wg.Wait()
	if !strings.Contains(buf.String(), "goroutine panicked") || !strings.Contains(buf.String(), "fanout") {
		t.Fatalf("expected panic to be logged: %s", buf.String())
	}
}
