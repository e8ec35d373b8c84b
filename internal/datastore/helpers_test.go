package datastore

import (
	"runtime"
	"testing"
	"time"
)

func waitCalls(t *testing.T, f *scriptedFetcher, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		f.mu.Lock()
		c := f.calls
		f.mu.Unlock()
		if c >= n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("fetcher saw %d calls, want %d", c, n)
		}
		runtime.Gosched()
	}
}
