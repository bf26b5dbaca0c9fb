package logger

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// capture redirects output for the duration of the test.
func capture(t *testing.T, verboseOn bool) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)
	SetOutput(buf)
	SetVerbose(verboseOn)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetVerbose(false)
	})
	return buf
}

func TestSetVerbose(t *testing.T) {
	capture(t, false)
	assert.False(t, IsVerbose())
	SetVerbose(true)
	assert.True(t, IsVerbose())
}

func TestLevels(t *testing.T) {
	tests := []struct {
		name   string
		log    func()
		want   string
		always bool
	}{
		{"debug", func() { Debug("fetching %s", "/popular?page=2") }, "[DEBUG] fetching /popular?page=2\n", false},
		{"info", func() { Info("loaded %d sources", 3) }, "[INFO] loaded 3 sources\n", false},
		{"warn", func() { Warn("package %s failed to load", "foo") }, "[WARN] package foo failed to load\n", false},
		{"section", func() { Section("Catalog") }, "\n=== Catalog ===\n", false},
		{"error", func() { Error("chapter %d failed", 42) }, "[ERROR] chapter 42 failed\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name+"/verbose", func(t *testing.T) {
			buf := capture(t, true)
			tt.log()
			assert.Equal(t, tt.want, buf.String())
		})
		t.Run(tt.name+"/quiet", func(t *testing.T) {
			buf := capture(t, false)
			tt.log()
			if tt.always {
				assert.Equal(t, tt.want, buf.String())
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestTiming(t *testing.T) {
	buf := capture(t, true)

	Timing("download run", time.Now().Add(-1500*time.Millisecond))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "[DEBUG] download run took 1.5"), out)
	assert.True(t, strings.HasSuffix(out, "s\n"), out)
}

func TestConcurrentWorkersDoNotInterleave(t *testing.T) {
	buf := capture(t, true)

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				Debug("worker %d fetched chapter", w)
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 400)
	for _, l := range lines {
		assert.Regexp(t, `^\[DEBUG\] worker \d fetched chapter$`, l)
	}
}
