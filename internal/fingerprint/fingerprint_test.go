package fingerprint

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/albyma98/wcmvpvs-client/internal/hostenv"
	"github.com/albyma98/wcmvpvs-client/internal/model"
	"github.com/albyma98/wcmvpvs-client/internal/storage"
)

type fakeEnv struct {
	sig    hostenv.Signals
	sigErr error

	delay time.Duration
	calls atomic.Int32
}

var _ hostenv.Environment = (*fakeEnv)(nil)

func (f *fakeEnv) Origin() (hostenv.Origin, bool)  { return hostenv.Origin{}, true }
func (f *fakeEnv) Storage() (storage.Store, error) { return nil, errors.New("no storage") }
func (f *fakeEnv) RandomUUID() (string, bool)      { return "", false }

func (f *fakeEnv) Signals() (hostenv.Signals, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.sig, f.sigErr
}

func fullSignals() hostenv.Signals {
	return hostenv.Signals{
		UserAgent:           "wcmvpvs-client/dev (linux; arm64)",
		Platform:            "linux",
		Language:            "it-IT",
		Languages:           []string{"it-IT", "en-US"},
		HardwareConcurrency: 4,
		MaxTouchPoints:      10,
		ScreenWidth:         1280,
		ScreenHeight:        800,
		ColorDepth:          24,
		DeviceMemoryGB:      8,
		TimezoneName:        "Europe/Rome",
		TimezoneOffsetMin:   -120,
		GraphicsRenderer:    "Mali-G52",
	}
}

func TestCollect_AllFields(t *testing.T) {
	t.Parallel()
	c := NewCollector(&fakeEnv{sig: fullSignals()}, zap.NewNop())
	fp := c.Collect(context.Background())

	want := model.Fingerprint{
		Browser:             "wcmvpvs-client/dev (linux; arm64)",
		Platform:            "linux",
		Screen:              "1280x800",
		ColorDepth:          24,
		Timezone:            "Europe/Rome",
		TimezoneOffset:      -120,
		DeviceMemory:        "8",
		HardwareConcurrency: 4,
		Languages:           "it-IT,en-US",
		Graphics:            "Mali-G52",
		TouchSupport:        TouchEnabled,
	}
	if fp != want {
		t.Fatalf("fingerprint mismatch:\n got %+v\nwant %+v", fp, want)
	}
}

func TestCollect_Fallbacks(t *testing.T) {
	t.Parallel()
	c := NewCollector(&fakeEnv{sig: hostenv.Signals{}}, zap.NewNop())
	fp := c.Collect(context.Background())

	for name, v := range map[string]string{
		"browser":       fp.Browser,
		"platform":      fp.Platform,
		"screen":        fp.Screen,
		"timezone":      fp.Timezone,
		"device_memory": fp.DeviceMemory,
		"languages":     fp.Languages,
		"graphics":      fp.Graphics,
	} {
		if v != model.UnknownValue {
			t.Fatalf("%s=%q, want %q", name, v, model.UnknownValue)
		}
	}
	if fp.ColorDepth != 0 || fp.HardwareConcurrency != 0 || fp.TimezoneOffset != 0 {
		t.Fatalf("numeric fallbacks: %+v", fp)
	}
	if fp.TouchSupport != TouchAbsent {
		t.Fatalf("touch=%q, want %q", fp.TouchSupport, TouchAbsent)
	}
}

func TestCollect_SignalErrorYieldsSentinel(t *testing.T) {
	t.Parallel()
	c := NewCollector(&fakeEnv{sigErr: errors.New("no host")}, zap.NewNop())
	if fp := c.Collect(context.Background()); fp != model.UnknownFingerprint() {
		t.Fatalf("got %+v, want sentinel payload", fp)
	}
}

func TestCollect_Idempotent(t *testing.T) {
	t.Parallel()
	env := &fakeEnv{sig: fullSignals()}
	c := NewCollector(env, zap.NewNop())

	first := c.Collect(context.Background())
	second := c.Collect(context.Background())
	if first != second {
		t.Fatalf("sequential collections differ")
	}
	if got := env.calls.Load(); got != 1 {
		t.Fatalf("signals probed %d times, want 1", got)
	}
}

func TestCollect_ConcurrentCallersShareOneComputation(t *testing.T) {
	t.Parallel()
	env := &fakeEnv{sig: fullSignals(), delay: 30 * time.Millisecond}
	c := NewCollector(env, zap.NewNop())

	const n = 16
	results := make([]model.Fingerprint, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Collect(context.Background())
		}(i)
	}
	wg.Wait()

	if got := env.calls.Load(); got != 1 {
		t.Fatalf("signals probed %d times under concurrency, want 1", got)
	}
	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatalf("caller %d saw a different payload", i)
		}
	}
}

func TestReset_AllowsRecomputation(t *testing.T) {
	t.Parallel()
	env := &fakeEnv{sig: fullSignals()}
	c := NewCollector(env, zap.NewNop())

	_ = c.Collect(context.Background())
	c.Reset()
	_ = c.Collect(context.Background())
	if got := env.calls.Load(); got != 2 {
		t.Fatalf("signals probed %d times after reset, want 2", got)
	}
}
