// Package fingerprint gathers the best-effort device signature submitted as
// a secondary anti-fraud signal. Collection never fails: each unavailable
// signal degrades to its defined fallback, and the payload is computed at
// most once per process.
package fingerprint

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/albyma98/wcmvpvs-client/internal/hostenv"
	"github.com/albyma98/wcmvpvs-client/internal/model"
)

// Touch capability values.
const (
	TouchEnabled = "touch-enabled"
	TouchAbsent  = "no-touch"
)

// Collector memoizes one fingerprint per process lifetime. Concurrent first
// callers share a single computation.
type Collector struct {
	env hostenv.Environment
	log *zap.Logger

	mu     sync.Mutex
	cached *model.Fingerprint
	group  singleflight.Group
}

// NewCollector constructs a Collector.
func NewCollector(env hostenv.Environment, log *zap.Logger) *Collector {
	return &Collector{env: env, log: log}
}

// Collect returns the fingerprint payload. The first call computes it; every
// later call returns the identical cached value.
func (c *Collector) Collect(ctx context.Context) model.Fingerprint {
	c.mu.Lock()
	if c.cached != nil {
		fp := *c.cached
		c.mu.Unlock()
		return fp
	}
	c.mu.Unlock()

	v, _, _ := c.group.Do("fingerprint", func() (any, error) {
		fp := c.compute()
		c.mu.Lock()
		if c.cached == nil {
			c.cached = &fp
		}
		c.mu.Unlock()
		return fp, nil
	})
	return v.(model.Fingerprint)
}

// Reset clears the cache. Test hook only; production code never resets the
// fingerprint mid-lifetime.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

func (c *Collector) compute() model.Fingerprint {
	sig, err := c.env.Signals()
	if err != nil {
		c.log.Warn("signal bundle unavailable, using sentinel fingerprint", zap.Error(err))
		return model.UnknownFingerprint()
	}

	fp := model.Fingerprint{
		Browser:             stringOrUnknown(sig.UserAgent),
		Platform:            stringOrUnknown(sig.Platform),
		Screen:              screenString(sig.ScreenWidth, sig.ScreenHeight),
		ColorDepth:          sig.ColorDepth,
		Timezone:            stringOrUnknown(sig.TimezoneName),
		TimezoneOffset:      sig.TimezoneOffsetMin,
		DeviceMemory:        memoryString(sig.DeviceMemoryGB),
		HardwareConcurrency: sig.HardwareConcurrency,
		Languages:           languagesString(sig),
		Graphics:            stringOrUnknown(sig.GraphicsRenderer),
		TouchSupport:        touchString(sig),
	}
	c.log.Debug("fingerprint collected",
		zap.String("platform", fp.Platform),
		zap.String("screen", fp.Screen),
		zap.Int("hardware_concurrency", fp.HardwareConcurrency),
	)
	return fp
}

func stringOrUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return model.UnknownValue
	}
	return strings.TrimSpace(v)
}

func screenString(w, h int) string {
	if w <= 0 || h <= 0 {
		return model.UnknownValue
	}
	return fmt.Sprintf("%dx%d", w, h)
}

func memoryString(gb float64) string {
	if gb <= 0 {
		return model.UnknownValue
	}
	return formatGB(gb)
}

// formatGB renders whole gigabytes without a trailing ".0".
func formatGB(gb float64) string {
	if gb == float64(int64(gb)) {
		return fmt.Sprintf("%d", int64(gb))
	}
	return fmt.Sprintf("%g", gb)
}

func languagesString(sig hostenv.Signals) string {
	if len(sig.Languages) > 0 {
		return strings.Join(sig.Languages, ",")
	}
	return stringOrUnknown(sig.Language)
}

func touchString(sig hostenv.Signals) string {
	if sig.TouchEvents || sig.MaxTouchPoints > 0 {
		return TouchEnabled
	}
	return TouchAbsent
}
