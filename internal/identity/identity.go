// Package identity derives or retrieves the stable per-device identifier.
// The identifier is deterministic for a given host so the same device is
// recognized even before a storage write succeeds; a random fallback
// guarantees a value always exists.
package identity

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"go.uber.org/zap"

	"github.com/albyma98/wcmvpvs-client/internal/errs"
	"github.com/albyma98/wcmvpvs-client/internal/hostenv"
	"github.com/albyma98/wcmvpvs-client/internal/storage"
)

// ServerID is returned when no page/browser execution context exists.
const ServerID = "server"

const (
	signalSeparator = "::"
	idPrefix        = "fp-"
)

// Provider computes and persists the device identifier.
type Provider struct {
	env hostenv.Environment
	log *zap.Logger
}

// NewProvider constructs a Provider.
func NewProvider(env hostenv.Environment, log *zap.Logger) *Provider {
	return &Provider{env: env, log: log}
}

// GetOrCreateDeviceID returns the device identifier. It never fails and
// never touches the network: stored value first, then a deterministic hash
// of the host signal bundle, then a random fallback. Whatever is produced is
// persisted best-effort.
func (p *Provider) GetOrCreateDeviceID() string {
	if _, ok := p.env.Origin(); !ok {
		return ServerID
	}

	store, err := p.env.Storage()
	if err != nil {
		p.log.Warn("storage unavailable for device id", zap.Error(err))
		store = nil
	}
	if store != nil {
		if existing, err := store.Get(storage.KeyDeviceID); err != nil {
			p.log.Warn("cannot read stored device id", zap.Error(err))
		} else if strings.TrimSpace(existing) != "" {
			return existing
		}
	}

	id, err := p.deterministicID()
	if err != nil {
		p.log.Debug("deterministic device id unavailable", zap.Error(err))
		if v, ok := p.env.RandomUUID(); ok {
			id = v
		} else {
			id = RandomID()
		}
	}

	if store != nil {
		if err := store.Set(storage.KeyDeviceID, id); err != nil {
			p.log.Warn("cannot persist device id", zap.Error(err))
		}
	}
	return id
}

// deterministicID hashes the stable signal bundle. It fails when the bundle
// carries no data at all.
func (p *Provider) deterministicID() (string, error) {
	sig, err := p.env.Signals()
	if err != nil {
		return "", err
	}

	points := []string{
		sig.Platform,
		sig.Language,
		strings.Join(sig.Languages, ","),
		sig.Vendor,
		numOrEmpty(sig.HardwareConcurrency),
		numOrEmpty(sig.MaxTouchPoints),
		screenPoint(sig),
		ratioPoint(sig.DevicePixelRatio),
		numOrEmpty(sig.TimezoneOffsetMin),
	}

	empty := true
	for _, pt := range points {
		if strings.TrimSpace(pt) != "" {
			empty = false
			break
		}
	}
	if empty {
		return "", errs.ErrEmptySignals
	}

	return idPrefix + fmt.Sprintf("%x", hash32(strings.Join(points, signalSeparator))), nil
}

// hash32 is the multiply-by-31 rolling hash over UTF-16 code units, coerced
// into signed 32-bit range at every step, returned as the unsigned value.
func hash32(s string) uint32 {
	var h int32
	for _, u := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(u)
	}
	return uint32(h)
}

func numOrEmpty(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func screenPoint(sig hostenv.Signals) string {
	if sig.ScreenWidth == 0 && sig.ScreenHeight == 0 && sig.ColorDepth == 0 {
		return ""
	}
	return fmt.Sprintf("%dx%dx%d", sig.ScreenWidth, sig.ScreenHeight, sig.ColorDepth)
}

func ratioPoint(r float64) string {
	if r == 0 {
		return ""
	}
	rounded := float64(int(r*100+0.5)) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}

// RandomID builds the non-UUID fallback identifier: a base-36 timestamp plus
// two random base-36 segments. The device token manager reuses it for its
// locally synthesized tokens.
func RandomID() string {
	return fmt.Sprintf("%s-%s-%s",
		strconv.FormatInt(time.Now().UnixMilli(), 36),
		randBase36(8),
		randBase36(8),
	)
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func randBase36(n int) string {
	var b strings.Builder
	b.Grow(n)
	limit := big.NewInt(int64(len(base36)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			// crypto/rand failure: fall back to a time-derived digit.
			idx = big.NewInt(time.Now().UnixNano() % int64(len(base36)))
		}
		b.WriteByte(base36[idx.Int64()])
	}
	return b.String()
}
