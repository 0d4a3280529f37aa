// Package hostenv abstracts the execution context the client runs in: the
// page origin, durable storage, crypto randomness, and the hardware/software
// signals feeding device identity and fingerprinting. Injecting Environment
// keeps every consumer testable without a real host.
package hostenv

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"

	"github.com/albyma98/wcmvpvs-client/internal/storage"
)

// Version identifies the client build; set via -ldflags at release time.
var Version = "dev"

// Origin is the page origin the client is considered to run under.
type Origin struct {
	Scheme   string // "http" or "https"
	Hostname string
	Port     string // empty when the origin uses the default port
}

// Signals is the raw signal bundle read from the host. Zero values mean the
// signal could not be read; consumers map them to their defined fallbacks.
type Signals struct {
	UserAgent           string
	Platform            string
	Vendor              string
	Language            string
	Languages           []string
	HardwareConcurrency int
	MaxTouchPoints      int
	TouchEvents         bool
	ScreenWidth         int
	ScreenHeight        int
	ColorDepth          int
	DevicePixelRatio    float64
	DeviceMemoryGB      float64
	TimezoneName        string
	TimezoneOffsetMin   int // minutes west of UTC
	GraphicsRenderer    string
}

// Environment is the capability surface of the execution context.
type Environment interface {
	// Origin returns the page origin; ok is false when there is no page
	// context at all (the "server" execution mode).
	Origin() (Origin, bool)
	// Storage returns the durable local key-value store.
	Storage() (storage.Store, error)
	// RandomUUID returns a crypto-random UUID when a generator is available.
	RandomUUID() (string, bool)
	// Signals returns the best-effort signal bundle.
	Signals() (Signals, error)
}

// Host is the real Environment backed by process environment and OS probes.
type Host struct {
	log   *zap.Logger
	store *storage.FileStore

	origin   Origin
	originOK bool

	sigOnce sync.Once
	sig     Signals
}

// NewHost builds a Host. The origin is parsed once from VOTE_PAGE_ORIGIN;
// an empty or unparseable value means no page context.
func NewHost(log *zap.Logger) *Host {
	h := &Host{log: log, store: storage.NewFileStore("")}
	raw := strings.TrimSpace(os.Getenv("VOTE_PAGE_ORIGIN"))
	if raw == "" {
		return h
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		log.Warn("ignoring unparseable page origin", zap.String("origin", raw))
		return h
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "http"
	}
	h.origin = Origin{Scheme: scheme, Hostname: u.Hostname(), Port: u.Port()}
	h.originOK = true
	return h
}

// Origin implements Environment.
func (h *Host) Origin() (Origin, bool) { return h.origin, h.originOK }

// Storage implements Environment.
func (h *Host) Storage() (storage.Store, error) { return h.store, nil }

// RandomUUID implements Environment.
func (h *Host) RandomUUID() (string, bool) {
	id, err := uuid.NewV4()
	if err != nil {
		h.log.Warn("uuid generation failed", zap.Error(err))
		return "", false
	}
	return id.String(), true
}

// Signals implements Environment. The bundle is probed once per process;
// every probe degrades independently to its zero value.
func (h *Host) Signals() (Signals, error) {
	h.sigOnce.Do(func() { h.sig = h.probe() })
	return h.sig, nil
}

func (h *Host) probe() Signals {
	s := Signals{
		UserAgent: fmt.Sprintf("wcmvpvs-client/%s (%s; %s)", Version, runtime.GOOS, runtime.GOARCH),
		Platform:  runtime.GOOS,
		Vendor:    runtime.Version(),
	}

	s.Languages = hostLanguages()
	if len(s.Languages) > 0 {
		s.Language = s.Languages[0]
	}

	s.HardwareConcurrency = runtime.NumCPU()
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		s.HardwareConcurrency = n
	} else if err != nil {
		h.log.Debug("cpu count probe failed", zap.Error(err))
	}

	if vm, err := mem.VirtualMemory(); err == nil && vm.Total > 0 {
		s.DeviceMemoryGB = math.Round(float64(vm.Total) / (1 << 30))
	} else if err != nil {
		h.log.Debug("memory probe failed", zap.Error(err))
	}

	now := time.Now()
	name, offsetSec := now.Zone()
	if tz := strings.TrimSpace(os.Getenv("TZ")); tz != "" {
		name = tz
	}
	s.TimezoneName = name
	s.TimezoneOffsetMin = -offsetSec / 60

	s.ScreenWidth, s.ScreenHeight, s.ColorDepth = parseScreen(os.Getenv("VOTE_SCREEN"))
	s.DevicePixelRatio = getfloat("VOTE_PIXEL_RATIO", 0)
	s.MaxTouchPoints = getint("VOTE_TOUCH_POINTS", 0)
	s.TouchEvents = s.MaxTouchPoints > 0
	s.GraphicsRenderer = strings.TrimSpace(os.Getenv("VOTE_GPU"))

	return s
}

// hostLanguages derives the preference list from the usual locale variables,
// normalized to BCP 47 style tags ("en_US.UTF-8" -> "en-US").
func hostLanguages() []string {
	var raw []string
	if v := os.Getenv("LANGUAGE"); v != "" {
		raw = strings.Split(v, ":")
	} else if v := os.Getenv("LC_ALL"); v != "" {
		raw = []string{v}
	} else if v := os.Getenv("LANG"); v != "" {
		raw = []string{v}
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		tag := normalizeLocale(r)
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func normalizeLocale(v string) string {
	v = strings.TrimSpace(v)
	if i := strings.IndexAny(v, ".@"); i >= 0 {
		v = v[:i]
	}
	v = strings.ReplaceAll(v, "_", "-")
	if v == "" || strings.EqualFold(v, "C") || strings.EqualFold(v, "POSIX") {
		return ""
	}
	return v
}

// parseScreen accepts "WxH" or "WxHxDEPTH" kiosk overrides.
func parseScreen(v string) (w, h, depth int) {
	parts := strings.Split(strings.TrimSpace(strings.ToLower(v)), "x")
	if len(parts) < 2 {
		return 0, 0, 0
	}
	w, _ = strconv.Atoi(parts[0])
	h, _ = strconv.Atoi(parts[1])
	if len(parts) > 2 {
		depth, _ = strconv.Atoi(parts[2])
	}
	if w <= 0 || h <= 0 {
		return 0, 0, 0
	}
	return w, h, depth
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}
