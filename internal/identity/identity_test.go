package identity

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/albyma98/wcmvpvs-client/internal/hostenv"
	"github.com/albyma98/wcmvpvs-client/internal/storage"
)

type memStore struct {
	m      map[string]string
	getErr error
	setErr error
}

func (s *memStore) Get(key string) (string, error) {
	if s.getErr != nil {
		return "", s.getErr
	}
	return s.m[key], nil
}

func (s *memStore) Set(key, value string) error {
	if s.setErr != nil {
		return s.setErr
	}
	if s.m == nil {
		s.m = map[string]string{}
	}
	s.m[key] = value
	return nil
}

type fakeEnv struct {
	hasOrigin bool
	store     storage.Store
	storeErr  error
	uuid      string
	sig       hostenv.Signals
	sigErr    error
}

var _ hostenv.Environment = (*fakeEnv)(nil)

func (f *fakeEnv) Origin() (hostenv.Origin, bool) {
	return hostenv.Origin{Scheme: "http", Hostname: "localhost"}, f.hasOrigin
}

func (f *fakeEnv) Storage() (storage.Store, error) { return f.store, f.storeErr }

func (f *fakeEnv) RandomUUID() (string, bool) { return f.uuid, f.uuid != "" }

func (f *fakeEnv) Signals() (hostenv.Signals, error) { return f.sig, f.sigErr }

func richSignals() hostenv.Signals {
	return hostenv.Signals{
		Platform:            "linux",
		Language:            "it-IT",
		Languages:           []string{"it-IT", "en-US"},
		Vendor:              "go1.24.5",
		HardwareConcurrency: 8,
		MaxTouchPoints:      10,
		ScreenWidth:         1920,
		ScreenHeight:        1080,
		ColorDepth:          24,
		DevicePixelRatio:    1.25,
		TimezoneOffsetMin:   -120,
	}
}

func TestGetOrCreateDeviceID_NoContext(t *testing.T) {
	t.Parallel()
	p := NewProvider(&fakeEnv{}, zap.NewNop())
	if got := p.GetOrCreateDeviceID(); got != ServerID {
		t.Fatalf("got %q, want %q", got, ServerID)
	}
}

func TestGetOrCreateDeviceID_StoredValueWins(t *testing.T) {
	t.Parallel()
	env := &fakeEnv{
		hasOrigin: true,
		store:     &memStore{m: map[string]string{storage.KeyDeviceID: "fp-existing"}},
		sig:       richSignals(),
	}
	p := NewProvider(env, zap.NewNop())
	if got := p.GetOrCreateDeviceID(); got != "fp-existing" {
		t.Fatalf("got %q, want stored id", got)
	}
}

func TestGetOrCreateDeviceID_DeterministicAndStable(t *testing.T) {
	t.Parallel()
	env := &fakeEnv{hasOrigin: true, store: &memStore{}, sig: richSignals()}
	p := NewProvider(env, zap.NewNop())

	first := p.GetOrCreateDeviceID()
	if !strings.HasPrefix(first, "fp-") {
		t.Fatalf("deterministic id %q missing prefix", first)
	}
	if got := p.GetOrCreateDeviceID(); got != first {
		t.Fatalf("repeat call changed id: %q vs %q", got, first)
	}

	// Simulated reload: fresh provider, empty storage, same signals.
	reload := NewProvider(&fakeEnv{hasOrigin: true, store: &memStore{}, sig: richSignals()}, zap.NewNop())
	if got := reload.GetOrCreateDeviceID(); got != first {
		t.Fatalf("id not stable across reload: %q vs %q", got, first)
	}
}

func TestGetOrCreateDeviceID_PersistsResult(t *testing.T) {
	t.Parallel()
	store := &memStore{}
	env := &fakeEnv{hasOrigin: true, store: store, sig: richSignals()}
	id := NewProvider(env, zap.NewNop()).GetOrCreateDeviceID()
	if store.m[storage.KeyDeviceID] != id {
		t.Fatalf("id not persisted: store=%q id=%q", store.m[storage.KeyDeviceID], id)
	}
}

func TestGetOrCreateDeviceID_StorageFailuresDegrade(t *testing.T) {
	t.Parallel()
	boom := errors.New("quota exceeded")

	// Reads and writes both failing must still yield a value every call.
	env := &fakeEnv{
		hasOrigin: true,
		store:     &memStore{getErr: boom, setErr: boom},
		sig:       richSignals(),
	}
	p := NewProvider(env, zap.NewNop())
	for i := 0; i < 3; i++ {
		if got := p.GetOrCreateDeviceID(); strings.TrimSpace(got) == "" {
			t.Fatalf("empty id with failing storage")
		}
	}

	// Storage handle itself unavailable.
	p = NewProvider(&fakeEnv{hasOrigin: true, storeErr: boom, sig: richSignals()}, zap.NewNop())
	if got := p.GetOrCreateDeviceID(); strings.TrimSpace(got) == "" {
		t.Fatalf("empty id with unavailable storage")
	}
}

func TestGetOrCreateDeviceID_UUIDPreferredOnEmptySignals(t *testing.T) {
	t.Parallel()
	env := &fakeEnv{
		hasOrigin: true,
		store:     &memStore{},
		uuid:      "3b44ef1c-6e15-4f8f-9f2b-0a9d64f2b111",
		sigErr:    errors.New("signals unavailable"),
	}
	if got := NewProvider(env, zap.NewNop()).GetOrCreateDeviceID(); got != env.uuid {
		t.Fatalf("got %q, want uuid fallback", got)
	}
}

func TestGetOrCreateDeviceID_EmptySignalBundleFallsBack(t *testing.T) {
	t.Parallel()
	env := &fakeEnv{
		hasOrigin: true,
		store:     &memStore{},
		uuid:      "7f9b2a4e-0d7a-4c55-8b7e-2f6f3a1d9c01",
		// zero-valued Signals: every data point renders empty
	}
	if got := NewProvider(env, zap.NewNop()).GetOrCreateDeviceID(); got != env.uuid {
		t.Fatalf("got %q, want uuid fallback on empty bundle", got)
	}
}

func TestGetOrCreateDeviceID_RandomFallbackWithoutUUID(t *testing.T) {
	t.Parallel()
	env := &fakeEnv{
		hasOrigin: true,
		store:     &memStore{},
		sigErr:    errors.New("signals unavailable"),
	}
	got := NewProvider(env, zap.NewNop()).GetOrCreateDeviceID()
	if strings.TrimSpace(got) == "" || got == ServerID {
		t.Fatalf("random fallback missing: %q", got)
	}
	if parts := strings.Split(got, "-"); len(parts) != 3 {
		t.Fatalf("fallback id %q not timestamp-random-random", got)
	}
}

func TestHash32_KnownVectors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want uint32
	}{
		{"", 0},
		{"a", 97},
		{"abc", 96354},
	}
	for _, tc := range tests {
		if got := hash32(tc.in); got != tc.want {
			t.Fatalf("hash32(%q)=%d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestRandomID_Shape(t *testing.T) {
	t.Parallel()
	a := RandomID()
	b := RandomID()
	if a == b {
		t.Fatalf("RandomID produced equal values")
	}
	for _, id := range []string{a, b} {
		parts := strings.Split(id, "-")
		if len(parts) != 3 || len(parts[1]) != 8 || len(parts[2]) != 8 {
			t.Fatalf("RandomID %q has unexpected shape", id)
		}
	}
}
