// Package devicetoken exchanges the device identity for a server-issued
// token. Acquisition is deduplicated: any number of concurrent callers share
// a single outstanding request to the token endpoint.
package devicetoken

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/albyma98/wcmvpvs-client/internal/hostenv"
	"github.com/albyma98/wcmvpvs-client/internal/identity"
	"github.com/albyma98/wcmvpvs-client/internal/model"
	"github.com/albyma98/wcmvpvs-client/internal/storage"
)

// ServerToken is returned when no page/browser execution context exists.
const ServerToken = "server"

const (
	tokenPath      = "/device-token"
	requestTimeout = 10 * time.Second
	maxRetries     = 2
	retryBase      = 200 * time.Millisecond
)

// Manager acquires and persists the device token.
type Manager struct {
	env     hostenv.Environment
	baseURL string
	http    *http.Client
	log     *zap.Logger
	group   singleflight.Group
}

// NewManager constructs a Manager against the resolved base URL. The HTTP
// client carries a cookie jar so the issuance request is credentialed and
// the server-set device cookie survives within the process.
func NewManager(env hostenv.Environment, baseURL string, log *zap.Logger) *Manager {
	jar, _ := cookiejar.New(nil)
	return &Manager{
		env:     env,
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout, Jar: jar},
		log:     log,
	}
}

// GetOrCreateDeviceToken returns the device token. It never fails: a stored
// token short-circuits, concurrent callers share one in-flight acquisition,
// and any acquisition failure synthesizes a random fallback token. The
// token in use is persisted best-effort.
func (m *Manager) GetOrCreateDeviceToken(ctx context.Context) string {
	if _, ok := m.env.Origin(); !ok {
		return ServerToken
	}

	if stored := m.readStored(); stored != "" {
		return stored
	}

	v, _, _ := m.group.Do("device-token", func() (any, error) {
		token, err := m.fetch(ctx)
		if err != nil || token == "" {
			m.log.Warn("falling back to random device token", zap.Error(err))
			token = identity.RandomID()
		}
		m.persist(token)
		return token, nil
	})
	return v.(string)
}

func (m *Manager) readStored() string {
	store, err := m.env.Storage()
	if err != nil {
		m.log.Warn("storage unavailable for device token", zap.Error(err))
		return ""
	}
	stored, err := store.Get(storage.KeyDeviceToken)
	if err != nil {
		m.log.Warn("cannot read stored device token", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(stored)
}

func (m *Manager) persist(token string) {
	store, err := m.env.Storage()
	if err != nil {
		return
	}
	if err := store.Set(storage.KeyDeviceToken, token); err != nil {
		m.log.Warn("cannot persist device token", zap.Error(err))
	}
}

// fetch issues the credentialed issuance request with bounded exponential
// backoff on transient failures (network errors and 5xx responses).
func (m *Manager) fetch(ctx context.Context) (string, error) {
	var resp model.DeviceTokenResponse

	backoff := retry.WithMaxRetries(maxRetries, retry.NewExponential(retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+tokenPath, nil)
		if err != nil {
			return err
		}
		res, err := m.http.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer res.Body.Close()

		if res.StatusCode >= http.StatusInternalServerError {
			return retry.RetryableError(fmt.Errorf("device token request failed with %d", res.StatusCode))
		}
		if res.StatusCode != http.StatusOK {
			return fmt.Errorf("device token request failed with %d", res.StatusCode)
		}
		body, err := io.ReadAll(res.Body)
		if err != nil {
			return retry.RetryableError(err)
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("decode device token response: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	token := strings.TrimSpace(resp.Token)
	if token == "" {
		return "", fmt.Errorf("device token response carried no token")
	}
	m.logExpiry(token, resp.ExpiresAt)
	return token, nil
}

// logExpiry records token expiry for diagnostics: the exp claim when the
// token is JWT-shaped (read without verification), else the server-provided
// expires_at field.
func (m *Manager) logExpiry(token, expiresAt string) {
	if strings.Count(token, ".") == 2 {
		var claims jwt.RegisteredClaims
		_, _ = jwt.ParseWithClaims(token, &claims,
			func(*jwt.Token) (any, error) { return nil, nil },
			jwt.WithoutClaimsValidation(),
		)
		if claims.ExpiresAt != nil {
			m.log.Debug("device token issued", zap.Time("expires_at", claims.ExpiresAt.Time))
			return
		}
	}
	if expiresAt != "" {
		if t, err := time.Parse(time.RFC3339, expiresAt); err == nil {
			m.log.Debug("device token issued", zap.Time("expires_at", t))
			return
		}
	}
	m.log.Debug("device token issued")
}
