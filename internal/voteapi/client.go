// Package voteapi is the HTTP client for the voting backend: vote
// submission, ticket validation, and the peripheral per-event endpoints.
// Failures never cross the public contract as panics or errors; every call
// returns a structured result carrying the best available diagnostics.
package voteapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/albyma98/wcmvpvs-client/internal/devicetoken"
	"github.com/albyma98/wcmvpvs-client/internal/errs"
	"github.com/albyma98/wcmvpvs-client/internal/fingerprint"
	"github.com/albyma98/wcmvpvs-client/internal/hostenv"
	"github.com/albyma98/wcmvpvs-client/internal/identity"
	"github.com/albyma98/wcmvpvs-client/internal/model"
)

// DeviceIDHeader carries the device identifier on every request.
const DeviceIDHeader = "X-Device-ID"

const defaultTimeout = 15 * time.Second

// Client composes device identity, token and fingerprint into backend calls.
type Client struct {
	base   string
	http   *http.Client
	ids    *identity.Provider
	tokens *devicetoken.Manager
	prints *fingerprint.Collector
	log    *zap.Logger
}

// New wires a Client against the resolved base URL. The base URL is fixed
// for the lifetime of the client; callers resolve it exactly once at
// startup via baseurl.Resolve.
func New(env hostenv.Environment, baseURL string, log *zap.Logger) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{Timeout: defaultTimeout, Jar: jar},
		ids:    identity.NewProvider(env, log),
		tokens: devicetoken.NewManager(env, baseURL, log),
		prints: fingerprint.NewCollector(env, log),
		log:    log,
	}
}

// Identity returns the device identity material in use: identifier, token,
// and fingerprint. Diagnostic surface for the CLI.
func (c *Client) Identity(ctx context.Context) (string, string, model.Fingerprint) {
	return c.ids.GetOrCreateDeviceID(), c.tokens.GetOrCreateDeviceToken(ctx), c.prints.Collect(ctx)
}

// Vote submits one vote for playerID in eventID. It never returns an error
// across the contract: failures are captured in the result. Identity
// material and the fingerprint are gathered concurrently; a fingerprint
// failure degrades to the all-unknown sentinel payload instead of failing
// the vote.
func (c *Client) Vote(ctx context.Context, eventID, playerID int) model.VoteResult {
	if eventID <= 0 {
		return model.VoteResult{Err: errs.ErrMissingEventID}
	}
	if playerID <= 0 {
		return model.VoteResult{Err: errs.ErrMissingPlayerID}
	}

	var (
		deviceID string
		token    string
		fp       model.Fingerprint
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		deviceID = c.ids.GetOrCreateDeviceID()
		return nil
	})
	g.Go(func() error {
		token = c.tokens.GetOrCreateDeviceToken(gctx)
		return nil
	})
	g.Go(func() error {
		fp = c.collectFingerprint(gctx)
		return nil
	})
	_ = g.Wait() // the goroutines above never fail

	req := model.VoteRequest{
		PlayerID:    playerID,
		EventID:     eventID,
		DeviceID:    deviceID,
		DeviceToken: token,
		Fingerprint: &fp,
	}

	var rec model.VoteRecord
	status, msg, err := c.postJSON(ctx, "/vote", deviceID, req, &rec)
	if err != nil {
		c.log.Warn("vote failed",
			zap.Int("event_id", eventID),
			zap.Int("player_id", playerID),
			zap.Int("status", status),
			zap.Error(err),
		)
		return model.VoteResult{Status: status, Message: msg, Err: err}
	}

	c.log.Info("vote accepted",
		zap.Int("event_id", eventID),
		zap.Int("player_id", playerID),
	)
	return model.VoteResult{OK: true, Vote: &rec, Message: msg}
}

// collectFingerprint shields the vote path from any collector misbehavior.
func (c *Client) collectFingerprint(ctx context.Context) (fp model.Fingerprint) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("fingerprint collection panicked", zap.Any("panic", r))
			fp = model.UnknownFingerprint()
		}
	}()
	return c.prints.Collect(ctx)
}

// errorBody is the error envelope used by the backend; some deployments use
// "message", others "error".
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e errorBody) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// postJSON posts body and decodes a 2xx reply into out. On a non-2xx reply
// it returns the HTTP status and the server-provided message. The returned
// message on success is the optional "message" field of the reply envelope.
func (c *Client) postJSON(ctx context.Context, path, deviceID string, body, out any) (int, string, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return 0, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(buf))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if deviceID != "" {
		req.Header.Set(DeviceIDHeader, deviceID)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, "", err
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		return res.StatusCode, eb.text(), fmt.Errorf("request to %s failed with %d", path, res.StatusCode)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return res.StatusCode, "", fmt.Errorf("%w: %v", errs.ErrMalformedResponse, err)
		}
	}
	var envelope struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &envelope)
	return res.StatusCode, envelope.Message, nil
}

// getJSON fetches path with the device id header and decodes into out.
func (c *Client) getJSON(ctx context.Context, path, deviceID string, out any) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return 0, "", err
	}
	if deviceID != "" {
		req.Header.Set(DeviceIDHeader, deviceID)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, "", err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		return res.StatusCode, eb.text(), fmt.Errorf("request to %s failed with %d", path, res.StatusCode)
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return res.StatusCode, "", fmt.Errorf("%w: %v", errs.ErrMalformedResponse, err)
		}
	}
	return res.StatusCode, "", nil
}
