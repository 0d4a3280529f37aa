package voteapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/albyma98/wcmvpvs-client/internal/errs"
	"github.com/albyma98/wcmvpvs-client/internal/model"
)

// UnknownErrorCode is reported when a failed lookup carries no server code.
const UnknownErrorCode = "unknown_error"

const (
	validateRetries   = 2
	validateRetryBase = 150 * time.Millisecond
)

// CreateTicket requests a raffle ticket for this device (legacy backend
// generation; newer deployments issue the ticket with the vote itself).
func (c *Client) CreateTicket(ctx context.Context, eventID int) model.VoteResult {
	if eventID <= 0 {
		return model.VoteResult{Err: errs.ErrMissingEventID}
	}
	deviceID := c.ids.GetOrCreateDeviceID()
	body := struct {
		EventID  int    `json:"event_id"`
		DeviceID string `json:"device_id"`
	}{EventID: eventID, DeviceID: deviceID}

	var rec model.TicketRecord
	status, msg, err := c.postJSON(ctx, "/ticket", deviceID, body, &rec)
	if err != nil {
		return model.VoteResult{Status: status, Message: msg, Err: err}
	}
	return model.VoteResult{OK: true, Ticket: &rec, Message: msg}
}

// ValidateTicketStatus checks a previously issued ticket. Only the query
// parameters that are present are sent (short keys e, c, s); an empty query
// still issues the lookup. Failures are normalized to a server error code
// with UnknownErrorCode as the last resort.
func (c *Client) ValidateTicketStatus(ctx context.Context, q model.TicketQuery) model.TicketValidation {
	params := url.Values{}
	if q.EventID > 0 {
		params.Set("e", strconv.Itoa(q.EventID))
	}
	if q.Code != "" {
		params.Set("c", q.Code)
	}
	if q.Signature != "" {
		params.Set("s", q.Signature)
	}
	target := c.base + "/tickets/validate"
	if enc := params.Encode(); enc != "" {
		target += "?" + enc
	}

	var payload map[string]any
	var serverCode string

	backoff := retry.WithMaxRetries(validateRetries, retry.NewExponential(validateRetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		res, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer res.Body.Close()

		raw, err := io.ReadAll(res.Body)
		if err != nil {
			return retry.RetryableError(err)
		}
		if res.StatusCode >= http.StatusInternalServerError {
			return retry.RetryableError(fmt.Errorf("ticket validation failed with %d", res.StatusCode))
		}
		if res.StatusCode < 200 || res.StatusCode > 299 {
			var eb errorBody
			_ = json.Unmarshal(raw, &eb)
			serverCode = eb.Error
			return fmt.Errorf("ticket validation failed with %d", res.StatusCode)
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrMalformedResponse, err)
		}
		return nil
	})
	if err != nil {
		if serverCode == "" {
			serverCode = UnknownErrorCode
		}
		c.log.Warn("ticket validation failed",
			zap.String("error_code", serverCode),
			zap.Error(err),
		)
		return model.TicketValidation{ErrorCode: serverCode}
	}

	return model.TicketValidation{OK: true, Ticket: payload}
}
