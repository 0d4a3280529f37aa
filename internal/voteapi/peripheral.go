package voteapi

// Peripheral per-event endpoints. These are thin consumers of the resolved
// base URL and the device identity header; the heavier flows (selfie
// moderation, tally rendering) live outside this client.

import (
	"context"
	"fmt"

	"github.com/albyma98/wcmvpvs-client/internal/errs"
	"github.com/albyma98/wcmvpvs-client/internal/model"
)

// VoteStatus reports whether this device already voted in the event.
func (c *Client) VoteStatus(ctx context.Context, eventID int) (model.VoteStatus, error) {
	var out model.VoteStatus
	if eventID <= 0 {
		return out, errs.ErrMissingEventID
	}
	deviceID := c.ids.GetOrCreateDeviceID()
	_, _, err := c.getJSON(ctx, fmt.Sprintf("/events/%d/vote-status", eventID), deviceID, &out)
	return out, err
}

// LiveVotes fetches the live tally for the event.
func (c *Client) LiveVotes(ctx context.Context, eventID int) (model.LiveVotes, error) {
	var out model.LiveVotes
	if eventID <= 0 {
		return out, errs.ErrMissingEventID
	}
	deviceID := c.ids.GetOrCreateDeviceID()
	_, _, err := c.getJSON(ctx, fmt.Sprintf("/events/%d/votes/live", eventID), deviceID, &out)
	return out, err
}

// ReactionTestStatus fetches mini-game progress for this device.
func (c *Client) ReactionTestStatus(ctx context.Context, eventID int) (model.ReactionTestStatus, error) {
	var out model.ReactionTestStatus
	if eventID <= 0 {
		return out, errs.ErrMissingEventID
	}
	deviceID := c.ids.GetOrCreateDeviceID()
	_, _, err := c.getJSON(ctx, fmt.Sprintf("/events/%d/reaction-test", eventID), deviceID, &out)
	return out, err
}

// SubmitReactionTime posts one reaction-test attempt.
func (c *Client) SubmitReactionTime(ctx context.Context, eventID, reactionMs int) (model.ReactionTestResult, error) {
	var out model.ReactionTestResult
	if eventID <= 0 {
		return out, errs.ErrMissingEventID
	}
	deviceID := c.ids.GetOrCreateDeviceID()
	body := struct {
		ReactionTimeMs int `json:"reaction_time_ms"`
	}{ReactionTimeMs: reactionMs}
	_, _, err := c.postJSON(ctx, fmt.Sprintf("/events/%d/reaction-test", eventID), deviceID, body, &out)
	return out, err
}
