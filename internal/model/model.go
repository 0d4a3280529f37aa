// Package model defines domain entities exchanged with the voting backend.
package model

// UnknownValue is the degraded fallback for string signals that cannot be read.
const UnknownValue = "unknown"

// Fingerprint is the best-effort device signature submitted alongside a vote.
// Field names match the backend's fingerprint payload.
type Fingerprint struct {
	Browser             string `json:"browser"`
	Platform            string `json:"platform"`
	Screen              string `json:"screen"`
	ColorDepth          int    `json:"color_depth"`
	Timezone            string `json:"timezone"`
	TimezoneOffset      int    `json:"timezone_offset"`
	DeviceMemory        string `json:"device_memory"`
	HardwareConcurrency int    `json:"hardware_concurrency"`
	Languages           string `json:"languages"`
	Graphics            string `json:"graphics"`
	TouchSupport        string `json:"touch_support"`
}

// UnknownFingerprint returns the all-unknown sentinel payload used when
// collection is skipped or has failed entirely.
func UnknownFingerprint() Fingerprint {
	return Fingerprint{
		Browser:      UnknownValue,
		Platform:     UnknownValue,
		Screen:       UnknownValue,
		Timezone:     UnknownValue,
		DeviceMemory: UnknownValue,
		Languages:    UnknownValue,
		Graphics:     UnknownValue,
		TouchSupport: UnknownValue,
	}
}

// VoteRequest is the outbound vote body. DeviceID and DeviceToken are both
// carried; older backends read only the id, newer ones prefer the token.
type VoteRequest struct {
	PlayerID    int          `json:"player_id"`
	EventID     int          `json:"event_id"`
	DeviceID    string       `json:"device_id,omitempty"`
	DeviceToken string       `json:"device_token,omitempty"`
	Fingerprint *Fingerprint `json:"fingerprint,omitempty"`
}

// VoteRecord is the server's confirmation of a stored vote.
type VoteRecord struct {
	Code      string `json:"code"`
	Signature string `json:"signature"`
	QRData    string `json:"qr_data"`
}

// VoteResult is the outcome of a single vote attempt. Failures are captured
// here instead of propagating across the client contract.
type VoteResult struct {
	OK      bool
	Vote    *VoteRecord
	Ticket  *TicketRecord
	Status  int    // HTTP status when the failure came from the transport
	Message string // server-provided message when extractable
	Err     error
}

// TicketRecord is a raffle ticket issued for a vote (legacy generation).
type TicketRecord struct {
	Code      string `json:"code"`
	Signature string `json:"signature"`
	QRData    string `json:"qr_data"`
}

// TicketQuery identifies a previously issued ticket. Every field is optional;
// absent fields are omitted from the lookup query string.
type TicketQuery struct {
	EventID   int
	Code      string
	Signature string
}

// TicketValidation is the outcome of a ticket-code check.
type TicketValidation struct {
	OK        bool
	Ticket    map[string]any // validation payload as returned by the server
	ErrorCode string         // normalized server error code, "unknown_error" fallback
}

// DeviceTokenResponse is the token-issuance reply.
type DeviceTokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at,omitempty"`
	Fresh     bool   `json:"fresh,omitempty"`
}

// VoteStatus reports whether this device already voted in an event.
type VoteStatus struct {
	EventID  int    `json:"event_id"`
	HasVoted bool   `json:"has_voted"`
	VotedAt  string `json:"voted_at,omitempty"`
}

// LiveLeaderboardEntry is one row of the live tally.
type LiveLeaderboardEntry struct {
	PlayerID    int     `json:"player_id"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	ImageURL    string  `json:"image_url"`
	Votes       int     `json:"votes"`
	Percentage  float64 `json:"percentage"`
	LastVoteAt  string  `json:"last_vote_at"`
	DisplayName string  `json:"display_name"`
}

// LiveTimelinePoint is one bucket of the vote timeline.
type LiveTimelinePoint struct {
	Timestamp string `json:"timestamp"`
	Votes     int    `json:"votes"`
}

// LiveVotes is the live tally payload.
type LiveVotes struct {
	Total       int                    `json:"total"`
	Leaderboard []LiveLeaderboardEntry `json:"leaderboard"`
	Timeline    []LiveTimelinePoint    `json:"timeline"`
	UpdatedAt   string                 `json:"updated_at"`
}

// ReactionTestStatus reports mini-game progress for this device.
type ReactionTestStatus struct {
	Attempts      int     `json:"attempts"`
	AverageMs     float64 `json:"average_ms"`
	LastResultMs  *int    `json:"last_result_ms,omitempty"`
	LastAttemptAt *string `json:"last_attempt_at,omitempty"`
	NextAllowedAt *string `json:"next_allowed_at,omitempty"`
}

// ReactionTestResult is the reply to a submitted reaction time.
type ReactionTestResult struct {
	ReactionTimeMs    int     `json:"reaction_time_ms"`
	AverageMs         float64 `json:"average_ms"`
	Attempts          int     `json:"attempts"`
	FasterThanAverage bool    `json:"faster_than_average"`
	NextAllowedAt     string  `json:"next_allowed_at"`
}
