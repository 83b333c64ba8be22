// Package gateway is the uniform client layer over the five external
// collaborators (auth, channel, participant, bot, media). Every call
// goes through a per-collaborator policy: bounded attempt timeout,
// exponential-backoff retry on transient failures only, and a circuit
// breaker that short-circuits a down dependency.
package gateway

import (
	"context"
)

// AuthClient validates owning accounts against the auth service.
type AuthClient interface {
	ValidateAccount(ctx context.Context, accountID int64) error
}

// ChannelClient checks channel posting permissions.
type ChannelClient interface {
	CheckChannelPermission(ctx context.Context, accountID, channelID int64) error
}

// WinnerSelection is the participant service's answer to a winner draw.
// An empty Winners slice is a recorded business outcome (nobody
// participated), not an error.
type WinnerSelection struct {
	Winners           []int64 `json:"winners"`
	TotalParticipants int     `json:"total_participants"`
}

// ParticipationStats are the ground-truth participant counters.
type ParticipationStats struct {
	TotalParticipants int `json:"total_participants"`
}

// ParticipantClient talks to the participant tracking service.
type ParticipantClient interface {
	SelectWinners(ctx context.Context, giveawayID int64, count int) (*WinnerSelection, error)
	ListParticipants(ctx context.Context, giveawayID int64, page, limit int) ([]int64, error)
	ParticipationStats(ctx context.Context, giveawayID int64) (*ParticipationStats, error)
}

// GiveawayPost is the outbound payload for publishing a giveaway
// message to the channel.
type GiveawayPost struct {
	GiveawayID  int64  `json:"giveaway_id"`
	MainBody    string `json:"main_body"`
	ButtonText  string `json:"participation_button_text"`
	ResultToken string `json:"result_token"`
	MediaURL    string `json:"media_url,omitempty"`
}

// MessageInfo is the bot service's record of a published message, used
// by the reconciler as ground truth for ambiguous outcomes.
type MessageInfo struct {
	MessageID int64 `json:"message_id"`
	Delivered bool  `json:"delivered"`
}

// BulkMessageRequest asks the bot service to deliver winner/loser
// messages to every participant.
type BulkMessageRequest struct {
	AccountID     int64   `json:"account_id"`
	GiveawayID    int64   `json:"giveaway_id"`
	WinnerMessage string  `json:"winner_message"`
	LoserMessage  string  `json:"loser_message"`
	Winners       []int64 `json:"winners"`
	Participants  []int64 `json:"participants"`
}

// BotClient talks to the messaging service.
type BotClient interface {
	// PublishMessage posts the giveaway message to the channel and
	// returns its message reference. A timeout here is ambiguous: the
	// message may be live even though no reference came back.
	PublishMessage(ctx context.Context, accountID, channelID int64, post *GiveawayPost) (int64, error)
	PostConclusionMessage(ctx context.Context, accountID, channelID int64, message string, winners []int64) (int64, error)
	SendBulkMessages(ctx context.Context, req *BulkMessageRequest) (int, error)
	// GetGiveawayMessage returns the published message for a giveaway,
	// or NOT_FOUND when the bot service has no record of one.
	GetGiveawayMessage(ctx context.Context, giveawayID int64) (*MessageInfo, error)
}

// MediaClient talks to the media service. Cleanup and release are
// best-effort from the orchestrator's point of view.
type MediaClient interface {
	ValidateMedia(ctx context.Context, mediaFileID int64) error
	GetMediaURL(ctx context.Context, mediaFileID int64) (string, error)
	ScheduleCleanup(ctx context.Context, mediaFileID int64) error
	ReleaseMedia(ctx context.Context, giveawayID int64) error
}
