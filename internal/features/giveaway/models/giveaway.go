package models

import (
	"time"
)

// GiveawayStatus represents the lifecycle state of a giveaway.
type GiveawayStatus string

const (
	// GiveawayStatusDraft is the initial state. The giveaway exists only
	// in the store, nothing has been published.
	GiveawayStatusDraft GiveawayStatus = "draft"
	// GiveawayStatusActive means the giveaway post is live in the channel.
	// At most one active giveaway may exist per account.
	GiveawayStatusActive GiveawayStatus = "active"
	// GiveawayStatusFinished is terminal.
	GiveawayStatusFinished GiveawayStatus = "finished"
)

// MediaCleanupStatus values for the media collaborator handoff.
const (
	MediaCleanupPending   = "pending"
	MediaCleanupScheduled = "scheduled"
	MediaCleanupFailed    = "failed"
)

// Giveaway is the central entity. Status only ever moves
// draft -> active -> finished; the store enforces both the ordering and
// the single-active-per-account invariant.
type Giveaway struct {
	ID        int64  `json:"id"`
	AccountID int64  `json:"account_id"`
	ChannelID int64  `json:"channel_id"`
	Title     string `json:"title"` // admin-only, not shown to users
	MainBody  string `json:"main_body"`

	WinnerCount             int    `json:"winner_count"`
	ParticipationButtonText string `json:"participation_button_text"`

	// Finish messages, mutable until the giveaway finishes.
	PublicConclusionMessage string `json:"public_conclusion_message,omitempty"`
	WinnerMessage           string `json:"winner_message,omitempty"`
	LoserMessage            string `json:"loser_message,omitempty"`
	MessagesReadyForFinish  bool   `json:"messages_ready_for_finish"`

	Status              GiveawayStatus `json:"status"`
	MessageID           *int64         `json:"message_id,omitempty"`
	ConclusionMessageID *int64         `json:"conclusion_message_id,omitempty"`

	// ResultToken allows unauthenticated result lookups. Unique across
	// all giveaways, all time.
	ResultToken string `json:"result_token,omitempty"`

	MediaFileID        *int64 `json:"media_file_id,omitempty"`
	MediaCleanupStatus string `json:"media_cleanup_status"`

	CreatedAt   time.Time  `json:"created_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// CanPublish reports whether the giveaway is in a publishable state.
func (g *Giveaway) CanPublish() bool {
	return g.Status == GiveawayStatusDraft
}

// CanFinish reports whether the giveaway may transition to finished.
// Requires an active, published giveaway with finish messages set.
func (g *Giveaway) CanFinish() bool {
	return g.Status == GiveawayStatusActive &&
		g.MessageID != nil &&
		g.MessagesReadyForFinish
}

// IsFinished reports whether the giveaway reached its terminal state.
func (g *Giveaway) IsFinished() bool {
	return g.Status == GiveawayStatusFinished
}

// SetFinishMessages sets all three finish messages and marks the
// giveaway ready to finish.
func (g *Giveaway) SetFinishMessages(public, winner, loser string) {
	g.PublicConclusionMessage = public
	g.WinnerMessage = winner
	g.LoserMessage = loser
	g.MessagesReadyForFinish = true
}

// LifecycleStage answers "what has happened so far" for API consumers.
func (g *Giveaway) LifecycleStage() string {
	switch {
	case g.Status == GiveawayStatusFinished:
		return "finished"
	case g.Status == GiveawayStatusActive && g.MessagesReadyForFinish:
		return "ready_to_finish"
	case g.Status == GiveawayStatusActive:
		return "published"
	default:
		return "draft"
	}
}

// NextActions lists the operations currently permitted on the giveaway.
func (g *Giveaway) NextActions() []string {
	switch g.Status {
	case GiveawayStatusDraft:
		return []string{"publish", "update_finish_messages"}
	case GiveawayStatusActive:
		if g.MessagesReadyForFinish {
			return []string{"finish", "update_finish_messages"}
		}
		return []string{"update_finish_messages"}
	default:
		return []string{}
	}
}

// StateReport is the result of a stored-state consistency check.
// Issues are contradictions between the status and the rest of the row;
// warnings are oddities that do not block any transition.
type StateReport struct {
	Valid          bool     `json:"valid"`
	Issues         []string `json:"issues"`
	Warnings       []string `json:"warnings"`
	LifecycleStage string   `json:"lifecycle_stage"`
	NextActions    []string `json:"next_actions"`
}

// ValidateState cross-checks the giveaway's fields against its status.
// Transitions stamp their fields in the same transaction, so any
// contradiction found here points at a bug or manual data edit.
func (g *Giveaway) ValidateState() *StateReport {
	report := &StateReport{
		Issues:         []string{},
		Warnings:       []string{},
		LifecycleStage: g.LifecycleStage(),
		NextActions:    g.NextActions(),
	}

	switch g.Status {
	case GiveawayStatusDraft:
		if g.MessageID != nil {
			report.Issues = append(report.Issues, "draft giveaway has a channel message id")
		}
		if g.PublishedAt != nil {
			report.Issues = append(report.Issues, "draft giveaway has a published_at timestamp")
		}
	case GiveawayStatusActive:
		if g.MessageID == nil {
			report.Issues = append(report.Issues, "active giveaway has no channel message id")
		}
		if g.FinishedAt != nil {
			report.Issues = append(report.Issues, "active giveaway has a finished_at timestamp")
		}
		if g.ConclusionMessageID != nil {
			report.Issues = append(report.Issues, "active giveaway has a conclusion message id")
		}
	case GiveawayStatusFinished:
		if g.FinishedAt == nil {
			report.Issues = append(report.Issues, "finished giveaway has no finished_at timestamp")
		}
		if g.ConclusionMessageID == nil {
			report.Warnings = append(report.Warnings, "finished giveaway has no conclusion message id")
		}
	}

	if g.MessagesReadyForFinish &&
		(g.PublicConclusionMessage == "" || g.WinnerMessage == "" || g.LoserMessage == "") {
		report.Issues = append(report.Issues, "marked ready to finish with an empty finish message")
	}

	report.Valid = len(report.Issues) == 0
	return report
}

// GiveawayCreate carries the input for creating a draft.
type GiveawayCreate struct {
	AccountID               int64  `json:"account_id" binding:"required"`
	ChannelID               int64  `json:"channel_id" binding:"required"`
	Title                   string `json:"title" binding:"required"`
	MainBody                string `json:"main_body" binding:"required"`
	WinnerCount             int    `json:"winner_count"`
	ParticipationButtonText string `json:"participation_button_text"`
	MediaFileID             *int64 `json:"media_file_id,omitempty"`
}

// FinishMessagesUpdate carries the input for updating finish messages.
type FinishMessagesUpdate struct {
	PublicConclusionMessage string `json:"public_conclusion_message" binding:"required"`
	WinnerMessage           string `json:"winner_message" binding:"required"`
	LoserMessage            string `json:"loser_message" binding:"required"`
}

// PublishResult is returned by a successful publish.
type PublishResult struct {
	MessageID             int64     `json:"message_id"`
	PublishedAt           time.Time `json:"published_at"`
	MediaCleanupTriggered bool      `json:"media_cleanup_triggered"`
}

// FinishResult is returned by a successful finish.
type FinishResult struct {
	WinnersSelected     int       `json:"winners_selected"`
	TotalParticipants   int       `json:"total_participants"`
	MessagesDelivered   int       `json:"messages_delivered"`
	ConclusionMessageID *int64    `json:"conclusion_message_id,omitempty"`
	FinishedAt          time.Time `json:"finished_at"`
}

// ResultTokenView is the restricted projection returned for public
// by-token lookups.
type ResultTokenView struct {
	ID                      int64          `json:"id"`
	Title                   string         `json:"title"`
	Status                  GiveawayStatus `json:"status"`
	WinnerMessage           string         `json:"winner_message,omitempty"`
	LoserMessage            string         `json:"loser_message,omitempty"`
	PublicConclusionMessage string         `json:"public_conclusion_message,omitempty"`
	FinishedAt              *time.Time     `json:"finished_at,omitempty"`
}

// HistoryItem is a giveaway in an account's history, enriched with its
// stats once finished.
type HistoryItem struct {
	*Giveaway
	Stats *GiveawayStats `json:"stats,omitempty"`
}

// HistoryPage is one page of an account's giveaway history.
type HistoryPage struct {
	Giveaways []*HistoryItem `json:"giveaways"`
	Page      int            `json:"page"`
	Limit     int            `json:"limit"`
	Total     int64          `json:"total"`
	Pages     int            `json:"pages"`
}

// GiveawayDetails is the full read-side projection of a giveaway.
type GiveawayDetails struct {
	*Giveaway
	ParticipantCount int      `json:"participant_count"`
	LifecycleStage   string   `json:"lifecycle_stage"`
	NextActions      []string `json:"next_actions"`
}
