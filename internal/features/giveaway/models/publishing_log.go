package models

import "time"

// LogAction is the attempted operation recorded in the publishing log.
type LogAction string

const (
	LogActionPublish     LogAction = "publish"
	LogActionFinish      LogAction = "finish"
	LogActionMessageSend LogAction = "message_send"
)

// LogOutcome is the observed result of the attempt.
type LogOutcome string

const (
	LogOutcomeSuccess LogOutcome = "success"
	LogOutcomeFailure LogOutcome = "failure"
	// LogOutcomeUnknown records an ambiguous outbound call: the
	// collaborator may or may not have acted before the connection died.
	// The reconciler resolves these with a later corrective entry.
	LogOutcomeUnknown LogOutcome = "unknown"
)

// PublishingLogEntry is an append-only audit record. Entries are
// write-once, never mutated or deleted; corrections arrive as new
// entries.
type PublishingLogEntry struct {
	ID           int64      `json:"id"`
	GiveawayID   int64      `json:"giveaway_id"`
	Action       LogAction  `json:"action"`
	Outcome      LogOutcome `json:"outcome"`
	MessageID    *int64     `json:"message_id,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewLogEntry builds a log entry for an attempt on a giveaway.
func NewLogEntry(giveawayID int64, action LogAction, outcome LogOutcome) *PublishingLogEntry {
	return &PublishingLogEntry{
		GiveawayID: giveawayID,
		Action:     action,
		Outcome:    outcome,
		CreatedAt:  time.Now().UTC(),
	}
}

// WithMessageID attaches the collaborator-reported message reference.
func (e *PublishingLogEntry) WithMessageID(messageID int64) *PublishingLogEntry {
	e.MessageID = &messageID
	return e
}

// WithError attaches the collaborator-reported error detail.
func (e *PublishingLogEntry) WithError(err error) *PublishingLogEntry {
	if err != nil {
		e.ErrorMessage = err.Error()
	}
	return e
}
