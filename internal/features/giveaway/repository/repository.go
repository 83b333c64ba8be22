package repository

import (
	"context"
	"errors"
	"time"

	"giveaway-core-backend/internal/features/giveaway/models"
)

// Sentinel errors returned by store implementations. The service layer
// maps these onto the API error taxonomy.
var (
	ErrNotFound = errors.New("giveaway not found")
	// ErrConflict signals an invariant violation: another active giveaway
	// on the account, a wrong-state transition, or a duplicate token.
	// Not retryable without re-reading state.
	ErrConflict = errors.New("conflicting giveaway state")
	// ErrUnavailable signals a transient storage failure.
	ErrUnavailable = errors.New("store unavailable")
)

// GiveawayRepository is the durable record of giveaways, their stats and
// the append-only publishing log. The compare-and-set transitions are
// the concurrency boundary: the service runs multiple instances and
// takes no in-process locks.
type GiveawayRepository interface {
	// CreateDraft persists a new giveaway in draft status together with
	// its zeroed stats row, assigning the surrogate id.
	CreateDraft(ctx context.Context, giveaway *models.Giveaway) error

	GetByID(ctx context.Context, id int64) (*models.Giveaway, error)
	GetActiveByAccount(ctx context.Context, accountID int64) (*models.Giveaway, error)
	GetByResultToken(ctx context.Context, token string) (*models.Giveaway, error)
	TokenExists(ctx context.Context, token string) (bool, error)
	ListByAccount(ctx context.Context, accountID int64, offset, limit int) ([]*models.Giveaway, int64, error)

	// ActivateIfNoneActive atomically flips draft -> active, stamping
	// published_at and the message reference, if and only if no other
	// active giveaway exists for the same account. The log entry is
	// written in the same transaction as the flip. Returns ErrConflict
	// when the state or the single-active invariant forbids it.
	ActivateIfNoneActive(ctx context.Context, id int64, messageID int64, entry *models.PublishingLogEntry) error

	// FinishIfActive atomically flips active -> finished, stamping
	// finished_at, with the log entry and the final stats snapshot in
	// the same transaction. Winner and delivery counts exist nowhere
	// else once the giveaway leaves the active state, so the snapshot
	// must not be able to go missing while the flip lands.
	FinishIfActive(ctx context.Context, id int64, conclusionMessageID *int64, entry *models.PublishingLogEntry, stats *models.GiveawayStats) error

	// UpdateFinishMessages writes the three finish messages and the
	// ready flag, refusing finished giveaways with ErrConflict.
	UpdateFinishMessages(ctx context.Context, id int64, public, winner, loser string) error

	SetMediaCleanupStatus(ctx context.Context, id int64, status string) error

	// AppendLog writes a standalone audit entry (failure and unknown
	// outcomes that accompany no state flip, and reconciler corrections).
	AppendLog(ctx context.Context, entry *models.PublishingLogEntry) error
	RecentLogs(ctx context.Context, giveawayID int64, limit int) ([]*models.PublishingLogEntry, error)

	GetStats(ctx context.Context, giveawayID int64) (*models.GiveawayStats, error)
	RecordStats(ctx context.Context, stats *models.GiveawayStats) error

	// ListUnresolvedUnknown returns the latest unknown-outcome log entry
	// per giveaway for which no later entry with the same action exists.
	ListUnresolvedUnknown(ctx context.Context, limit int) ([]*models.PublishingLogEntry, error)
	// ListStaleActiveStats returns stats of active, published giveaways
	// not refreshed since the cutoff.
	ListStaleActiveStats(ctx context.Context, cutoff time.Time, limit int) ([]*models.GiveawayStats, error)
}
