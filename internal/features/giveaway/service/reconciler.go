package service

import (
	"context"
	"time"

	apperrors "giveaway-core-backend/internal/common/errors"
	"giveaway-core-backend/internal/common/logger"
	"giveaway-core-backend/internal/features/giveaway/models"
	"giveaway-core-backend/internal/features/giveaway/repository"
	"giveaway-core-backend/internal/gateway"
)

// Reconciler is the background loop that converges the store with
// collaborator reality: it resolves unknown-outcome log entries against
// the bot service's records and refreshes stale participant counters.
// It appends corrective log entries but never flips giveaway status.
type Reconciler struct {
	repo    repository.GiveawayRepository
	clients *gateway.Clients

	interval  time.Duration
	staleness time.Duration
	batchSize int
}

func NewReconciler(repo repository.GiveawayRepository, clients *gateway.Clients, interval, staleness time.Duration, batchSize int) *Reconciler {
	return &Reconciler{
		repo:      repo,
		clients:   clients,
		interval:  interval,
		staleness: staleness,
		batchSize: batchSize,
	}
}

// Run blocks until ctx is cancelled, running one pass immediately and
// then one per interval. Pass failures are logged and retried on the
// next tick.
func (r *Reconciler) Run(ctx context.Context) {
	logger.Info().
		Dur("interval", r.interval).
		Dur("stats_staleness", r.staleness).
		Msg("reconciler started")

	r.pass(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("reconciler stopped")
			return
		case <-ticker.C:
			r.pass(ctx)
		}
	}
}

func (r *Reconciler) pass(ctx context.Context) {
	r.resolveUnknownOutcomes(ctx)
	r.refreshStaleStats(ctx)
}

// resolveUnknownOutcomes queries the bot service for each unresolved
// ambiguous entry and appends a corrective entry with the real outcome.
// Entries stay unknown while the bot service itself is unreachable.
func (r *Reconciler) resolveUnknownOutcomes(ctx context.Context) {
	entries, err := r.repo.ListUnresolvedUnknown(ctx, r.batchSize)
	if err != nil {
		logger.Error().Err(err).Msg("unresolved outcome scan failed")
		return
	}

	for _, entry := range entries {
		if entry.Action != models.LogActionPublish {
			// Bulk sends have no per-request record to query. The entry
			// stays as the honest answer: delivery count unknown.
			continue
		}

		info, err := r.clients.Bot.GetGiveawayMessage(ctx, entry.GiveawayID)
		switch {
		case err == nil:
			corrective := models.NewLogEntry(entry.GiveawayID, models.LogActionPublish, models.LogOutcomeSuccess).
				WithMessageID(info.MessageID)
			corrective.ErrorMessage = "resolved: message confirmed delivered"
			r.append(ctx, corrective)
			logger.Info().
				Int64("giveaway_id", entry.GiveawayID).
				Int64("message_id", info.MessageID).
				Msg("ambiguous publish confirmed delivered")
		case apperrors.Code(err) == apperrors.ErrCodeNotFound:
			corrective := models.NewLogEntry(entry.GiveawayID, models.LogActionPublish, models.LogOutcomeFailure)
			corrective.ErrorMessage = "resolved: no message record, publish never landed"
			r.append(ctx, corrective)
			logger.Info().
				Int64("giveaway_id", entry.GiveawayID).
				Msg("ambiguous publish confirmed not delivered")
		default:
			logger.Warn().Err(err).
				Int64("giveaway_id", entry.GiveawayID).
				Msg("outcome still unresolved, bot service unreachable")
		}
	}
}

// refreshStaleStats recomputes participant counters for active,
// published giveaways whose snapshot has gone stale.
func (r *Reconciler) refreshStaleStats(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.staleness)
	stale, err := r.repo.ListStaleActiveStats(ctx, cutoff, r.batchSize)
	if err != nil {
		logger.Error().Err(err).Msg("stale stats scan failed")
		return
	}

	for _, stats := range stale {
		ps, err := r.clients.Participant.ParticipationStats(ctx, stats.GiveawayID)
		if err != nil {
			logger.Warn().Err(err).
				Int64("giveaway_id", stats.GiveawayID).
				Msg("stats refresh skipped, participant service unreachable")
			continue
		}

		stats.TotalParticipants = ps.TotalParticipants
		stats.LastUpdated = time.Now().UTC()
		if err := r.repo.RecordStats(ctx, stats); err != nil {
			logger.Error().Err(err).
				Int64("giveaway_id", stats.GiveawayID).
				Msg("stats refresh not persisted")
		}
	}
}

func (r *Reconciler) append(ctx context.Context, entry *models.PublishingLogEntry) {
	if err := r.repo.AppendLog(ctx, entry); err != nil {
		logger.Error().Err(err).
			Int64("giveaway_id", entry.GiveawayID).
			Msg("corrective log append failed")
	}
}
