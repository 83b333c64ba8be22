package service

import (
	"context"

	"giveaway-core-backend/internal/features/giveaway/models"
)

// GiveawayService orchestrates the giveaway lifecycle: draft creation,
// publishing, finishing and the read surface on top of them.
type GiveawayService interface {
	Create(ctx context.Context, input *models.GiveawayCreate) (*models.Giveaway, error)
	Get(ctx context.Context, giveawayID int64) (*models.GiveawayDetails, error)
	ValidateState(ctx context.Context, giveawayID int64) (*models.StateReport, error)
	GetActive(ctx context.Context, accountID int64) (*models.GiveawayDetails, error)
	Publish(ctx context.Context, giveawayID int64) (*models.PublishResult, error)
	UpdateFinishMessages(ctx context.Context, giveawayID int64, input *models.FinishMessagesUpdate) error
	Finish(ctx context.Context, giveawayID int64) (*models.FinishResult, error)
	GetHistory(ctx context.Context, accountID int64, page, limit int) (*models.HistoryPage, error)
	GetStats(ctx context.Context, giveawayID int64) (*models.GiveawayStats, error)
	GetByResultToken(ctx context.Context, token string) (*models.ResultTokenView, error)
	GetLogs(ctx context.Context, giveawayID int64, limit int) ([]*models.PublishingLogEntry, error)
}
