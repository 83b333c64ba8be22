package service

import (
	"context"
	"errors"
	"time"

	"giveaway-core-backend/internal/common/cache"
	apperrors "giveaway-core-backend/internal/common/errors"
	"giveaway-core-backend/internal/common/logger"
	"giveaway-core-backend/internal/common/validation"
	"giveaway-core-backend/internal/features/giveaway/models"
	"giveaway-core-backend/internal/features/giveaway/repository"
	"giveaway-core-backend/internal/features/giveaway/token"
	"giveaway-core-backend/internal/gateway"
)

const (
	defaultButtonText = "Participate"

	activeCacheTTL = 1 * time.Minute
	tokenCacheTTL  = 5 * time.Minute

	defaultLogLimit = 10
	maxLogLimit     = 50
)

type giveawayService struct {
	repo    repository.GiveawayRepository
	clients *gateway.Clients
	cache   *cache.CacheService
	tokens  *token.Issuer
}

// NewGiveawayService creates the lifecycle orchestrator.
func NewGiveawayService(
	repo repository.GiveawayRepository,
	clients *gateway.Clients,
	cacheService *cache.CacheService,
) GiveawayService {
	return &giveawayService{
		repo:    repo,
		clients: clients,
		cache:   cacheService,
		tokens:  token.NewIssuer(),
	}
}

func (s *giveawayService) Create(ctx context.Context, input *models.GiveawayCreate) (*models.Giveaway, error) {
	input.Title = validation.SanitizeInput(input.Title)
	input.MainBody = validation.SanitizeInput(input.MainBody)
	if input.WinnerCount == 0 {
		input.WinnerCount = validation.MinWinnerCount
	}
	if input.ParticipationButtonText == "" {
		input.ParticipationButtonText = defaultButtonText
	}

	if err := validation.ValidateTitle(input.Title); err != nil {
		return nil, apperrors.NewValidationError("title", err.Error())
	}
	if err := validation.ValidateMainBody(input.MainBody); err != nil {
		return nil, apperrors.NewValidationError("main_body", err.Error())
	}
	if err := validation.ValidateWinnerCount(input.WinnerCount); err != nil {
		return nil, apperrors.NewValidationError("winner_count", err.Error())
	}
	if err := validation.ValidateButtonText(input.ParticipationButtonText); err != nil {
		return nil, apperrors.NewValidationError("participation_button_text", err.Error())
	}

	// Nothing is written before the owning account checks out.
	if err := s.validateAccount(ctx, input.AccountID); err != nil {
		return nil, err
	}

	if input.MediaFileID != nil {
		if err := s.clients.Media.ValidateMedia(ctx, *input.MediaFileID); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "media file rejected").
				WithDetail("media_file_id", *input.MediaFileID)
		}
	}

	resultToken, err := s.tokens.NewResultToken(ctx, s.repo.TokenExists)
	if err != nil {
		return nil, err
	}

	giveaway := &models.Giveaway{
		AccountID:               input.AccountID,
		ChannelID:               input.ChannelID,
		Title:                   input.Title,
		MainBody:                input.MainBody,
		WinnerCount:             input.WinnerCount,
		ParticipationButtonText: input.ParticipationButtonText,
		Status:                  models.GiveawayStatusDraft,
		ResultToken:             resultToken,
		MediaFileID:             input.MediaFileID,
		MediaCleanupStatus:      models.MediaCleanupPending,
		CreatedAt:               time.Now().UTC(),
	}

	if err := s.repo.CreateDraft(ctx, giveaway); err != nil {
		return nil, storeError(err, 0, "draft creation raced with a conflicting row")
	}

	logger.Info().
		Int64("giveaway_id", giveaway.ID).
		Int64("account_id", giveaway.AccountID).
		Msg("giveaway draft created")

	return giveaway, nil
}

func (s *giveawayService) Publish(ctx context.Context, giveawayID int64) (*models.PublishResult, error) {
	giveaway, err := s.repo.GetByID(ctx, giveawayID)
	if err != nil {
		return nil, storeError(err, giveawayID, "giveaway state changed")
	}

	if !giveaway.CanPublish() {
		return nil, apperrors.Newf(apperrors.ErrCodeCannotPublish,
			"giveaway %d is %s, only drafts can be published", giveawayID, giveaway.Status).
			WithDetail("status", giveaway.Status)
	}

	if err := s.validateAccount(ctx, giveaway.AccountID); err != nil {
		return nil, err
	}
	if err := s.clients.Channel.CheckChannelPermission(ctx, giveaway.AccountID, giveaway.ChannelID); err != nil {
		return nil, err
	}

	post := &gateway.GiveawayPost{
		GiveawayID:  giveaway.ID,
		MainBody:    giveaway.MainBody,
		ButtonText:  giveaway.ParticipationButtonText,
		ResultToken: giveaway.ResultToken,
	}
	if giveaway.MediaFileID != nil {
		url, err := s.clients.Media.GetMediaURL(ctx, *giveaway.MediaFileID)
		if err != nil {
			logger.Warn().Err(err).
				Int64("giveaway_id", giveaway.ID).
				Msg("media url unavailable, publishing without media")
		} else {
			post.MediaURL = url
		}
	}

	// The transition runs to completion even if the caller disconnects;
	// abandoning it mid-flight could leave a live message unrecorded.
	ctx = context.WithoutCancel(ctx)

	messageID, err := s.clients.Bot.PublishMessage(ctx, giveaway.AccountID, giveaway.ChannelID, post)
	if err != nil {
		if isUnknownOutcome(err) {
			s.appendLog(ctx, models.NewLogEntry(giveaway.ID, models.LogActionPublish, models.LogOutcomeUnknown).WithError(err))
			return nil, apperrors.Wrap(err, apperrors.ErrCodeDependencyUnavailable,
				"publish outcome unknown, it will be reconciled").
				WithDetail("giveaway_id", giveaway.ID)
		}
		s.appendLog(ctx, models.NewLogEntry(giveaway.ID, models.LogActionPublish, models.LogOutcomeFailure).WithError(err))
		return nil, err
	}

	entry := models.NewLogEntry(giveaway.ID, models.LogActionPublish, models.LogOutcomeSuccess).
		WithMessageID(messageID)
	if err := s.repo.ActivateIfNoneActive(ctx, giveaway.ID, messageID, entry); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// The channel message exists but the activation lost. Record
			// the orphan so operators can remove it.
			orphan := models.NewLogEntry(giveaway.ID, models.LogActionPublish, models.LogOutcomeFailure).
				WithMessageID(messageID)
			orphan.ErrorMessage = "activation refused: another giveaway is active, published message orphaned"
			s.appendLog(ctx, orphan)
			return nil, apperrors.NewConflictError("giveaway",
				"another giveaway is already active for this account").
				WithDetail("giveaway_id", giveaway.ID)
		}
		return nil, storeError(err, giveaway.ID, "activation failed")
	}

	result := &models.PublishResult{
		MessageID:   messageID,
		PublishedAt: time.Now().UTC(),
	}

	if giveaway.MediaFileID != nil {
		if err := s.clients.Media.ScheduleCleanup(ctx, *giveaway.MediaFileID); err != nil {
			logger.Warn().Err(err).
				Int64("giveaway_id", giveaway.ID).
				Msg("media cleanup scheduling failed")
			s.setCleanupStatus(ctx, giveaway.ID, models.MediaCleanupFailed)
		} else {
			s.setCleanupStatus(ctx, giveaway.ID, models.MediaCleanupScheduled)
			result.MediaCleanupTriggered = true
		}
	}

	s.invalidate(ctx, cache.ActiveGiveawayKey(giveaway.AccountID), cache.ResultTokenKey(giveaway.ResultToken))

	logger.Info().
		Int64("giveaway_id", giveaway.ID).
		Int64("message_id", messageID).
		Msg("giveaway published")

	return result, nil
}

func (s *giveawayService) UpdateFinishMessages(ctx context.Context, giveawayID int64, input *models.FinishMessagesUpdate) error {
	input.PublicConclusionMessage = validation.SanitizeInput(input.PublicConclusionMessage)
	input.WinnerMessage = validation.SanitizeInput(input.WinnerMessage)
	input.LoserMessage = validation.SanitizeInput(input.LoserMessage)

	checks := []struct {
		name, value string
	}{
		{"public_conclusion_message", input.PublicConclusionMessage},
		{"winner_message", input.WinnerMessage},
		{"loser_message", input.LoserMessage},
	}
	for _, c := range checks {
		if err := validation.ValidateFinishMessage(c.name, c.value); err != nil {
			return apperrors.NewValidationError(c.name, err.Error())
		}
	}

	giveaway, err := s.repo.GetByID(ctx, giveawayID)
	if err != nil {
		return storeError(err, giveawayID, "giveaway state changed")
	}
	if giveaway.IsFinished() {
		return apperrors.Newf(apperrors.ErrCodeImmutableState,
			"giveaway %d is finished, finish messages are immutable", giveawayID)
	}

	err = s.repo.UpdateFinishMessages(ctx, giveawayID,
		input.PublicConclusionMessage, input.WinnerMessage, input.LoserMessage)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return apperrors.Newf(apperrors.ErrCodeImmutableState,
				"giveaway %d finished concurrently, finish messages are immutable", giveawayID)
		}
		return storeError(err, giveawayID, "finish messages update failed")
	}

	s.invalidate(ctx,
		cache.ActiveGiveawayKey(giveaway.AccountID),
		cache.ResultTokenKey(giveaway.ResultToken))
	return nil
}

func (s *giveawayService) Finish(ctx context.Context, giveawayID int64) (*models.FinishResult, error) {
	giveaway, err := s.repo.GetByID(ctx, giveawayID)
	if err != nil {
		return nil, storeError(err, giveawayID, "giveaway state changed")
	}

	if !giveaway.CanFinish() {
		appErr := apperrors.Newf(apperrors.ErrCodeCannotFinish,
			"giveaway %d cannot finish", giveawayID).
			WithDetail("status", giveaway.Status)
		switch {
		case giveaway.Status != models.GiveawayStatusActive:
			appErr.Message = "only active giveaways can finish"
		case !giveaway.MessagesReadyForFinish:
			appErr.Message = "finish messages must be set before finishing"
		default:
			appErr.Message = "giveaway has no published message"
		}
		return nil, appErr
	}

	if err := s.validateAccount(ctx, giveaway.AccountID); err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)

	selection, err := s.clients.Participant.SelectWinners(ctx, giveaway.ID, giveaway.WinnerCount)
	if err != nil {
		s.appendLog(ctx, models.NewLogEntry(giveaway.ID, models.LogActionFinish, models.LogOutcomeFailure).WithError(err))
		return nil, err
	}

	// Zero participants is a legitimate conclusion: the giveaway still
	// finishes, with nobody to notify.
	var participants []int64
	if selection.TotalParticipants > 0 {
		participants, err = s.clients.Participant.ListParticipants(ctx, giveaway.ID, 1, selection.TotalParticipants)
		if err != nil {
			logger.Warn().Err(err).
				Int64("giveaway_id", giveaway.ID).
				Msg("participant list unavailable, bulk messages limited to winners")
			participants = selection.Winners
		}
	}

	messagesDelivered := s.sendResultMessages(ctx, giveaway, selection, participants)
	conclusionMessageID := s.postConclusion(ctx, giveaway, selection.Winners)

	entry := models.NewLogEntry(giveaway.ID, models.LogActionFinish, models.LogOutcomeSuccess)
	if conclusionMessageID != nil {
		entry.MessageID = conclusionMessageID
	}
	// Winner and delivery counts cannot be recomputed once the giveaway
	// leaves the active state, so the snapshot lands in the same
	// transaction as the status flip.
	stats := &models.GiveawayStats{
		GiveawayID:        giveaway.ID,
		TotalParticipants: selection.TotalParticipants,
		WinnerCount:       len(selection.Winners),
		MessagesDelivered: messagesDelivered,
		LastUpdated:       time.Now().UTC(),
	}
	if err := s.repo.FinishIfActive(ctx, giveaway.ID, conclusionMessageID, entry, stats); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			orphan := models.NewLogEntry(giveaway.ID, models.LogActionFinish, models.LogOutcomeFailure)
			orphan.ErrorMessage = "finish refused: giveaway no longer active, result messages may already be out"
			s.appendLog(ctx, orphan)
			return nil, apperrors.NewConflictError("giveaway", "giveaway finished concurrently").
				WithDetail("giveaway_id", giveaway.ID)
		}
		return nil, storeError(err, giveaway.ID, "finish failed")
	}

	if giveaway.MediaFileID != nil {
		if err := s.clients.Media.ReleaseMedia(ctx, giveaway.ID); err != nil {
			logger.Warn().Err(err).
				Int64("giveaway_id", giveaway.ID).
				Msg("media release failed")
		}
	}

	s.invalidate(ctx,
		cache.ActiveGiveawayKey(giveaway.AccountID),
		cache.ResultTokenKey(giveaway.ResultToken))

	logger.Info().
		Int64("giveaway_id", giveaway.ID).
		Int("winners", len(selection.Winners)).
		Int("participants", selection.TotalParticipants).
		Msg("giveaway finished")

	return &models.FinishResult{
		WinnersSelected:     len(selection.Winners),
		TotalParticipants:   selection.TotalParticipants,
		MessagesDelivered:   messagesDelivered,
		ConclusionMessageID: conclusionMessageID,
		FinishedAt:          time.Now().UTC(),
	}, nil
}

// sendResultMessages delivers winner/loser messages to every
// participant. Failures never abort the finish; they are recorded as
// message_send log entries.
func (s *giveawayService) sendResultMessages(ctx context.Context, giveaway *models.Giveaway, selection *gateway.WinnerSelection, participants []int64) int {
	if len(participants) == 0 {
		return 0
	}

	delivered, err := s.clients.Bot.SendBulkMessages(ctx, &gateway.BulkMessageRequest{
		AccountID:     giveaway.AccountID,
		GiveawayID:    giveaway.ID,
		WinnerMessage: giveaway.WinnerMessage,
		LoserMessage:  giveaway.LoserMessage,
		Winners:       selection.Winners,
		Participants:  participants,
	})
	if err != nil {
		outcome := models.LogOutcomeFailure
		if isUnknownOutcome(err) {
			outcome = models.LogOutcomeUnknown
		}
		s.appendLog(ctx, models.NewLogEntry(giveaway.ID, models.LogActionMessageSend, outcome).WithError(err))
		logger.Warn().Err(err).
			Int64("giveaway_id", giveaway.ID).
			Msg("bulk result messages not confirmed")
		return 0
	}

	s.appendLog(ctx, models.NewLogEntry(giveaway.ID, models.LogActionMessageSend, models.LogOutcomeSuccess))
	return delivered
}

func (s *giveawayService) postConclusion(ctx context.Context, giveaway *models.Giveaway, winners []int64) *int64 {
	id, err := s.clients.Bot.PostConclusionMessage(ctx,
		giveaway.AccountID, giveaway.ChannelID, giveaway.PublicConclusionMessage, winners)
	if err != nil {
		logger.Warn().Err(err).
			Int64("giveaway_id", giveaway.ID).
			Msg("conclusion message not posted")
		return nil
	}
	return &id
}

func (s *giveawayService) Get(ctx context.Context, giveawayID int64) (*models.GiveawayDetails, error) {
	giveaway, err := s.repo.GetByID(ctx, giveawayID)
	if err != nil {
		return nil, storeError(err, giveawayID, "giveaway state changed")
	}
	return s.details(ctx, giveaway), nil
}

func (s *giveawayService) ValidateState(ctx context.Context, giveawayID int64) (*models.StateReport, error) {
	giveaway, err := s.repo.GetByID(ctx, giveawayID)
	if err != nil {
		return nil, storeError(err, giveawayID, "giveaway state changed")
	}
	if err := s.validateAccount(ctx, giveaway.AccountID); err != nil {
		return nil, err
	}

	report := giveaway.ValidateState()
	if !report.Valid {
		logger.Warn().
			Int64("giveaway_id", giveawayID).
			Strs("issues", report.Issues).
			Msg("giveaway state inconsistent")
	}
	return report, nil
}

func (s *giveawayService) GetActive(ctx context.Context, accountID int64) (*models.GiveawayDetails, error) {
	key := cache.ActiveGiveawayKey(accountID)

	var cached models.Giveaway
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return s.details(ctx, &cached), nil
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.Warn().Err(err).Int64("account_id", accountID).Msg("cache read failed")
	}

	giveaway, err := s.repo.GetActiveByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Newf(apperrors.ErrCodeNoActiveGiveaway,
				"account %d has no active giveaway", accountID).
				WithDetail("account_id", accountID)
		}
		return nil, storeError(err, 0, "active lookup failed")
	}

	if err := s.cache.Set(ctx, key, giveaway, activeCacheTTL); err != nil {
		logger.Warn().Err(err).Int64("account_id", accountID).Msg("cache write failed")
	}

	return s.details(ctx, giveaway), nil
}

func (s *giveawayService) details(ctx context.Context, giveaway *models.Giveaway) *models.GiveawayDetails {
	d := &models.GiveawayDetails{
		Giveaway:       giveaway,
		LifecycleStage: giveaway.LifecycleStage(),
		NextActions:    giveaway.NextActions(),
	}

	if giveaway.IsFinished() {
		if stats, err := s.repo.GetStats(ctx, giveaway.ID); err == nil {
			d.ParticipantCount = stats.TotalParticipants
		}
		return d
	}

	if giveaway.Status == models.GiveawayStatusActive {
		if ps, err := s.clients.Participant.ParticipationStats(ctx, giveaway.ID); err == nil {
			d.ParticipantCount = ps.TotalParticipants
		} else if stats, err := s.repo.GetStats(ctx, giveaway.ID); err == nil {
			d.ParticipantCount = stats.TotalParticipants
		}
	}
	return d
}

func (s *giveawayService) GetHistory(ctx context.Context, accountID int64, page, limit int) (*models.HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	giveaways, total, err := s.repo.ListByAccount(ctx, accountID, (page-1)*limit, limit)
	if err != nil {
		return nil, storeError(err, 0, "history lookup failed")
	}

	items := make([]*models.HistoryItem, 0, len(giveaways))
	for _, g := range giveaways {
		item := &models.HistoryItem{Giveaway: g}
		if g.IsFinished() {
			if stats, err := s.repo.GetStats(ctx, g.ID); err == nil {
				item.Stats = stats
			}
		}
		items = append(items, item)
	}

	pages := int((total + int64(limit) - 1) / int64(limit))
	return &models.HistoryPage{
		Giveaways: items,
		Page:      page,
		Limit:     limit,
		Total:     total,
		Pages:     pages,
	}, nil
}

func (s *giveawayService) GetStats(ctx context.Context, giveawayID int64) (*models.GiveawayStats, error) {
	giveaway, err := s.repo.GetByID(ctx, giveawayID)
	if err != nil {
		return nil, storeError(err, giveawayID, "giveaway state changed")
	}

	stats, err := s.repo.GetStats(ctx, giveawayID)
	if err != nil {
		return nil, storeError(err, giveawayID, "stats lookup failed")
	}

	// While the giveaway runs, the stored counters trail the participant
	// service. Refresh opportunistically, keep serving the snapshot when
	// the collaborator is down.
	if giveaway.Status == models.GiveawayStatusActive && giveaway.MessageID != nil {
		if ps, err := s.clients.Participant.ParticipationStats(ctx, giveawayID); err == nil {
			stats.TotalParticipants = ps.TotalParticipants
			stats.LastUpdated = time.Now().UTC()
			if err := s.repo.RecordStats(ctx, stats); err != nil {
				logger.Warn().Err(err).Int64("giveaway_id", giveawayID).Msg("stats refresh not persisted")
			}
		}
	}

	return stats, nil
}

func (s *giveawayService) GetByResultToken(ctx context.Context, resultToken string) (*models.ResultTokenView, error) {
	if !token.ValidFormat(resultToken) {
		return nil, apperrors.NewValidationError("token", "malformed result token")
	}

	key := cache.ResultTokenKey(resultToken)
	var cached models.ResultTokenView
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	giveaway, err := s.repo.GetByResultToken(ctx, resultToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.New(apperrors.ErrCodeGiveawayNotFound, "no giveaway for this token")
		}
		return nil, storeError(err, 0, "token lookup failed")
	}

	view := &models.ResultTokenView{
		ID:         giveaway.ID,
		Title:      giveaway.Title,
		Status:     giveaway.Status,
		FinishedAt: giveaway.FinishedAt,
	}
	// Result messages are only disclosed once the giveaway concluded.
	if giveaway.IsFinished() {
		view.WinnerMessage = giveaway.WinnerMessage
		view.LoserMessage = giveaway.LoserMessage
		view.PublicConclusionMessage = giveaway.PublicConclusionMessage
	}

	if err := s.cache.Set(ctx, key, view, tokenCacheTTL); err != nil {
		logger.Warn().Err(err).Msg("cache write failed")
	}
	return view, nil
}

func (s *giveawayService) GetLogs(ctx context.Context, giveawayID int64, limit int) ([]*models.PublishingLogEntry, error) {
	if limit < 1 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	if _, err := s.repo.GetByID(ctx, giveawayID); err != nil {
		return nil, storeError(err, giveawayID, "giveaway state changed")
	}

	entries, err := s.repo.RecentLogs(ctx, giveawayID, limit)
	if err != nil {
		return nil, storeError(err, giveawayID, "log lookup failed")
	}
	return entries, nil
}

func (s *giveawayService) validateAccount(ctx context.Context, accountID int64) error {
	err := s.clients.Auth.ValidateAccount(ctx, accountID)
	if err == nil {
		return nil
	}
	if appErr, ok := apperrors.AsAppError(err); ok && appErr.IsRetryable() {
		return err
	}
	return apperrors.Wrap(err, apperrors.ErrCodeAccountValidationFailed,
		"account validation failed").
		WithDetail("account_id", accountID)
}

// appendLog records an audit entry outside any state flip. The log is
// evidence, losing a write is logged but never fails the operation.
func (s *giveawayService) appendLog(ctx context.Context, entry *models.PublishingLogEntry) {
	if err := s.repo.AppendLog(ctx, entry); err != nil {
		logger.Error().Err(err).
			Int64("giveaway_id", entry.GiveawayID).
			Str("action", string(entry.Action)).
			Str("outcome", string(entry.Outcome)).
			Msg("publishing log append failed")
	}
}

func (s *giveawayService) setCleanupStatus(ctx context.Context, giveawayID int64, status string) {
	if err := s.repo.SetMediaCleanupStatus(ctx, giveawayID, status); err != nil {
		logger.Warn().Err(err).Int64("giveaway_id", giveawayID).Msg("media cleanup status not persisted")
	}
}

func (s *giveawayService) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Delete(ctx, keys...); err != nil {
		logger.Warn().Err(err).Msg("cache invalidation failed")
	}
}
