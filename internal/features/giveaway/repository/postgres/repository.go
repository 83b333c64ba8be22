package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"giveaway-core-backend/internal/features/giveaway/models"
	"giveaway-core-backend/internal/features/giveaway/repository"

	"github.com/lib/pq"
)

// Expected schema:
//
//	giveaways(id bigserial pk, account_id, channel_id, title, main_body,
//	    winner_count, participation_button_text, public_conclusion_message,
//	    winner_message, loser_message, messages_ready_for_finish, status,
//	    message_id, conclusion_message_id, result_token unique,
//	    media_file_id, media_cleanup_status, created_at, published_at,
//	    finished_at)
//	giveaway_stats(id bigserial pk, giveaway_id unique fk,
//	    total_participants, winner_count, messages_delivered, last_updated)
//	giveaway_publishing_log(id bigserial pk, giveaway_id fk, action,
//	    outcome, message_id, error_message, created_at)
//
// The single-active invariant lives in a partial unique index:
//
//	CREATE UNIQUE INDEX idx_giveaways_account_active
//	    ON giveaways (account_id) WHERE status = 'active';
//
// Concurrent activations race past the NOT EXISTS guard under read
// committed; the index is what actually stops the second writer.
type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.GiveawayRepository {
	return &postgresRepository{db: db}
}

const giveawayColumns = `id, account_id, channel_id, title, main_body, winner_count,
	participation_button_text, COALESCE(public_conclusion_message, ''),
	COALESCE(winner_message, ''), COALESCE(loser_message, ''),
	messages_ready_for_finish, status, message_id, conclusion_message_id,
	result_token, media_file_id, media_cleanup_status, created_at,
	published_at, finished_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGiveaway(row rowScanner) (*models.Giveaway, error) {
	var g models.Giveaway
	err := row.Scan(
		&g.ID, &g.AccountID, &g.ChannelID, &g.Title, &g.MainBody, &g.WinnerCount,
		&g.ParticipationButtonText, &g.PublicConclusionMessage,
		&g.WinnerMessage, &g.LoserMessage,
		&g.MessagesReadyForFinish, &g.Status, &g.MessageID, &g.ConclusionMessageID,
		&g.ResultToken, &g.MediaFileID, &g.MediaCleanupStatus, &g.CreatedAt,
		&g.PublishedAt, &g.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

func (r *postgresRepository) CreateDraft(ctx context.Context, giveaway *models.Giveaway) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO giveaways (account_id, channel_id, title, main_body, winner_count,
			participation_button_text, status, result_token, media_file_id,
			media_cleanup_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, query,
		giveaway.AccountID, giveaway.ChannelID, giveaway.Title, giveaway.MainBody,
		giveaway.WinnerCount, giveaway.ParticipationButtonText, giveaway.Status,
		giveaway.ResultToken, giveaway.MediaFileID, giveaway.MediaCleanupStatus,
		giveaway.CreatedAt).Scan(&giveaway.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create giveaway: %w", err)
	}

	statsQuery := `
		INSERT INTO giveaway_stats (giveaway_id, total_participants, winner_count,
			messages_delivered, last_updated)
		VALUES ($1, 0, 0, 0, now())
	`
	if _, err = tx.ExecContext(ctx, statsQuery, giveaway.ID); err != nil {
		return fmt.Errorf("failed to create giveaway stats: %w", err)
	}

	return tx.Commit()
}

func (r *postgresRepository) GetByID(ctx context.Context, id int64) (*models.Giveaway, error) {
	query := `SELECT ` + giveawayColumns + ` FROM giveaways WHERE id = $1`

	giveaway, err := scanGiveaway(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get giveaway: %w", err)
	}
	return giveaway, nil
}

func (r *postgresRepository) GetActiveByAccount(ctx context.Context, accountID int64) (*models.Giveaway, error) {
	query := `SELECT ` + giveawayColumns + ` FROM giveaways WHERE account_id = $1 AND status = 'active'`

	giveaway, err := scanGiveaway(r.db.QueryRowContext(ctx, query, accountID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get active giveaway: %w", err)
	}
	return giveaway, nil
}

func (r *postgresRepository) GetByResultToken(ctx context.Context, token string) (*models.Giveaway, error) {
	query := `SELECT ` + giveawayColumns + ` FROM giveaways WHERE result_token = $1`

	giveaway, err := scanGiveaway(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get giveaway by token: %w", err)
	}
	return giveaway, nil
}

func (r *postgresRepository) TokenExists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM giveaways WHERE result_token = $1)`, token).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return exists, nil
}

func (r *postgresRepository) ListByAccount(ctx context.Context, accountID int64, offset, limit int) ([]*models.Giveaway, int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM giveaways WHERE account_id = $1`, accountID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count giveaways: %w", err)
	}

	query := `SELECT ` + giveawayColumns + `
		FROM giveaways
		WHERE account_id = $1
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, accountID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list giveaways: %w", err)
	}
	defer rows.Close()

	var giveaways []*models.Giveaway
	for rows.Next() {
		g, err := scanGiveaway(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan giveaway: %w", err)
		}
		giveaways = append(giveaways, g)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate giveaways: %w", err)
	}

	return giveaways, total, nil
}

func (r *postgresRepository) ActivateIfNoneActive(ctx context.Context, id int64, messageID int64, entry *models.PublishingLogEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE giveaways g
		SET status = 'active', message_id = $2, published_at = now()
		WHERE g.id = $1 AND g.status = 'draft'
		AND NOT EXISTS (
			SELECT 1 FROM giveaways a
			WHERE a.account_id = g.account_id AND a.status = 'active'
		)
	`
	res, err := tx.ExecContext(ctx, query, id, messageID)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to activate giveaway: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM giveaways WHERE id = $1`, id).Scan(&status)
		if err == sql.ErrNoRows {
			return repository.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read giveaway status: %w", err)
		}
		return repository.ErrConflict
	}

	if err := insertLog(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to commit activation: %w", err)
	}
	return nil
}

func (r *postgresRepository) FinishIfActive(ctx context.Context, id int64, conclusionMessageID *int64, entry *models.PublishingLogEntry, stats *models.GiveawayStats) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE giveaways
		SET status = 'finished', conclusion_message_id = $2, finished_at = now()
		WHERE id = $1 AND status = 'active'
	`
	res, err := tx.ExecContext(ctx, query, id, conclusionMessageID)
	if err != nil {
		return fmt.Errorf("failed to finish giveaway: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM giveaways WHERE id = $1`, id).Scan(&status)
		if err == sql.ErrNoRows {
			return repository.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read giveaway status: %w", err)
		}
		return repository.ErrConflict
	}

	if err := insertLog(ctx, tx, entry); err != nil {
		return err
	}

	if stats != nil {
		if err := upsertStats(ctx, tx, stats); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit finish: %w", err)
	}
	return nil
}

func (r *postgresRepository) UpdateFinishMessages(ctx context.Context, id int64, public, winner, loser string) error {
	query := `
		UPDATE giveaways
		SET public_conclusion_message = $2, winner_message = $3,
			loser_message = $4, messages_ready_for_finish = true
		WHERE id = $1 AND status <> 'finished'
	`
	res, err := r.db.ExecContext(ctx, query, id, public, winner, loser)
	if err != nil {
		return fmt.Errorf("failed to update finish messages: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		var status string
		err := r.db.QueryRowContext(ctx, `SELECT status FROM giveaways WHERE id = $1`, id).Scan(&status)
		if err == sql.ErrNoRows {
			return repository.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read giveaway status: %w", err)
		}
		return repository.ErrConflict
	}
	return nil
}

func (r *postgresRepository) SetMediaCleanupStatus(ctx context.Context, id int64, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE giveaways SET media_cleanup_status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to set media cleanup status: %w", err)
	}
	return nil
}

type execQueryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func insertLog(ctx context.Context, q execQueryer, entry *models.PublishingLogEntry) error {
	query := `
		INSERT INTO giveaway_publishing_log (giveaway_id, action, outcome,
			message_id, error_message, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING id
	`
	err := q.QueryRowContext(ctx, query,
		entry.GiveawayID, entry.Action, entry.Outcome, entry.MessageID,
		entry.ErrorMessage, entry.CreatedAt).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to append publishing log: %w", err)
	}
	return nil
}

func (r *postgresRepository) AppendLog(ctx context.Context, entry *models.PublishingLogEntry) error {
	return insertLog(ctx, r.db, entry)
}

const logColumns = `id, giveaway_id, action, outcome, message_id, COALESCE(error_message, ''), created_at`

func scanLog(row rowScanner) (*models.PublishingLogEntry, error) {
	var e models.PublishingLogEntry
	err := row.Scan(&e.ID, &e.GiveawayID, &e.Action, &e.Outcome,
		&e.MessageID, &e.ErrorMessage, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *postgresRepository) RecentLogs(ctx context.Context, giveawayID int64, limit int) ([]*models.PublishingLogEntry, error) {
	query := `SELECT ` + logColumns + `
		FROM giveaway_publishing_log
		WHERE giveaway_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, giveawayID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.PublishingLogEntry
	for rows.Next() {
		e, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate logs: %w", err)
	}
	return entries, nil
}

func (r *postgresRepository) GetStats(ctx context.Context, giveawayID int64) (*models.GiveawayStats, error) {
	query := `
		SELECT id, giveaway_id, total_participants, winner_count,
			messages_delivered, last_updated
		FROM giveaway_stats
		WHERE giveaway_id = $1
	`
	var s models.GiveawayStats
	err := r.db.QueryRowContext(ctx, query, giveawayID).Scan(
		&s.ID, &s.GiveawayID, &s.TotalParticipants, &s.WinnerCount,
		&s.MessagesDelivered, &s.LastUpdated)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &s, nil
}

func upsertStats(ctx context.Context, q execQueryer, stats *models.GiveawayStats) error {
	query := `
		INSERT INTO giveaway_stats (giveaway_id, total_participants,
			winner_count, messages_delivered, last_updated)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (giveaway_id) DO UPDATE SET
			total_participants = EXCLUDED.total_participants,
			winner_count = EXCLUDED.winner_count,
			messages_delivered = EXCLUDED.messages_delivered,
			last_updated = now()
	`
	_, err := q.ExecContext(ctx, query,
		stats.GiveawayID, stats.TotalParticipants, stats.WinnerCount,
		stats.MessagesDelivered)
	if err != nil {
		return fmt.Errorf("failed to record stats: %w", err)
	}
	return nil
}

func (r *postgresRepository) RecordStats(ctx context.Context, stats *models.GiveawayStats) error {
	return upsertStats(ctx, r.db, stats)
}

func (r *postgresRepository) ListUnresolvedUnknown(ctx context.Context, limit int) ([]*models.PublishingLogEntry, error) {
	query := `SELECT ` + logColumns + `
		FROM giveaway_publishing_log l
		WHERE l.outcome = 'unknown'
		AND NOT EXISTS (
			SELECT 1 FROM giveaway_publishing_log n
			WHERE n.giveaway_id = l.giveaway_id AND n.action = l.action AND n.id > l.id
		)
		ORDER BY l.id
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unresolved logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.PublishingLogEntry
	for rows.Next() {
		e, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate unresolved logs: %w", err)
	}
	return entries, nil
}

func (r *postgresRepository) ListStaleActiveStats(ctx context.Context, cutoff time.Time, limit int) ([]*models.GiveawayStats, error) {
	query := `
		SELECT s.id, s.giveaway_id, s.total_participants, s.winner_count,
			s.messages_delivered, s.last_updated
		FROM giveaway_stats s
		JOIN giveaways g ON g.id = s.giveaway_id
		WHERE g.status = 'active' AND g.message_id IS NOT NULL
			AND s.last_updated < $1
		ORDER BY s.last_updated
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale stats: %w", err)
	}
	defer rows.Close()

	var out []*models.GiveawayStats
	for rows.Next() {
		var s models.GiveawayStats
		err := rows.Scan(&s.ID, &s.GiveawayID, &s.TotalParticipants,
			&s.WinnerCount, &s.MessagesDelivered, &s.LastUpdated)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stale stats: %w", err)
	}
	return out, nil
}
