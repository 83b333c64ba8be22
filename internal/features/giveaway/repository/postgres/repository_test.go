package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giveaway-core-backend/internal/features/giveaway/models"
	"giveaway-core-backend/internal/features/giveaway/repository"
)

func newMockRepo(t *testing.T) (repository.GiveawayRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewPostgresRepository(db), mock
}

func TestCreateDraftAssignsIDAndZeroesStats(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO giveaways").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectExec("INSERT INTO giveaway_stats").
		WithArgs(int64(11)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	g := &models.Giveaway{
		AccountID:          1,
		ChannelID:          2,
		Title:              "t",
		MainBody:           "b",
		WinnerCount:        1,
		Status:             models.GiveawayStatusDraft,
		ResultToken:        "tok",
		MediaCleanupStatus: models.MediaCleanupPending,
		CreatedAt:          time.Now().UTC(),
	}
	require.NoError(t, repo.CreateDraft(context.Background(), g))
	assert.Equal(t, int64(11), g.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDraftTokenCollision(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO giveaways").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "giveaways_result_token_key"})
	mock.ExpectRollback()

	err := repo.CreateDraft(context.Background(), &models.Giveaway{})
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivateIfNoneActiveWritesLogInSameTx(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE giveaways").
		WithArgs(int64(5), int64(900)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO giveaway_publishing_log").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(77)))
	mock.ExpectCommit()

	entry := models.NewLogEntry(5, models.LogActionPublish, models.LogOutcomeSuccess).
		WithMessageID(900)
	require.NoError(t, repo.ActivateIfNoneActive(context.Background(), 5, 900, entry))
	assert.Equal(t, int64(77), entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivateIfNoneActiveConflictWhenAnotherActive(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE giveaways").
		WithArgs(int64(5), int64(900)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM giveaways").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("draft"))
	mock.ExpectRollback()

	entry := models.NewLogEntry(5, models.LogActionPublish, models.LogOutcomeSuccess)
	err := repo.ActivateIfNoneActive(context.Background(), 5, 900, entry)
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivateIfNoneActiveNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE giveaways").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM giveaways").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	entry := models.NewLogEntry(404, models.LogActionPublish, models.LogOutcomeSuccess)
	err := repo.ActivateIfNoneActive(context.Background(), 404, 900, entry)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestActivateIfNoneActiveRaceCaughtByIndex(t *testing.T) {
	repo, mock := newMockRepo(t)

	// Both writers pass the NOT EXISTS guard under read committed; the
	// partial unique index rejects the loser at commit.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE giveaways").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "idx_giveaways_account_active"})
	mock.ExpectRollback()

	entry := models.NewLogEntry(5, models.LogActionPublish, models.LogOutcomeSuccess)
	err := repo.ActivateIfNoneActive(context.Background(), 5, 900, entry)
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestFinishIfActiveWritesLogAndStatsInSameTx(t *testing.T) {
	repo, mock := newMockRepo(t)

	conclusionID := int64(321)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE giveaways").
		WithArgs(int64(5), &conclusionID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO giveaway_publishing_log").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(78)))
	mock.ExpectExec("INSERT INTO giveaway_stats").
		WithArgs(int64(5), 12, 3, 12).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	entry := models.NewLogEntry(5, models.LogActionFinish, models.LogOutcomeSuccess)
	stats := &models.GiveawayStats{GiveawayID: 5, TotalParticipants: 12, WinnerCount: 3, MessagesDelivered: 12}
	require.NoError(t, repo.FinishIfActive(context.Background(), 5, &conclusionID, entry, stats))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishIfActiveRollsBackWhenStatsWriteFails(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE giveaways").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO giveaway_publishing_log").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(78)))
	mock.ExpectExec("INSERT INTO giveaway_stats").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	entry := models.NewLogEntry(5, models.LogActionFinish, models.LogOutcomeSuccess)
	stats := &models.GiveawayStats{GiveawayID: 5, TotalParticipants: 12, WinnerCount: 3, MessagesDelivered: 12}
	err := repo.FinishIfActive(context.Background(), 5, nil, entry, stats)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishIfActiveConflictWhenNotActive(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE giveaways").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM giveaways").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("finished"))
	mock.ExpectRollback()

	entry := models.NewLogEntry(5, models.LogActionFinish, models.LogOutcomeSuccess)
	err := repo.FinishIfActive(context.Background(), 5, nil, entry, nil)
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestUpdateFinishMessagesRefusesFinished(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE giveaways").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM giveaways").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("finished"))

	err := repo.UpdateFinishMessages(context.Background(), 5, "p", "w", "l")
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM giveaways WHERE id").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAppendLogAssignsID(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("INSERT INTO giveaway_publishing_log").
		WithArgs(int64(5), models.LogActionPublish, models.LogOutcomeUnknown,
			nil, "timeout", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	entry := models.NewLogEntry(5, models.LogActionPublish, models.LogOutcomeUnknown)
	entry.ErrorMessage = "timeout"
	require.NoError(t, repo.AppendLog(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUnresolvedUnknown(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	mock.ExpectQuery("FROM giveaway_publishing_log").
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "giveaway_id", "action", "outcome", "message_id", "error_message", "created_at"}).
			AddRow(int64(3), int64(5), "publish", "unknown", nil, "timeout", now))

	entries, err := repo.ListUnresolvedUnknown(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.LogOutcomeUnknown, entries[0].Outcome)
	assert.Equal(t, int64(5), entries[0].GiveawayID)
}
