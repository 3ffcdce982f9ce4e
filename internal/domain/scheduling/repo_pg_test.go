package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulsalutte/clinic/internal/platform/apperr"
)

var sessionColumns = []string{"id", "patient_id", "label", "start_time", "end_time", "status", "notes",
	"notify", "created_at", "updated_at"}

func newPGRepo(t *testing.T) (Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepoPG(mock), mock
}

func sessionRow(id int64, start, end time.Time, status string) []interface{} {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return []interface{}{id, int64(1), "Maria Silva - Fisioterapia", start, end, status, "", (*bool)(nil), now, now}
}

func TestRepoPG_Create(t *testing.T) {
	repo, mock := newPGRepo(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := &Session{PatientID: 1, Label: "Fisioterapia", Start: at(3, 11, 0), End: at(3, 12, 0), Status: StatusScheduled}

	mock.ExpectQuery("INSERT INTO sessions").
		WithArgs(int64(1), "Fisioterapia", at(3, 11, 0), at(3, 12, 0), "SCHEDULED", "", (*bool)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(5), now, now))

	require.NoError(t, repo.Create(context.Background(), s))
	assert.Equal(t, int64(5), s.ID)
	assert.Equal(t, now, s.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoPG_Create_UnknownPatient(t *testing.T) {
	repo, mock := newPGRepo(t)
	mock.ExpectQuery("INSERT INTO sessions").
		WillReturnError(&pgconn.PgError{Code: "23503"})

	err := repo.Create(context.Background(), &Session{PatientID: 9, Start: at(3, 8, 0), End: at(3, 9, 0)})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRepoPG_GetByID_NotFound(t *testing.T) {
	repo, mock := newPGRepo(t)
	mock.ExpectQuery("FROM sessions WHERE id").
		WithArgs(int64(3)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 3)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRepoPG_ListByRange(t *testing.T) {
	repo, mock := newPGRepo(t)
	mock.ExpectQuery("WHERE start_time >= \\$1 AND start_time <= \\$2").
		WithArgs(at(3, 0, 0), at(3, 23, 59)).
		WillReturnRows(pgxmock.NewRows(sessionColumns).
			AddRow(sessionRow(1, at(3, 11, 0), at(3, 12, 0), "SCHEDULED")...).
			AddRow(sessionRow(2, at(3, 13, 0), at(3, 14, 0), "COMPLETED")...))

	got, err := repo.ListByRange(context.Background(), at(3, 0, 0), at(3, 23, 59))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, StatusCompleted, got[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoPG_Reschedule(t *testing.T) {
	repo, mock := newPGRepo(t)
	mock.ExpectQuery("UPDATE sessions SET start_time").
		WithArgs(int64(1), at(3, 13, 0), at(3, 14, 0)).
		WillReturnRows(pgxmock.NewRows(sessionColumns).
			AddRow(sessionRow(1, at(3, 13, 0), at(3, 14, 0), "SCHEDULED")...))

	s, err := repo.Reschedule(context.Background(), 1, at(3, 13, 0), at(3, 14, 0))
	require.NoError(t, err)
	assert.Equal(t, at(3, 13, 0), s.Start)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoPG_Reschedule_NotFound(t *testing.T) {
	repo, mock := newPGRepo(t)
	mock.ExpectQuery("UPDATE sessions SET start_time").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Reschedule(context.Background(), 8, at(3, 13, 0), at(3, 14, 0))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRepoPG_SetStatus_TransportError(t *testing.T) {
	repo, mock := newPGRepo(t)
	mock.ExpectQuery("UPDATE sessions SET status").
		WithArgs(int64(1), "NO_SHOW").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.SetStatus(context.Background(), 1, StatusNoShow)
	assert.ErrorIs(t, err, apperr.ErrTransport)
	assert.Equal(t, apperr.GenericMessage, apperr.Message(err))
}

func TestRepoPG_Delete(t *testing.T) {
	repo, mock := newPGRepo(t)
	mock.ExpectExec("DELETE FROM sessions").
		WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM sessions").
		WithArgs(int64(2)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.Delete(context.Background(), 1))
	assert.ErrorIs(t, repo.Delete(context.Background(), 2), apperr.ErrNotFound)
}

func TestRepoPG_CountByPatient(t *testing.T) {
	repo, mock := newPGRepo(t)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.CountByPatient(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
