package patient

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

var patientColumns = []string{"id", "name", "email", "phone", "birth_date", "registered_at", "sex", "city",
	"neighborhood", "occupation", "home_address", "work_address", "nationality", "marital_status", "updated_at"}

func newPGRepo(t *testing.T) (Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepoPG(mock), mock
}

func TestRepoPG_Create(t *testing.T) {
	repo, mock := newPGRepo(t)
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO patients").
		WithArgs("Maria Silva Santos", "maria@email.com", "(11) 99999-1234", "1985-03-15", "F",
			"", "", "", "", "", "", "").
		WillReturnRows(pgxmock.NewRows([]string{"id", "registered_at", "updated_at"}).AddRow(int64(7), now, now))

	p := validPatient()
	p.BirthDate = "1985-03-15"
	p.Sex = SexFemale
	require.NoError(t, repo.Create(context.Background(), p))
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, now, p.RegisteredAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoPG_GetByID(t *testing.T) {
	repo, mock := newPGRepo(t)
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	birth := time.Date(1985, 3, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM patients WHERE id").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(patientColumns).AddRow(
			int64(7), "Maria Silva Santos", "maria@email.com", "(11) 99999-1234", &birth, now, "F", "São Paulo",
			"Centro", "Professora", "", "", "Brasileira", "Casado", now))

	p, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "1985-03-15", p.BirthDate)
	assert.Equal(t, SexFemale, p.Sex)
	assert.Equal(t, "Casado", p.MaritalStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoPG_GetByID_NotFound(t *testing.T) {
	repo, mock := newPGRepo(t)
	mock.ExpectQuery("FROM patients WHERE id").WithArgs(int64(9)).WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 9)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestRepoPG_GetByID_TransportError(t *testing.T) {
	repo, mock := newPGRepo(t)
	mock.ExpectQuery("FROM patients WHERE id").WithArgs(int64(9)).
		WillReturnError(errors.New("connection reset by peer"))

	_, err := repo.GetByID(context.Background(), 9)
	assert.True(t, errors.Is(err, apperr.ErrTransport))
	assert.Equal(t, apperr.GenericMessage, apperr.Message(err))
}

func TestRepoPG_Delete(t *testing.T) {
	repo, mock := newPGRepo(t)
	mock.ExpectExec("DELETE FROM patients").WithArgs(int64(3)).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM patients").WithArgs(int64(4)).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("DELETE FROM patients").WithArgs(int64(5)).
		WillReturnError(&pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"})

	ctx := context.Background()
	assert.NoError(t, repo.Delete(ctx, 3))
	assert.True(t, errors.Is(repo.Delete(ctx, 4), apperr.ErrNotFound))
	assert.True(t, errors.Is(repo.Delete(ctx, 5), apperr.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoPG_SearchByName(t *testing.T) {
	repo, mock := newPGRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM patients`).WithArgs("maria").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`ORDER BY lower\(name\)`).WithArgs("maria", 10, 0).
		WillReturnRows(pgxmock.NewRows(patientColumns).AddRow(
			int64(1), "Maria Silva Santos", "maria@email.com", "1", nil, now, "", "", "", "", "", "", "", "", now))

	items, total, err := repo.SearchByName(context.Background(), " maria ", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "", items[0].BirthDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoPG_SearchEscapesWildcards(t *testing.T) {
	repo, mock := newPGRepo(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM patients`).WithArgs(`100\%`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`ORDER BY lower\(name\)`).WithArgs(`100\%`, 10, 0).
		WillReturnRows(pgxmock.NewRows(patientColumns))

	_, total, err := repo.SearchByName(context.Background(), "100%", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
