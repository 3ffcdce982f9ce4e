package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/soulsalutte/clinic/internal/platform/apperr"
	"github.com/soulsalutte/clinic/internal/platform/db"
)

type repoPG struct{ db db.Querier }

func NewRepoPG(q db.Querier) Repository { return &repoPG{db: q} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.db)
}

const sessionCols = `id, patient_id, label, start_time, end_time, status, notes, notify, created_at, updated_at`

func (r *repoPG) scanSession(row pgx.Row) (*Session, error) {
	var s Session
	var status string
	err := row.Scan(&s.ID, &s.PatientID, &s.Label, &s.Start, &s.End, &status, &s.Notes,
		&s.Notify, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Status = Status(status)
	s.Start, s.End = s.Start.UTC(), s.End.UTC()
	return &s, nil
}

func (r *repoPG) one(row pgx.Row, id int64, op string) (*Session, error) {
	s, err := r.scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("session %d not found", id)
	}
	if err != nil {
		return nil, apperr.Transport(err, "%s session %d", op, id)
	}
	return s, nil
}

func (r *repoPG) many(ctx context.Context, op, sql string, args ...interface{}) ([]*Session, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, apperr.Transport(err, "%s", op)
	}
	defer rows.Close()

	items := make([]*Session, 0)
	for rows.Next() {
		s, err := r.scanSession(rows)
		if err != nil {
			return nil, apperr.Transport(err, "%s", op)
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Transport(err, "%s", op)
	}
	return items, nil
}

func (r *repoPG) Create(ctx context.Context, s *Session) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO sessions (patient_id, label, start_time, end_time, status, notes, notify)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at, updated_at`,
		s.PatientID, s.Label, s.Start.UTC(), s.End.UTC(), string(s.Status), s.Notes, s.Notify)
	if err := row.Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperr.Validation("patient %d does not exist", s.PatientID)
		}
		return apperr.Transport(err, "create session")
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Session, error) {
	return r.one(r.conn(ctx).QueryRow(ctx, `SELECT `+sessionCols+` FROM sessions WHERE id = $1`, id), id, "load")
}

func (r *repoPG) Update(ctx context.Context, s *Session) error {
	updated, err := r.one(r.conn(ctx).QueryRow(ctx, `
		UPDATE sessions SET label=$2, start_time=$3, end_time=$4, status=$5, notes=$6, notify=$7,
			updated_at=NOW()
		WHERE id = $1
		RETURNING `+sessionCols,
		s.ID, s.Label, s.Start.UTC(), s.End.UTC(), string(s.Status), s.Notes, s.Notify), s.ID, "update")
	if err != nil {
		return err
	}
	*s = *updated
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return apperr.Transport(err, "delete session %d", id)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("session %d not found", id)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context) ([]*Session, error) {
	return r.many(ctx, "list sessions",
		`SELECT `+sessionCols+` FROM sessions ORDER BY start_time, id`)
}

func (r *repoPG) ListByRange(ctx context.Context, start, end time.Time) ([]*Session, error) {
	return r.many(ctx, "list sessions by range",
		`SELECT `+sessionCols+` FROM sessions WHERE start_time >= $1 AND start_time <= $2 ORDER BY start_time, id`,
		start.UTC(), end.UTC())
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID int64) ([]*Session, error) {
	return r.many(ctx, "list sessions by patient",
		`SELECT `+sessionCols+` FROM sessions WHERE patient_id = $1 ORDER BY start_time, id`, patientID)
}

// Reschedule is a single UPDATE, so concurrent readers see either the old or
// the new pair of times, never a mix.
func (r *repoPG) Reschedule(ctx context.Context, id int64, start, end time.Time) (*Session, error) {
	return r.one(r.conn(ctx).QueryRow(ctx, `
		UPDATE sessions SET start_time=$2, end_time=$3, updated_at=NOW()
		WHERE id = $1
		RETURNING `+sessionCols, id, start.UTC(), end.UTC()), id, "reschedule")
}

func (r *repoPG) SetStatus(ctx context.Context, id int64, status Status) (*Session, error) {
	return r.one(r.conn(ctx).QueryRow(ctx, `
		UPDATE sessions SET status=$2, updated_at=NOW()
		WHERE id = $1
		RETURNING `+sessionCols, id, string(status)), id, "update status of")
}

func (r *repoPG) CountByPatient(ctx context.Context, patientID int64) (int, error) {
	var n int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM sessions WHERE patient_id = $1`, patientID).Scan(&n); err != nil {
		return 0, apperr.Transport(err, "count sessions of patient %d", patientID)
	}
	return n, nil
}
