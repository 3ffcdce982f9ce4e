package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/soulsalutte/clinic/internal/platform/apperr"
	"github.com/soulsalutte/clinic/internal/platform/db"
	"github.com/soulsalutte/clinic/pkg/localtime"
)

// repoPG keeps key columns relationally and the clinical form as JSONB.
// Progress notes live in their own table.
type repoPG struct{ db db.DB }

func NewRepoPG(d db.DB) Repository { return &repoPG{db: d} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.db)
}

const assessmentCols = `id, patient_id, assessment_date, form, created_at, updated_at`

func dateArg(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (r *repoPG) scanAssessment(row pgx.Row) (*Assessment, error) {
	var a Assessment
	var date *time.Time
	var form []byte
	if err := row.Scan(&a.ID, &a.PatientID, &date, &form, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if date != nil {
		a.Date = date.Format(localtime.DateLayout)
	}
	if len(form) > 0 {
		if err := json.Unmarshal(form, &a.Form); err != nil {
			return nil, err
		}
	}
	a.Notes = []ProgressNote{}
	return &a, nil
}

// attachNotes loads the notes of every assessment in items with one query.
func (r *repoPG) attachNotes(ctx context.Context, items ...*Assessment) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(items))
	byID := make(map[int64]*Assessment, len(items))
	for _, a := range items {
		ids = append(ids, a.ID)
		byID[a.ID] = a
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, assessment_id, body, noted_at FROM progress_notes
		WHERE assessment_id = ANY($1)
		ORDER BY noted_at DESC, id DESC`, ids)
	if err != nil {
		return apperr.Transport(err, "load progress notes")
	}
	defer rows.Close()

	for rows.Next() {
		var n ProgressNote
		var assessmentID int64
		if err := rows.Scan(&n.ID, &assessmentID, &n.Text, &n.Timestamp); err != nil {
			return apperr.Transport(err, "load progress notes")
		}
		n.Timestamp = n.Timestamp.UTC()
		if a, ok := byID[assessmentID]; ok {
			a.Notes = append(a.Notes, n)
		}
	}
	if err := rows.Err(); err != nil {
		return apperr.Transport(err, "load progress notes")
	}
	return nil
}

func (r *repoPG) Create(ctx context.Context, a *Assessment) error {
	form, err := json.Marshal(a.Form)
	if err != nil {
		return err
	}
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO assessments (patient_id, assessment_date, pain_score, form)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at, updated_at`,
		a.PatientID, dateArg(a.Date), a.PainScore, form)
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperr.Validation("patient %d does not exist", a.PatientID)
		}
		return apperr.Transport(err, "create assessment")
	}
	a.Notes = []ProgressNote{}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Assessment, error) {
	a, err := r.scanAssessment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+assessmentCols+` FROM assessments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("assessment %d not found", id)
	}
	if err != nil {
		return nil, apperr.Transport(err, "load assessment %d", id)
	}
	if err := r.attachNotes(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *repoPG) Update(ctx context.Context, a *Assessment) error {
	form, err := json.Marshal(a.Form)
	if err != nil {
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE assessments SET assessment_date=$2, pain_score=$3, form=$4, updated_at=NOW()
		WHERE id = $1`,
		a.ID, dateArg(a.Date), a.PainScore, form)
	if err != nil {
		return apperr.Transport(err, "update assessment %d", a.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("assessment %d not found", a.ID)
	}
	stored, err := r.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	*a = *stored
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM assessments WHERE id = $1`, id)
	if err != nil {
		return apperr.Transport(err, "delete assessment %d", id)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("assessment %d not found", id)
	}
	return nil
}

func (r *repoPG) list(ctx context.Context, sql string, args ...interface{}) ([]*Assessment, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, apperr.Transport(err, "list assessments")
	}
	items := make([]*Assessment, 0)
	for rows.Next() {
		a, err := r.scanAssessment(rows)
		if err != nil {
			rows.Close()
			return nil, apperr.Transport(err, "list assessments")
		}
		items = append(items, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apperr.Transport(err, "list assessments")
	}
	if err := r.attachNotes(ctx, items...); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repoPG) List(ctx context.Context) ([]*Assessment, error) {
	return r.list(ctx, `SELECT `+assessmentCols+` FROM assessments ORDER BY assessment_date DESC NULLS LAST, id DESC`)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID int64) ([]*Assessment, error) {
	return r.list(ctx, `SELECT `+assessmentCols+` FROM assessments WHERE patient_id = $1 ORDER BY assessment_date DESC NULLS LAST, id DESC`, patientID)
}

// AppendNote locks the assessment row, inserts the note and bumps updatedAt
// in one transaction.
func (r *repoPG) AppendNote(ctx context.Context, assessmentID int64, note *ProgressNote) (*Assessment, error) {
	var out *Assessment
	err := db.InTx(ctx, r.db, func(ctx context.Context) error {
		var created time.Time
		err := r.conn(ctx).QueryRow(ctx,
			`SELECT created_at FROM assessments WHERE id = $1 FOR UPDATE`, assessmentID).Scan(&created)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("assessment %d not found", assessmentID)
		}
		if err != nil {
			return apperr.Transport(err, "lock assessment %d", assessmentID)
		}

		var ts interface{}
		if !note.Timestamp.IsZero() {
			ts = note.Timestamp.UTC()
		}
		err = r.conn(ctx).QueryRow(ctx, `
			INSERT INTO progress_notes (assessment_id, body, noted_at)
			VALUES ($1, $2, COALESCE($3, NOW()))
			RETURNING id, noted_at`, assessmentID, note.Text, ts).Scan(&note.ID, &note.Timestamp)
		if err != nil {
			return apperr.Transport(err, "append progress note")
		}
		note.Timestamp = note.Timestamp.UTC()

		_, err = r.conn(ctx).Exec(ctx, `
			UPDATE assessments SET updated_at = GREATEST(NOW(), $2, created_at)
			WHERE id = $1`, assessmentID, note.Timestamp)
		if err != nil {
			return apperr.Transport(err, "touch assessment %d", assessmentID)
		}

		out, err = r.GetByID(ctx, assessmentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repoPG) CountByPatient(ctx context.Context, patientID int64) (int, error) {
	var n int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM assessments WHERE patient_id = $1`, patientID).Scan(&n); err != nil {
		return 0, apperr.Transport(err, "count assessments of patient %d", patientID)
	}
	return n, nil
}
