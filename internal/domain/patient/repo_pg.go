package patient

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/soulsalutte/clinic/internal/platform/apperr"
	"github.com/soulsalutte/clinic/internal/platform/db"
	"github.com/soulsalutte/clinic/pkg/localtime"
)

type repoPG struct{ db db.Querier }

func NewRepoPG(q db.Querier) Repository { return &repoPG{db: q} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.db)
}

const patientCols = `id, name, email, phone, birth_date, registered_at, sex, city,
	neighborhood, occupation, home_address, work_address, nationality, marital_status, updated_at`

func (r *repoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var birth *time.Time
	var sex string
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &birth, &p.RegisteredAt, &sex, &p.City,
		&p.Neighborhood, &p.Occupation, &p.HomeAddress, &p.WorkAddress, &p.Nationality,
		&p.MaritalStatus, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if birth != nil {
		p.BirthDate = birth.Format(localtime.DateLayout)
	}
	p.Sex = Sex(sex)
	return &p, nil
}

func birthDateArg(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (name, email, phone, birth_date, sex, city, neighborhood, occupation,
			home_address, work_address, nationality, marital_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id, registered_at, updated_at`,
		p.Name, p.Email, p.Phone, birthDateArg(p.BirthDate), string(p.Sex), p.City, p.Neighborhood,
		p.Occupation, p.HomeAddress, p.WorkAddress, p.Nationality, p.MaritalStatus)
	if err := row.Scan(&p.ID, &p.RegisteredAt, &p.UpdatedAt); err != nil {
		return apperr.Transport(err, "create patient")
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	p, err := r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("patient %d not found", id)
	}
	if err != nil {
		return nil, apperr.Transport(err, "load patient %d", id)
	}
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	row := r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET name=$2, email=$3, phone=$4, birth_date=$5, sex=$6, city=$7,
			neighborhood=$8, occupation=$9, home_address=$10, work_address=$11,
			nationality=$12, marital_status=$13, updated_at=NOW()
		WHERE id = $1
		RETURNING registered_at, updated_at`,
		p.ID, p.Name, p.Email, p.Phone, birthDateArg(p.BirthDate), string(p.Sex), p.City,
		p.Neighborhood, p.Occupation, p.HomeAddress, p.WorkAddress, p.Nationality, p.MaritalStatus)
	err := row.Scan(&p.RegisteredAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("patient %d not found", p.ID)
	}
	if err != nil {
		return apperr.Transport(err, "update patient %d", p.ID)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperr.Conflict("patient %d still has sessions or assessments", id)
		}
		return apperr.Transport(err, "delete patient %d", id)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient %d not found", id)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return r.SearchByName(ctx, "", limit, offset)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *repoPG) SearchByName(ctx context.Context, name string, limit, offset int) ([]*Patient, int, error) {
	name = likeEscaper.Replace(strings.TrimSpace(name))
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patients WHERE $1 = '' OR name ILIKE '%' || $1 || '%'`, name).Scan(&total); err != nil {
		return nil, 0, apperr.Transport(err, "count patients")
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patients
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%'
		ORDER BY lower(name), id LIMIT $2 OFFSET $3`, name, limit, offset)
	if err != nil {
		return nil, 0, apperr.Transport(err, "list patients")
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, 0, apperr.Transport(err, "scan patient")
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Transport(err, "list patients")
	}
	return items, total, nil
}

func (r *repoPG) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&n); err != nil {
		return 0, apperr.Transport(err, "count patients")
	}
	return n, nil
}
