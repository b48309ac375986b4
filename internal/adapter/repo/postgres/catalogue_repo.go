package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/skillmatch/assessment-recommender/internal/domain"
)

// CatalogueRepo loads assessment products from PostgreSQL. The table is
// written by the catalogue seeding CLI and read-only at request time.
type CatalogueRepo struct{ Pool PgxPool }

// NewCatalogueRepo constructs a CatalogueRepo with the given pool.
func NewCatalogueRepo(p PgxPool) *CatalogueRepo { return &CatalogueRepo{Pool: p} }

const assessmentColumns = `id, name, url, test_types, duration_minutes, remote_capable, adaptive, languages, COALESCE(job_family,''), COALESCE(job_level,''), COALESCE(description,'')`

// GetAll loads the full catalogue ordered by id.
func (r *CatalogueRepo) GetAll(ctx domain.Context) ([]domain.Assessment, error) {
	tracer := otel.Tracer("repo.catalogue")
	ctx, span := tracer.Start(ctx, "catalogue.GetAll")
	defer span.End()
	q := `SELECT ` + assessmentColumns + ` FROM assessments ORDER BY id`
	rows, err := r.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("op=catalogue.get_all: %w", err)
	}
	defer rows.Close()
	return scanAssessments(rows)
}

// GetByID loads one assessment by id.
func (r *CatalogueRepo) GetByID(ctx domain.Context, id string) (domain.Assessment, error) {
	tracer := otel.Tracer("repo.catalogue")
	ctx, span := tracer.Start(ctx, "catalogue.GetByID")
	defer span.End()
	q := `SELECT ` + assessmentColumns + ` FROM assessments WHERE id=$1`
	row := r.Pool.QueryRow(ctx, q, id)
	a, err := scanAssessment(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Assessment{}, fmt.Errorf("op=catalogue.get: %w", domain.ErrNotFound)
		}
		return domain.Assessment{}, fmt.Errorf("op=catalogue.get: %w", err)
	}
	return a, nil
}

// List loads a page of the catalogue ordered by id.
func (r *CatalogueRepo) List(ctx domain.Context, offset, limit int) ([]domain.Assessment, error) {
	tracer := otel.Tracer("repo.catalogue")
	ctx, span := tracer.Start(ctx, "catalogue.List")
	defer span.End()
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := `SELECT ` + assessmentColumns + ` FROM assessments ORDER BY id OFFSET $1 LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("op=catalogue.list: %w", err)
	}
	defer rows.Close()
	return scanAssessments(rows)
}

// UpsertAssessment writes or replaces one catalogue row; used by the
// seeding CLI.
func (r *CatalogueRepo) UpsertAssessment(ctx domain.Context, a domain.Assessment) error {
	tracer := otel.Tracer("repo.catalogue")
	ctx, span := tracer.Start(ctx, "catalogue.Upsert")
	defer span.End()
	q := `INSERT INTO assessments (id, name, url, test_types, duration_minutes, remote_capable, adaptive, languages, job_family, job_level, description)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			url = EXCLUDED.url,
			test_types = EXCLUDED.test_types,
			duration_minutes = EXCLUDED.duration_minutes,
			remote_capable = EXCLUDED.remote_capable,
			adaptive = EXCLUDED.adaptive,
			languages = EXCLUDED.languages,
			job_family = EXCLUDED.job_family,
			job_level = EXCLUDED.job_level,
			description = EXCLUDED.description`
	_, err := r.Pool.Exec(ctx, q, a.ID, a.Name, a.URL, a.TestTypes, a.DurationMinutes, a.RemoteCapable, a.Adaptive, a.Languages, a.JobFamily, a.JobLevel, a.Description)
	if err != nil {
		return fmt.Errorf("op=catalogue.upsert: %w", err)
	}
	return nil
}

func scanAssessments(rows pgx.Rows) ([]domain.Assessment, error) {
	var out []domain.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("op=catalogue.scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=catalogue.rows: %w", err)
	}
	return out, nil
}

func scanAssessment(row pgx.Row) (domain.Assessment, error) {
	var a domain.Assessment
	err := row.Scan(&a.ID, &a.Name, &a.URL, &a.TestTypes, &a.DurationMinutes, &a.RemoteCapable, &a.Adaptive, &a.Languages, &a.JobFamily, &a.JobLevel, &a.Description)
	return a, err
}
