package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"permit_ingest_backend/internal/leads/domain"
	"permit_ingest_backend/internal/store"
	"permit_ingest_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const leadColumns = `id, permit_id, name, email, phone, address, city, state, zip, county,
	service, trade, value, status, source, metadata, created_at, updated_at`

type Repository struct {
	q db.DBTX
}

var _ store.LeadStore = (*Repository)(nil)

func New(q db.DBTX) *Repository {
	return &Repository{q: q}
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	return r.getOne(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
}

func (r *Repository) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	return r.getOne(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1 FOR UPDATE`, id)
}

func (r *Repository) FindByPermit(ctx context.Context, permitID uuid.UUID) (domain.Lead, error) {
	return r.getOne(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE permit_id = $1 OR metadata ->> '`+domain.MetaOriginatingPermitID+`' = $2
		ORDER BY created_at
		LIMIT 1
	`, permitID, permitID.String())
}

func (r *Repository) getOne(ctx context.Context, query string, args ...interface{}) (domain.Lead, error) {
	lead, err := scanLead(r.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, store.ErrNotFound
	}
	return lead, err
}

func (r *Repository) Insert(ctx context.Context, l domain.Lead) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO leads (`+leadColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`,
		l.ID, l.PermitID, l.Name, l.Email, l.Phone, l.Address, l.City, l.State, l.Zip, l.County,
		l.Service, l.Trade, l.Value, l.Status, l.Source, l.Metadata, l.CreatedAt, l.UpdatedAt,
	)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("insert lead %s: %w", l.ID, store.ErrConflict)
	}
	return err
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, at time.Time) error {
	tag, err := r.q.Exec(ctx, `UPDATE leads SET status = $2, updated_at = $3 WHERE id = $1`, id, status, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Lead, int, error) {
	where, args := buildListWhere(filter)

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM leads WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT %s FROM leads
		WHERE %s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d
	`, leadColumns, where, len(args)-1, len(args))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	leads := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return leads, total, nil
}

func buildListWhere(filter domain.ListFilter) (string, []interface{}) {
	clauses := []string{"TRUE"}
	args := make([]interface{}, 0, 3)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("status", filter.Status)
	add("county", filter.County)
	add("trade", filter.Trade)
	return strings.Join(clauses, " AND "), args
}

func scanLead(row pgx.Row) (domain.Lead, error) {
	var l domain.Lead
	err := row.Scan(
		&l.ID, &l.PermitID, &l.Name, &l.Email, &l.Phone, &l.Address, &l.City, &l.State, &l.Zip, &l.County,
		&l.Service, &l.Trade, &l.Value, &l.Status, &l.Source, &l.Metadata, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return domain.Lead{}, err
	}
	if l.Metadata == nil {
		l.Metadata = map[string]any{}
	}
	return l, nil
}
