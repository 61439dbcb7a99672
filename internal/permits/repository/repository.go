// Package repository persists canonical permits in Postgres.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"permit_ingest_backend/internal/permits/domain"
	"permit_ingest_backend/internal/store"
	"permit_ingest_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const permitColumns = `id, source, source_record_id, permit_key, permit_no, jurisdiction, county,
	permit_type, permit_class, work_description, address, city, state, zipcode,
	latitude, longitude, valuation, applicant_name, owner_name, contractor_name, status,
	applied_date, issued_date, expiration_date, raw_payload, created_at, updated_at`

type Repository struct {
	q db.DBTX
}

var _ store.PermitStore = (*Repository)(nil)

// New binds the repository to a pool or a transaction.
func New(q db.DBTX) *Repository {
	return &Repository{q: q}
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Permit, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *Repository) GetBySourceRecordID(ctx context.Context, source domain.Source, sourceRecordID string) (domain.Permit, error) {
	return r.getOne(ctx, `WHERE source = $1 AND source_record_id = $2`, string(source), sourceRecordID)
}

func (r *Repository) GetByKey(ctx context.Context, source domain.Source, permitKey string) (domain.Permit, error) {
	return r.getOne(ctx, `WHERE source = $1 AND permit_key = $2`, string(source), permitKey)
}

func (r *Repository) getOne(ctx context.Context, where string, args ...interface{}) (domain.Permit, error) {
	row := r.q.QueryRow(ctx, `SELECT `+permitColumns+` FROM permits `+where, args...)
	p, err := scanPermit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Permit{}, store.ErrNotFound
	}
	return p, err
}

func (r *Repository) Insert(ctx context.Context, p domain.Permit) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO permits (`+permitColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
	`,
		p.ID, string(p.Source), p.SourceRecordID, p.PermitKey, p.PermitNo, p.Jurisdiction, p.County,
		p.PermitType, p.PermitClass, p.WorkDescription, p.Address, p.City, p.State, p.Zipcode,
		p.Latitude, p.Longitude, p.Valuation, p.ApplicantName, p.OwnerName, p.ContractorName, p.Status,
		p.AppliedDate, p.IssuedDate, p.ExpirationDate, []byte(p.RawPayload), p.CreatedAt, p.UpdatedAt,
	)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("insert permit %s/%s: %w", p.Source, p.PermitKey, store.ErrConflict)
	}
	return err
}

func (r *Repository) Update(ctx context.Context, p domain.Permit) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE permits SET
			source_record_id = $2, permit_key = $3, permit_no = $4, jurisdiction = $5, county = $6,
			permit_type = $7, permit_class = $8, work_description = $9, address = $10, city = $11,
			state = $12, zipcode = $13, latitude = $14, longitude = $15, valuation = $16,
			applicant_name = $17, owner_name = $18, contractor_name = $19, status = $20,
			applied_date = $21, issued_date = $22, expiration_date = $23, raw_payload = $24,
			updated_at = $25
		WHERE id = $1
	`,
		p.ID, p.SourceRecordID, p.PermitKey, p.PermitNo, p.Jurisdiction, p.County,
		p.PermitType, p.PermitClass, p.WorkDescription, p.Address, p.City,
		p.State, p.Zipcode, p.Latitude, p.Longitude, p.Valuation,
		p.ApplicantName, p.OwnerName, p.ContractorName, p.Status,
		p.AppliedDate, p.IssuedDate, p.ExpirationDate, []byte(p.RawPayload),
		p.UpdatedAt,
	)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("update permit %s: %w", p.ID, store.ErrConflict)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Permit, int, error) {
	where, args := buildListWhere(filter)

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM permits WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT %s FROM permits
		WHERE %s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d
	`, permitColumns, where, len(args)-1, len(args))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	permits := make([]domain.Permit, 0)
	for rows.Next() {
		p, err := scanPermit(rows)
		if err != nil {
			return nil, 0, err
		}
		permits = append(permits, p)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return permits, total, nil
}

func buildListWhere(filter domain.ListFilter) (string, []interface{}) {
	clauses := []string{"TRUE"}
	args := make([]interface{}, 0, 2)
	if filter.Source != "" {
		args = append(args, string(filter.Source))
		clauses = append(clauses, fmt.Sprintf("source = $%d", len(args)))
	}
	if filter.County != "" {
		args = append(args, filter.County)
		clauses = append(clauses, fmt.Sprintf("county = $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func scanPermit(row pgx.Row) (domain.Permit, error) {
	var p domain.Permit
	var source string
	var raw []byte
	err := row.Scan(
		&p.ID, &source, &p.SourceRecordID, &p.PermitKey, &p.PermitNo, &p.Jurisdiction, &p.County,
		&p.PermitType, &p.PermitClass, &p.WorkDescription, &p.Address, &p.City, &p.State, &p.Zipcode,
		&p.Latitude, &p.Longitude, &p.Valuation, &p.ApplicantName, &p.OwnerName, &p.ContractorName, &p.Status,
		&p.AppliedDate, &p.IssuedDate, &p.ExpirationDate, &raw, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Permit{}, err
	}
	p.Source = domain.Source(source)
	p.RawPayload = raw
	return p, nil
}
