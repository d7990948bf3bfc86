package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"medication-adherence/internal/domain/caregivers"

	"github.com/jackc/pgx/v5/pgtype"
)

type CaregiversRepo struct {
	db *sql.DB
}

func NewCaregiversRepo(db *sql.DB) *CaregiversRepo {
	return &CaregiversRepo{db: db}
}

const grantColumns = `
	id, patient_user_id, caretaker_user_id,
	scopes, status,
	created_at, updated_at, revoked_at
`

func (r *CaregiversRepo) Create(ctx context.Context, g caregivers.Grant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO caretaker_grants (`+grantColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		g.ID,
		g.PatientUserID,
		g.CaretakerUserID,
		scopesToTextArray(g.Scopes),
		string(g.Status),
		g.CreatedAt,
		g.UpdatedAt,
		toNullTime(g.RevokedAt),
	)
	return mapError(err)
}

func (r *CaregiversRepo) Update(ctx context.Context, g caregivers.Grant) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE caretaker_grants
		SET
			scopes = $2,
			status = $3,
			updated_at = $4,
			revoked_at = $5
		WHERE id = $1
	`,
		g.ID,
		scopesToTextArray(g.Scopes),
		string(g.Status),
		g.UpdatedAt,
		toNullTime(g.RevokedAt),
	)
	if err != nil {
		return mapError(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return caregivers.ErrGrantNotFound
	}
	return nil
}

func (r *CaregiversRepo) GetByID(ctx context.Context, id string) (caregivers.Grant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return caregivers.Grant{}, caregivers.ErrGrantNotFound
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+grantColumns+` FROM caretaker_grants WHERE id = $1`, id)
	return scanGrantRow(row)
}

func (r *CaregiversRepo) ListByPatient(ctx context.Context, patientUserID string) ([]caregivers.Grant, error) {
	return r.list(ctx, `
		SELECT `+grantColumns+`
		FROM caretaker_grants
		WHERE patient_user_id = $1
		ORDER BY updated_at DESC
	`, patientUserID)
}

func (r *CaregiversRepo) ListByCaretaker(ctx context.Context, caretakerUserID string) ([]caregivers.Grant, error) {
	return r.list(ctx, `
		SELECT `+grantColumns+`
		FROM caretaker_grants
		WHERE caretaker_user_id = $1
		ORDER BY updated_at DESC
	`, caretakerUserID)
}

func (r *CaregiversRepo) GetActiveGrant(ctx context.Context, patientUserID, caretakerUserID string) (caregivers.Grant, error) {
	patientUserID = strings.TrimSpace(patientUserID)
	caretakerUserID = strings.TrimSpace(caretakerUserID)
	if patientUserID == "" || caretakerUserID == "" {
		return caregivers.Grant{}, caregivers.ErrGrantNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+grantColumns+`
		FROM caretaker_grants
		WHERE patient_user_id = $1
		  AND caretaker_user_id = $2
		  AND status = 'active'
		ORDER BY updated_at DESC, created_at DESC
		LIMIT 1
	`, patientUserID, caretakerUserID)
	return scanGrantRow(row)
}

func (r *CaregiversRepo) list(ctx context.Context, query, userID string) ([]caregivers.Grant, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]caregivers.Grant, 0)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, mapError(err)
		}
		out = append(out, g)
	}
	return out, mapError(rows.Err())
}

func scanGrantRow(row *sql.Row) (caregivers.Grant, error) {
	g, err := scanGrant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return caregivers.Grant{}, caregivers.ErrGrantNotFound
		}
		return caregivers.Grant{}, mapError(err)
	}
	return g, nil
}

func scanGrant(sc scanner) (caregivers.Grant, error) {
	var g caregivers.Grant
	var status string
	var scopes []string
	var revokedAt sql.NullTime

	// database/sql no sabe escanear text[]; pgtype sí.
	if err := sc.Scan(
		&g.ID,
		&g.PatientUserID,
		&g.CaretakerUserID,
		pgtype.NewMap().SQLScanner(&scopes),
		&status,
		&g.CreatedAt,
		&g.UpdatedAt,
		&revokedAt,
	); err != nil {
		return caregivers.Grant{}, err
	}

	g.Status = caregivers.Status(status)
	g.Scopes = textArrayToScopes(scopes)
	if revokedAt.Valid {
		t := revokedAt.Time
		g.RevokedAt = &t
	}
	return g, nil
}

// helpers
func scopesToTextArray(in []caregivers.Scope) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, string(s))
	}
	return out
}

func textArrayToScopes(in []string) []caregivers.Scope {
	out := make([]caregivers.Scope, 0, len(in))
	for _, s := range in {
		out = append(out, caregivers.Scope(s))
	}
	return out
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
