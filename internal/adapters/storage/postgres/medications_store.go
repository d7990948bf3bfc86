package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"medication-adherence/internal/domain/medications"

	"github.com/google/uuid"
)

type MedicationsStore struct {
	db *sql.DB
}

func NewMedicationsStore(db *sql.DB) *MedicationsStore {
	return &MedicationsStore{db: db}
}

func (s *MedicationsStore) ListMedications(ctx context.Context, userID string) ([]medications.MedicationWithLogs, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, dosage, frequency, created_at, updated_at
		FROM medications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]medications.MedicationWithLogs, 0)
	index := map[string]int{}
	for rows.Next() {
		var m medications.Medication
		var freq string
		if err := rows.Scan(&m.ID, &m.UserID, &m.Name, &m.Dosage, &freq, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, mapError(err)
		}
		m.Frequency = medications.Frequency(freq)
		index[m.ID] = len(out)
		out = append(out, medications.MedicationWithLogs{Medication: m, Logs: []medications.DoseLog{}})
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	if len(out) == 0 {
		return out, nil
	}

	logRows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.medication_id, l.user_id, l.taken_at, l.notes, l.photo_url, l.created_at
		FROM medication_logs l
		JOIN medications m ON m.id = l.medication_id
		WHERE m.user_id = $1
		ORDER BY l.taken_at ASC
	`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer logRows.Close()

	for logRows.Next() {
		l, err := scanDoseLog(logRows)
		if err != nil {
			return nil, mapError(err)
		}
		if i, ok := index[l.MedicationID]; ok {
			out[i].Logs = append(out[i].Logs, l)
		}
	}
	return out, mapError(logRows.Err())
}

func (s *MedicationsStore) InsertMedication(ctx context.Context, userID string, in medications.NewMedication) (medications.Medication, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Dosage) == "" || !in.Frequency.Valid() {
		return medications.Medication{}, fmt.Errorf("%w: name, dosage and frequency are required", medications.ErrInvalidInput)
	}

	now := time.Now().UTC()
	m := medications.Medication{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      in.Name,
		Dosage:    in.Dosage,
		Frequency: in.Frequency,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO medications (id, user_id, name, dosage, frequency, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, m.ID, m.UserID, m.Name, m.Dosage, string(m.Frequency), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return medications.Medication{}, mapError(err)
	}
	return m, nil
}

func (s *MedicationsStore) UpdateMedication(ctx context.Context, id, userID string, fields medications.MedicationUpdate) (medications.Medication, error) {
	var freq *string
	if fields.Frequency != nil {
		f := string(*fields.Frequency)
		freq = &f
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE medications
		SET
			name = COALESCE($3, name),
			dosage = COALESCE($4, dosage),
			frequency = COALESCE($5, frequency),
			updated_at = $6
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, name, dosage, frequency, created_at, updated_at
	`, id, userID, fields.Name, fields.Dosage, freq, time.Now().UTC())

	var m medications.Medication
	var f string
	if err := row.Scan(&m.ID, &m.UserID, &m.Name, &m.Dosage, &f, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return medications.Medication{}, mapError(err)
	}
	m.Frequency = medications.Frequency(f)
	return m, nil
}

func (s *MedicationsStore) DeleteMedication(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM medications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return mapError(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return medications.ErrNotFound
	}
	return nil
}

// InsertDoseLog inserta solo si la medicación es del usuario; si no, no hay fila.
func (s *MedicationsStore) InsertDoseLog(ctx context.Context, userID string, in medications.NewDoseLog) (medications.DoseLog, error) {
	now := time.Now().UTC()
	takenAt := now
	if in.TakenAt != nil {
		takenAt = in.TakenAt.UTC()
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO medication_logs (id, medication_id, user_id, taken_at, notes, photo_url, created_at)
		SELECT $1, m.id, $3, $4, $5, $6, $7
		FROM medications m
		WHERE m.id = $2 AND m.user_id = $3
		RETURNING id, medication_id, user_id, taken_at, notes, photo_url, created_at
	`, uuid.NewString(), in.MedicationID, userID, takenAt, in.Notes, in.PhotoURL, now)

	l, err := scanDoseLog(row)
	if err != nil {
		return medications.DoseLog{}, mapError(err)
	}
	return l, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDoseLog(sc scanner) (medications.DoseLog, error) {
	var (
		l        medications.DoseLog
		takenAt  time.Time
		notes    sql.NullString
		photoURL sql.NullString
	)
	if err := sc.Scan(&l.ID, &l.MedicationID, &l.UserID, &takenAt, &notes, &photoURL, &l.CreatedAt); err != nil {
		return medications.DoseLog{}, err
	}
	l.TakenAt = medications.FormatTakenAt(takenAt)
	if notes.Valid {
		l.Notes = &notes.String
	}
	if photoURL.Valid {
		l.PhotoURL = &photoURL.String
	}
	return l, nil
}
