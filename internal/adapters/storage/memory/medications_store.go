package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"medication-adherence/internal/domain/medications"

	"github.com/google/uuid"
)

// MedicationsStore implementa medications.Store en memoria (dev/tests).
// Reproduce las restricciones del backend: dueño, nombre único por usuario
// y FK de logs hacia medicaciones.
type MedicationsStore struct {
	mu   sync.RWMutex
	meds map[string]medications.Medication
	logs map[string][]medications.DoseLog // por medication id

	now func() time.Time
}

func NewMedicationsStore() *MedicationsStore {
	return &MedicationsStore{
		meds: make(map[string]medications.Medication),
		logs: make(map[string][]medications.DoseLog),
		now:  time.Now,
	}
}

func (s *MedicationsStore) ListMedications(ctx context.Context, userID string) ([]medications.MedicationWithLogs, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]medications.MedicationWithLogs, 0)
	for _, m := range s.meds {
		if m.UserID != userID {
			continue
		}
		out = append(out, medications.MedicationWithLogs{
			Medication: m,
			Logs:       append([]medications.DoseLog{}, s.logs[m.ID]...),
		})
	}

	// más nuevas primero
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MedicationsStore) InsertMedication(ctx context.Context, userID string, in medications.NewMedication) (medications.Medication, error) {
	if strings.TrimSpace(userID) == "" {
		return medications.Medication{}, medications.ErrUnauthenticated
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Dosage) == "" || !in.Frequency.Valid() {
		return medications.Medication{}, fmt.Errorf("%w: name, dosage and frequency are required", medications.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nameTaken(userID, in.Name, "") {
		return medications.Medication{}, medications.ErrConflict
	}

	now := s.now().UTC()
	m := medications.Medication{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      in.Name,
		Dosage:    in.Dosage,
		Frequency: in.Frequency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.meds[m.ID] = m
	return m, nil
}

func (s *MedicationsStore) UpdateMedication(ctx context.Context, id, userID string, fields medications.MedicationUpdate) (medications.Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meds[id]
	if !ok || m.UserID != userID {
		return medications.Medication{}, medications.ErrNotFound
	}

	if fields.Name != nil {
		if s.nameTaken(userID, *fields.Name, id) {
			return medications.Medication{}, medications.ErrConflict
		}
		m.Name = *fields.Name
	}
	if fields.Dosage != nil {
		m.Dosage = *fields.Dosage
	}
	if fields.Frequency != nil {
		m.Frequency = *fields.Frequency
	}
	m.UpdatedAt = s.now().UTC()

	s.meds[id] = m
	return m, nil
}

func (s *MedicationsStore) DeleteMedication(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meds[id]
	if !ok || m.UserID != userID {
		return medications.ErrNotFound
	}
	if len(s.logs[id]) > 0 {
		return medications.ErrReferenced
	}
	delete(s.meds, id)
	return nil
}

func (s *MedicationsStore) InsertDoseLog(ctx context.Context, userID string, in medications.NewDoseLog) (medications.DoseLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meds[in.MedicationID]
	if !ok || m.UserID != userID {
		return medications.DoseLog{}, medications.ErrNotFound
	}

	now := s.now().UTC()
	takenAt := now
	if in.TakenAt != nil {
		takenAt = *in.TakenAt
	}

	l := medications.DoseLog{
		ID:           uuid.NewString(),
		MedicationID: m.ID,
		UserID:       userID,
		TakenAt:      medications.FormatTakenAt(takenAt),
		Notes:        in.Notes,
		PhotoURL:     in.PhotoURL,
		CreatedAt:    now,
	}
	s.logs[m.ID] = append(s.logs[m.ID], l)
	return l, nil
}

func (s *MedicationsStore) nameTaken(userID, name, exceptID string) bool {
	for _, m := range s.meds {
		if m.UserID == userID && m.ID != exceptID && strings.EqualFold(m.Name, name) {
			return true
		}
	}
	return false
}
