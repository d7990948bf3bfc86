package medications

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"medication-adherence/internal/platform/querycache"
)

const (
	MaxNameLength   = 100
	MaxDosageLength = 50
)

// Cache es la lista de medicaciones (con tomas) por usuario.
type Cache = querycache.Cache[[]MedicationWithLogs]

// NewCache arma el cache con el Store como fuente autoritativa.
func NewCache(store Store) *Cache {
	return querycache.New(func(ctx context.Context, userID string) ([]MedicationWithLogs, error) {
		return store.ListMedications(ctx, userID)
	})
}

type Service struct {
	store Store
	cache *Cache
}

func NewService(store Store, cache *Cache) *Service {
	if cache == nil {
		cache = NewCache(store)
	}
	return &Service{
		store: store,
		cache: cache,
	}
}

func (s *Service) Cache() *Cache {
	return s.cache
}

// List devuelve la lista cacheada; si no hay, la trae del backend.
func (s *Service) List(ctx context.Context, userID string) ([]MedicationWithLogs, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	return s.cache.Load(ctx, userID)
}

// Fetch trae la lista de userID directo del Store, sin leer ni poblar el cache.
// Es la lectura que hace otro usuario (un cuidador) en nombre del paciente:
// lo que devuelve depende de las credenciales del que pregunta y no puede
// quedar como el estado del paciente.
func (s *Service) Fetch(ctx context.Context, userID string) ([]MedicationWithLogs, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	return s.store.ListMedications(ctx, userID)
}

// Get busca una medicación del usuario dentro de su lista.
func (s *Service) Get(ctx context.Context, userID, id string) (MedicationWithLogs, error) {
	items, err := s.List(ctx, userID)
	if err != nil {
		return MedicationWithLogs{}, err
	}
	for _, m := range items {
		if m.ID == id {
			return m, nil
		}
	}
	return MedicationWithLogs{}, ErrNotFound
}

func (s *Service) Create(ctx context.Context, userID string, in NewMedication) (Medication, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Medication{}, ErrUnauthenticated
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Dosage = strings.TrimSpace(in.Dosage)
	if err := validateName(in.Name); err != nil {
		return Medication{}, err
	}
	if err := validateDosage(in.Dosage); err != nil {
		return Medication{}, err
	}
	if !in.Frequency.Valid() {
		return Medication{}, &ValidationError{Field: "frequency", Reason: "unknown frequency"}
	}

	m, err := s.store.InsertMedication(ctx, userID, in)
	if err != nil {
		return Medication{}, fmt.Errorf("create medication: %w", err)
	}
	s.cache.Invalidate(userID)
	return m, nil
}

func (s *Service) Update(ctx context.Context, userID, id string, fields MedicationUpdate) (Medication, error) {
	userID = strings.TrimSpace(userID)
	id = strings.TrimSpace(id)
	if userID == "" {
		return Medication{}, ErrUnauthenticated
	}
	if id == "" {
		return Medication{}, &ValidationError{Field: "id", Reason: "required"}
	}
	if fields.Empty() {
		return Medication{}, &ValidationError{Field: "body", Reason: "nothing to update"}
	}

	if fields.Name != nil {
		v := strings.TrimSpace(*fields.Name)
		if err := validateName(v); err != nil {
			return Medication{}, err
		}
		fields.Name = &v
	}
	if fields.Dosage != nil {
		v := strings.TrimSpace(*fields.Dosage)
		if err := validateDosage(v); err != nil {
			return Medication{}, err
		}
		fields.Dosage = &v
	}
	if fields.Frequency != nil && !fields.Frequency.Valid() {
		return Medication{}, &ValidationError{Field: "frequency", Reason: "unknown frequency"}
	}

	m, err := s.store.UpdateMedication(ctx, id, userID, fields)
	if err != nil {
		return Medication{}, fmt.Errorf("update medication: %w", err)
	}
	s.cache.Invalidate(userID)
	return m, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	userID = strings.TrimSpace(userID)
	id = strings.TrimSpace(id)
	if userID == "" {
		return ErrUnauthenticated
	}
	if id == "" {
		return &ValidationError{Field: "id", Reason: "required"}
	}

	if err := s.store.DeleteMedication(ctx, id, userID); err != nil {
		return fmt.Errorf("delete medication: %w", err)
	}
	s.cache.Invalidate(userID)
	return nil
}

func validateName(v string) error {
	if v == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if utf8.RuneCountInString(v) > MaxNameLength {
		return &ValidationError{Field: "name", Reason: fmt.Sprintf("must be at most %d characters", MaxNameLength)}
	}
	return nil
}

func validateDosage(v string) error {
	if v == "" {
		return &ValidationError{Field: "dosage", Reason: "required"}
	}
	if utf8.RuneCountInString(v) > MaxDosageLength {
		return &ValidationError{Field: "dosage", Reason: fmt.Sprintf("must be at most %d characters", MaxDosageLength)}
	}
	return nil
}
