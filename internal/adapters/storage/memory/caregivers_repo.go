package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"medication-adherence/internal/domain/caregivers"
)

type grantRepo struct {
	mu   sync.RWMutex
	byID map[string]caregivers.Grant
}

func NewCaregiversRepo() caregivers.Repository {
	return &grantRepo{
		byID: make(map[string]caregivers.Grant),
	}
}

func (r *grantRepo) Create(ctx context.Context, g caregivers.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g.ID == "" {
		return errors.New("grant id required")
	}
	if _, exists := r.byID[g.ID]; exists {
		return errors.New("grant already exists")
	}
	r.byID[g.ID] = cloneGrant(g)
	return nil
}

func (r *grantRepo) Update(ctx context.Context, g caregivers.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g.ID == "" {
		return errors.New("grant id required")
	}
	if _, exists := r.byID[g.ID]; !exists {
		return caregivers.ErrGrantNotFound
	}
	r.byID[g.ID] = cloneGrant(g)
	return nil
}

func (r *grantRepo) GetByID(ctx context.Context, id string) (caregivers.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.byID[id]
	if !ok {
		return caregivers.Grant{}, caregivers.ErrGrantNotFound
	}
	return cloneGrant(g), nil
}

func (r *grantRepo) ListByPatient(ctx context.Context, patientUserID string) ([]caregivers.Grant, error) {
	return r.list(func(g caregivers.Grant) bool { return g.PatientUserID == patientUserID }), nil
}

func (r *grantRepo) ListByCaretaker(ctx context.Context, caretakerUserID string) ([]caregivers.Grant, error) {
	return r.list(func(g caregivers.Grant) bool { return g.CaretakerUserID == caretakerUserID }), nil
}

// Si por data sucia existieran múltiples grants activos,
// devolvemos el más reciente por UpdatedAt (y en empate, por CreatedAt).
func (r *grantRepo) GetActiveGrant(ctx context.Context, patientUserID, caretakerUserID string) (caregivers.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var winner caregivers.Grant
	has := false

	for _, g := range r.byID {
		if g.PatientUserID != patientUserID || g.CaretakerUserID != caretakerUserID {
			continue
		}
		if g.Status != caregivers.StatusActive {
			continue
		}

		switch {
		case !has:
			winner, has = g, true
		case g.UpdatedAt.After(winner.UpdatedAt):
			winner = g
		case g.UpdatedAt.Equal(winner.UpdatedAt) && g.CreatedAt.After(winner.CreatedAt):
			winner = g
		}
	}

	if !has {
		return caregivers.Grant{}, caregivers.ErrGrantNotFound
	}
	return cloneGrant(winner), nil
}

// list devuelve los más recientes primero, como el repo de Postgres.
func (r *grantRepo) list(match func(caregivers.Grant) bool) []caregivers.Grant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]caregivers.Grant, 0)
	for _, g := range r.byID {
		if match(g) {
			out = append(out, cloneGrant(g))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

func cloneGrant(g caregivers.Grant) caregivers.Grant {
	g.Scopes = append([]caregivers.Scope(nil), g.Scopes...)
	return g
}
