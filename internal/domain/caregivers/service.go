package caregivers

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrBadState     = errors.New("invalid state")
)

// DefaultScopes es lo que ve un cuidador si el paciente no elige: la lista de
// medicaciones con sus tomas y la adherencia de 30 días.
var DefaultScopes = []Scope{ScopeMedicationsRead, ScopeAdherenceRead}

// invited -> active -> revoked; revoked es final.
var transitions = map[Status][]Status{
	StatusInvited: {StatusActive, StatusRevoked},
	StatusActive:  {StatusRevoked},
}

func canMove(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

type InviteInput struct {
	PatientUserID   string
	CaretakerUserID string
	Scopes          []Scope
}

// Invite crea la invitación del paciente. Si el cuidador ya tiene una
// invitación o acceso vigente se reutiliza ese grant con los scopes nuevos;
// tras una revocación se empieza de cero.
func (s *Service) Invite(ctx context.Context, in InviteInput) (Grant, error) {
	patientID := strings.TrimSpace(in.PatientUserID)
	caretakerID := strings.TrimSpace(in.CaretakerUserID)
	if patientID == "" || caretakerID == "" || patientID == caretakerID {
		return Grant{}, ErrInvalidInput
	}

	scopes, err := parseScopes(in.Scopes)
	if err != nil {
		return Grant{}, err
	}

	pair, err := s.pairGrants(ctx, patientID, caretakerID)
	if err != nil {
		return Grant{}, err
	}

	now := s.now()
	if live, ok := latestLive(pair); ok {
		s.retireOthers(ctx, pair, live.ID, now)

		live.Scopes = scopes
		live.UpdatedAt = now
		if err := s.repo.Update(ctx, live); err != nil {
			return Grant{}, err
		}
		return live, nil
	}

	g := Grant{
		ID:              uuid.NewString(),
		PatientUserID:   patientID,
		CaretakerUserID: caretakerID,
		Scopes:          scopes,
		Status:          StatusInvited,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// Accept lo llama el cuidador invitado. Aceptar dos veces no es error.
func (s *Service) Accept(ctx context.Context, grantID, caretakerUserID string) (Grant, error) {
	g, err := s.load(ctx, grantID, caretakerUserID)
	if err != nil {
		return Grant{}, err
	}
	if g.CaretakerUserID != strings.TrimSpace(caretakerUserID) {
		return Grant{}, ErrForbidden
	}
	if g.Status == StatusActive {
		return g, nil
	}
	if !canMove(g.Status, StatusActive) {
		return Grant{}, ErrBadState
	}

	now := s.now()
	// un solo grant vivo por par paciente/cuidador
	if pair, err := s.pairGrants(ctx, g.PatientUserID, g.CaretakerUserID); err == nil {
		s.retireOthers(ctx, pair, g.ID, now)
	}

	g.Status = StatusActive
	g.UpdatedAt = now
	if err := s.repo.Update(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// Revoke lo llama el paciente; el cuidador pierde el acceso en la siguiente
// lectura del dashboard.
func (s *Service) Revoke(ctx context.Context, grantID, patientUserID string) (Grant, error) {
	g, err := s.load(ctx, grantID, patientUserID)
	if err != nil {
		return Grant{}, err
	}
	if g.PatientUserID != strings.TrimSpace(patientUserID) {
		return Grant{}, ErrForbidden
	}
	if g.Status == StatusRevoked {
		return g, nil
	}

	markRevoked(&g, s.now())
	if err := s.repo.Update(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientUserID string) ([]Grant, error) {
	patientUserID = strings.TrimSpace(patientUserID)
	if patientUserID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByPatient(ctx, patientUserID)
}

func (s *Service) ListByCaretaker(ctx context.Context, caretakerUserID string) ([]Grant, error) {
	caretakerUserID = strings.TrimSpace(caretakerUserID)
	if caretakerUserID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByCaretaker(ctx, caretakerUserID)
}

// Authorize decide si viewer puede leer los datos del paciente con scope.
// El paciente siempre puede; un cuidador necesita un grant activo con scope.
func (s *Service) Authorize(ctx context.Context, patientUserID, viewerUserID string, scope Scope) error {
	patientUserID = strings.TrimSpace(patientUserID)
	viewerUserID = strings.TrimSpace(viewerUserID)
	switch {
	case patientUserID == "" || viewerUserID == "":
		return ErrInvalidInput
	case patientUserID == viewerUserID:
		return nil
	}

	g, err := s.repo.GetActiveGrant(ctx, patientUserID, viewerUserID)
	if err != nil || !HasScope(g, scope) {
		return ErrForbidden
	}
	return nil
}

func HasScope(g Grant, scope Scope) bool {
	return slices.Contains(g.Scopes, scope)
}

func (s *Service) load(ctx context.Context, grantID, actorID string) (Grant, error) {
	grantID = strings.TrimSpace(grantID)
	if grantID == "" || strings.TrimSpace(actorID) == "" {
		return Grant{}, ErrInvalidInput
	}
	g, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		return Grant{}, ErrNotFound
	}
	return g, nil
}

// pairGrants devuelve todos los grants, de cualquier estado, entre los dos.
func (s *Service) pairGrants(ctx context.Context, patientID, caretakerID string) ([]Grant, error) {
	items, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(items, func(g Grant) bool {
		return g.CaretakerUserID != caretakerID
	}), nil
}

// latestLive elige el grant no revocado modificado más recientemente.
func latestLive(pair []Grant) (Grant, bool) {
	var out Grant
	found := false
	for _, g := range pair {
		if g.Status == StatusRevoked {
			continue
		}
		if !found || g.UpdatedAt.After(out.UpdatedAt) {
			out, found = g, true
		}
	}
	return out, found
}

// retireOthers revoca los grants vivos del par salvo keepID. Best-effort: un
// duplicado que sobreviva no da más acceso que el grant que se conserva.
func (s *Service) retireOthers(ctx context.Context, pair []Grant, keepID string, now time.Time) {
	for _, g := range pair {
		if g.ID == keepID || !canMove(g.Status, StatusRevoked) {
			continue
		}
		markRevoked(&g, now)
		_ = s.repo.Update(ctx, g)
	}
}

func markRevoked(g *Grant, now time.Time) {
	g.Status = StatusRevoked
	g.UpdatedAt = now
	g.RevokedAt = &now
}

// parseScopes: vacío => DefaultScopes. Un scope desconocido invalida todo.
func parseScopes(in []Scope) ([]Scope, error) {
	if len(in) == 0 {
		return slices.Clone(DefaultScopes), nil
	}

	out := make([]Scope, 0, len(in))
	for _, raw := range in {
		sc := Scope(strings.ToLower(strings.TrimSpace(string(raw))))
		switch sc {
		case "":
			continue
		case ScopeMedicationsRead, ScopeAdherenceRead:
		default:
			return nil, ErrInvalidInput
		}
		if !slices.Contains(out, sc) {
			out = append(out, sc)
		}
	}
	if len(out) == 0 {
		return nil, ErrInvalidInput
	}
	return out, nil
}
