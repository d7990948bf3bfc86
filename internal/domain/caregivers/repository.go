package caregivers

import (
	"context"
	"errors"
)

// ErrGrantNotFound lo devuelven los repos cuando no existe el grant.
var ErrGrantNotFound = errors.New("grant not found")

type Repository interface {
	Create(ctx context.Context, g Grant) error
	Update(ctx context.Context, g Grant) error
	GetByID(ctx context.Context, id string) (Grant, error)
	ListByPatient(ctx context.Context, patientUserID string) ([]Grant, error)
	ListByCaretaker(ctx context.Context, caretakerUserID string) ([]Grant, error)
	GetActiveGrant(ctx context.Context, patientUserID, caretakerUserID string) (Grant, error)
}
