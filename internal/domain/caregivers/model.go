package caregivers

import "time"

type Scope string

const (
	ScopeMedicationsRead Scope = "medications:read"
	ScopeAdherenceRead   Scope = "adherence:read"
)

type Status string

const (
	StatusInvited Status = "invited"
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// Grant es el permiso de un paciente para que un cuidador vea sus datos.
type Grant struct {
	ID string

	PatientUserID   string // quien comparte
	CaretakerUserID string // quien mira

	Scopes []Scope
	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}
