package medications

import (
	"strings"
	"time"
)

// Frequency es la categoría de frecuencia de toma.
// @Enum once_daily, twice_daily, three_times_daily, four_times_daily, as_needed, weekly
type Frequency string

const (
	FrequencyOnceDaily       Frequency = "once_daily"
	FrequencyTwiceDaily      Frequency = "twice_daily"
	FrequencyThreeTimesDaily Frequency = "three_times_daily"
	FrequencyFourTimesDaily  Frequency = "four_times_daily"
	FrequencyAsNeeded        Frequency = "as_needed"
	FrequencyWeekly          Frequency = "weekly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOnceDaily,
		FrequencyTwiceDaily,
		FrequencyThreeTimesDaily,
		FrequencyFourTimesDaily,
		FrequencyAsNeeded,
		FrequencyWeekly:
		return true
	}
	return false
}

// ProvisionalIDPrefix marca los logs optimistas que todavía no existen en el backend.
const ProvisionalIDPrefix = "temp-"

// Medication representa una medicación registrada por su dueño.
type Medication struct {
	ID     string
	UserID string

	Name      string
	Dosage    string // texto libre: "100mg", "2 comprimidos"
	Frequency Frequency

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DoseLog es el registro inmutable de una toma.
type DoseLog struct {
	ID           string
	MedicationID string
	UserID       string

	// TakenAt se guarda tal como lo entrega el backend (ISO-8601).
	// Puede venir mal formado; quien lo lea usa TakenTime.
	TakenAt string

	Notes    *string
	PhotoURL *string

	CreatedAt time.Time
}

func (l DoseLog) IsProvisional() bool {
	return strings.HasPrefix(l.ID, ProvisionalIDPrefix)
}

// MedicationWithLogs es la unidad que se cachea y se muestra.
type MedicationWithLogs struct {
	Medication
	Logs []DoseLog
}

// NewMedication son los datos de alta de una medicación.
type NewMedication struct {
	Name      string
	Dosage    string
	Frequency Frequency
}

// MedicationUpdate usa punteros para PATCH: nil = no tocar.
type MedicationUpdate struct {
	Name      *string
	Dosage    *string
	Frequency *Frequency
}

func (u MedicationUpdate) Empty() bool {
	return u.Name == nil && u.Dosage == nil && u.Frequency == nil
}

// NewDoseLog son los datos para registrar una toma.
type NewDoseLog struct {
	MedicationID string
	TakenAt      *time.Time // nil => ahora
	Notes        *string
	PhotoURL     *string
}

// FormatTakenAt es el formato con el que se escriben los timestamps de toma.
func FormatTakenAt(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
