package adherence

import (
	"time"

	"medication-adherence/internal/domain/medications"
)

// TodayMedication es una medicación anotada con si ya se tomó hoy.
type TodayMedication struct {
	medications.MedicationWithLogs
	TakenToday bool
}

// Today anota cada medicación con TakenToday usando el mismo predicado de fecha que Compute.
func Today(meds []medications.MedicationWithLogs, asOf time.Time) []TodayMedication {
	out := make([]TodayMedication, 0, len(meds))
	for _, m := range meds {
		out = append(out, TodayMedication{
			MedicationWithLogs: m,
			TakenToday:         TakenOn(m, asOf),
		})
	}
	return out
}

// Progress es el "completed/total" del día.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

func TodayProgress(items []TodayMedication) Progress {
	p := Progress{Total: len(items)}
	for _, it := range items {
		if it.TakenToday {
			p.Completed++
		}
	}
	return p
}

// Summary resume una medicación para la vista del cuidador.
type Summary struct {
	DosesLogged int
	LastTakenAt *time.Time
}

// Summarize busca la toma más reciente por timestamp; el orden de Logs no importa.
func Summarize(m medications.MedicationWithLogs) Summary {
	s := Summary{DosesLogged: len(m.Logs)}
	for _, l := range m.Logs {
		t, ok := ParseTakenAt(l.TakenAt, time.UTC)
		if !ok {
			continue
		}
		if s.LastTakenAt == nil || t.After(*s.LastTakenAt) {
			tt := t
			s.LastTakenAt = &tt
		}
	}
	return s
}
