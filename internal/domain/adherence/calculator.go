// Package adherence calcula estadísticas de adherencia a partir de un snapshot
// de medicaciones con sus tomas. Todo es puro: no hay I/O ni estado.
package adherence

import (
	"strings"
	"time"

	"medication-adherence/internal/domain/medications"
)

// WindowDays es el tamaño fijo de la ventana de adherencia.
const WindowDays = 30

// Stats es derivado; nunca se persiste.
type Stats struct {
	TotalDays           int `json:"total_days"`
	TakenDays           int `json:"taken_days"`
	AdherencePercentage int `json:"adherence_percentage"`
	CurrentStreak       int `json:"current_streak"`
}

// MissedDays es lo que el dashboard del cuidador muestra como "missed this month".
func (s Stats) MissedDays() int {
	return s.TotalDays - s.TakenDays
}

// Compute calcula la ventana de 30 días calendario que termina en asOf (inclusive).
// Los días se identifican por fecha calendario en la zona de asOf.
func Compute(meds []medications.MedicationWithLogs, asOf time.Time) Stats {
	if len(meds) == 0 {
		return Stats{}
	}

	loc := asOf.Location()
	taken := takenDates(meds, loc)
	today := dateOf(asOf, loc)

	takenDays := 0
	for i := 0; i < WindowDays; i++ {
		if _, ok := taken[today.addDays(-i, loc)]; ok {
			takenDays++
		}
	}

	streak := 0
	for i := 0; i < WindowDays; i++ {
		if _, ok := taken[today.addDays(-i, loc)]; !ok {
			break
		}
		streak++
	}

	return Stats{
		TotalDays:           WindowDays,
		TakenDays:           takenDays,
		AdherencePercentage: percentage(takenDays, WindowDays),
		CurrentStreak:       streak,
	}
}

// TakenOn indica si alguna toma de m cae en la fecha calendario de day.
func TakenOn(m medications.MedicationWithLogs, day time.Time) bool {
	loc := day.Location()
	want := dateOf(day, loc)
	for _, l := range m.Logs {
		t, ok := ParseTakenAt(l.TakenAt, loc)
		if ok && dateOf(t, loc) == want {
			return true
		}
	}
	return false
}

// ParseTakenAt interpreta un taken_at del backend. Un valor que no se puede
// leer devuelve ok=false; nunca falla.
func ParseTakenAt(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}

	// con zona explícita
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999Z07:00", // texto de Postgres
		"2006-01-02 15:04:05.999999999Z07",
		"2006-01-02T15:04:05.999999999Z07",
	} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}

	// sin zona => hora local del usuario
	for _, layout := range []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
	} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}

	// solo fecha => medianoche UTC
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// percentage redondea half-up sin pasar por float.
func percentage(part, total int) int {
	if total <= 0 {
		return 0
	}
	return (part*200 + total) / (2 * total)
}

type civilDate struct {
	year  int
	month time.Month
	day   int
}

func dateOf(t time.Time, loc *time.Location) civilDate {
	y, m, d := t.In(loc).Date()
	return civilDate{year: y, month: m, day: d}
}

// addDays usa mediodía para no tropezar con cambios de horario.
func (d civilDate) addDays(n int, loc *time.Location) civilDate {
	t := time.Date(d.year, d.month, d.day+n, 12, 0, 0, 0, loc)
	return dateOf(t, loc)
}

func takenDates(meds []medications.MedicationWithLogs, loc *time.Location) map[civilDate]struct{} {
	out := make(map[civilDate]struct{})
	for _, m := range meds {
		for _, l := range m.Logs {
			t, ok := ParseTakenAt(l.TakenAt, loc)
			if !ok {
				continue
			}
			out[dateOf(t, loc)] = struct{}{}
		}
	}
	return out
}
