package adherence

// AlertKind identifica cada alerta del dashboard del cuidador.
type AlertKind string

const (
	AlertLowAdherence AlertKind = "low_adherence"
	AlertMissedToday  AlertKind = "missed_today"
	AlertOnTrack      AlertKind = "on_track"
)

// LowAdherenceThreshold es el porcentaje por debajo del cual se alerta.
const LowAdherenceThreshold = 80

type Alert struct {
	Kind    AlertKind `json:"kind"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
}

func Alerts(s Stats) []Alert {
	out := make([]Alert, 0, 2)
	if s.AdherencePercentage < LowAdherenceThreshold {
		out = append(out, Alert{
			Kind:    AlertLowAdherence,
			Title:   "Low Adherence",
			Message: "Adherence below 80%",
		})
	}
	if s.CurrentStreak == 0 {
		out = append(out, Alert{
			Kind:    AlertMissedToday,
			Title:   "Missed Today",
			Message: "No medications taken today",
		})
	}
	if s.AdherencePercentage >= LowAdherenceThreshold && s.CurrentStreak > 0 {
		out = append(out, Alert{
			Kind:    AlertOnTrack,
			Title:   "Great Progress!",
			Message: "Maintaining good adherence",
		})
	}
	return out
}
