package doses

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"medication-adherence/internal/domain/adherence"
	"medication-adherence/internal/domain/medications"
	"medication-adherence/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, coord *Coordinator, medSvc *medications.Service, photos PhotoPresigner) {
	r.Post("/medications/{medicationID}/doses", markTakenHandler(coord))
	r.Post("/doses/photo-uploads", photoUploadHandler(photos))

	r.Get("/me/today", todayHandler(medSvc))
	r.Get("/me/adherence", adherenceHandler(medSvc))
}

type markTakenRequest struct {
	TakenAt  *string `json:"taken_at"` // RFC3339 opcional; vacío = ahora
	Notes    *string `json:"notes"`
	PhotoURL *string `json:"photo_url"`
}

type markTakenResponse struct {
	Status      Status                           `json:"status"`
	Log         medications.DoseLogResponse      `json:"log"`
	Medications []medications.MedicationResponse `json:"medications,omitempty"`
}

type todayMedicationResponse struct {
	medications.MedicationResponse
	TakenToday bool `json:"taken_today"`
}

type todayResponse struct {
	Date        string                    `json:"date"`
	Medications []todayMedicationResponse `json:"medications"`
	Progress    adherence.Progress        `json:"progress"`
}

type AdherenceResponse struct {
	adherence.Stats
	MissedDays int               `json:"missed_days"`
	Alerts     []adherence.Alert `json:"alerts"`
	AsOf       string            `json:"as_of"`
}

type photoUploadRequest struct {
	ContentType string `json:"content_type"`
}

type photoUploadResponse struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"upload_url"`
	PhotoURL  string    `json:"photo_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// markTakenHandler godoc
// @Summary Registrar toma
// @Description Marca una dosis como tomada. La lista cacheada muestra la toma provisional (id `temp-...`) mientras la escritura está en curso; si falla se restaura el estado anterior. Una medicación ajena responde igual que una inexistente.
// @Tags doses
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param medicationID path string true "ID de la medicación"
// @Param payload body markTakenRequest false "taken_at RFC3339 (opcional), notas y foto"
// @Success 201 {object} markTakenResponse
// @Failure 400 {string} string "invalid json / taken_at inválido"
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "not found or access denied"
// @Failure 503 {string} string "backend unavailable"
// @Router /medications/{medicationID}/doses [post]
func markTakenHandler(coord *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req markTakenRequest
		// body opcional
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		in := medications.NewDoseLog{
			MedicationID: chi.URLParam(r, "medicationID"),
			Notes:        trimmedOrNil(req.Notes),
			PhotoURL:     trimmedOrNil(req.PhotoURL),
		}
		if req.TakenAt != nil && strings.TrimSpace(*req.TakenAt) != "" {
			t, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.TakenAt))
			if err != nil {
				http.Error(w, "taken_at must be RFC3339", http.StatusBadRequest)
				return
			}
			in.TakenAt = &t
		}

		res, err := coord.MarkTaken(r.Context(), userID, in)
		if err != nil {
			medications.WriteError(w, r, err)
			return
		}

		out := markTakenResponse{
			Status: res.Status,
			Log:    medications.ToDoseLogResponse(res.Log),
		}
		for _, m := range res.Medications {
			out.Medications = append(out.Medications, medications.ToMedicationResponse(m))
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

// todayHandler godoc
// @Summary Medicaciones de hoy
// @Description Lista las medicaciones del usuario indicando si ya se tomaron hoy, más el progreso del día. `tz` define qué es "hoy" (IANA, por defecto UTC).
// @Tags doses
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param tz query string false "Zona horaria IANA, p.ej. America/Lima"
// @Success 200 {object} todayResponse
// @Failure 400 {string} string "invalid tz"
// @Failure 401 {string} string "unauthorized"
// @Router /me/today [get]
func todayHandler(medSvc *medications.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		asOf, err := AsOf(r, time.Now)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		items, err := medSvc.List(r.Context(), userID)
		if err != nil {
			medications.WriteError(w, r, err)
			return
		}

		today := adherence.Today(items, asOf)
		out := todayResponse{
			Date:        asOf.Format("2006-01-02"),
			Medications: make([]todayMedicationResponse, 0, len(today)),
			Progress:    adherence.TodayProgress(today),
		}
		for _, it := range today {
			out.Medications = append(out.Medications, todayMedicationResponse{
				MedicationResponse: medications.ToMedicationResponse(it.MedicationWithLogs),
				TakenToday:         it.TakenToday,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// adherenceHandler godoc
// @Summary Estadísticas de adherencia
// @Description Calcula la adherencia de los últimos 30 días calendario (incluye hoy) y la racha actual, más las alertas derivadas.
// @Tags doses
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param tz query string false "Zona horaria IANA, p.ej. America/Lima"
// @Success 200 {object} AdherenceResponse
// @Failure 400 {string} string "invalid tz"
// @Failure 401 {string} string "unauthorized"
// @Router /me/adherence [get]
func adherenceHandler(medSvc *medications.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		asOf, err := AsOf(r, time.Now)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		items, err := medSvc.List(r.Context(), userID)
		if err != nil {
			medications.WriteError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, NewAdherenceResponse(items, asOf))
	}
}

// photoUploadHandler godoc
// @Summary URL para subir foto de una toma
// @Description Devuelve una URL prefirmada (PUT) para subir la foto. El `photo_url` devuelto se envía luego al registrar la toma.
// @Tags doses
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body photoUploadRequest true "content_type: image/jpeg, image/png, image/webp o image/heic"
// @Success 201 {object} photoUploadResponse
// @Failure 400 {string} string "unsupported content_type"
// @Failure 401 {string} string "unauthorized"
// @Failure 501 {string} string "photo uploads are not configured"
// @Router /doses/photo-uploads [post]
func photoUploadHandler(photos PhotoPresigner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if photos == nil {
			http.Error(w, ErrPhotosDisabled.Error(), http.StatusNotImplemented)
			return
		}

		var req photoUploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		ct := strings.ToLower(strings.TrimSpace(req.ContentType))
		if _, ok := PhotoExtension(ct); !ok {
			http.Error(w, "unsupported content_type", http.StatusBadRequest)
			return
		}

		up, err := photos.PresignUpload(r.Context(), userID, ct)
		if err != nil {
			if errors.Is(err, ErrPhotosDisabled) {
				http.Error(w, err.Error(), http.StatusNotImplemented)
				return
			}
			medications.WriteError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, photoUploadResponse{
			Key:       up.Key,
			UploadURL: up.UploadURL,
			PhotoURL:  up.PhotoURL,
			ExpiresAt: up.ExpiresAt,
		})
	}
}

// NewAdherenceResponse arma stats + alertas; también lo usa la vista del cuidador.
func NewAdherenceResponse(items []medications.MedicationWithLogs, asOf time.Time) AdherenceResponse {
	stats := adherence.Compute(items, asOf)
	return AdherenceResponse{
		Stats:      stats,
		MissedDays: stats.MissedDays(),
		Alerts:     adherence.Alerts(stats),
		AsOf:       asOf.Format("2006-01-02"),
	}
}

// AsOf resuelve "ahora" en la zona pedida por ?tz=.
func AsOf(r *http.Request, now func() time.Time) (time.Time, error) {
	tz := strings.TrimSpace(r.URL.Query().Get("tz"))
	if tz == "" {
		return now().UTC(), nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, errors.New("invalid tz")
	}
	return now().In(loc), nil
}

func trimmedOrNil(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
