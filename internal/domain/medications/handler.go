package medications

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"medication-adherence/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/medications", listMedicationsHandler(svc))
	r.Post("/medications", createMedicationHandler(svc))
	r.Patch("/medications/{medicationID}", updateMedicationHandler(svc))
	r.Delete("/medications/{medicationID}", deleteMedicationHandler(svc))
}

type createMedicationRequest struct {
	Name      string    `json:"name"`
	Dosage    string    `json:"dosage"`
	Frequency Frequency `json:"frequency"`
}

type updateMedicationRequest struct {
	// Punteros para PATCH real: nil = no tocar.
	Name      *string    `json:"name"`
	Dosage    *string    `json:"dosage"`
	Frequency *Frequency `json:"frequency"`
}

type MedicationResponse struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Name      string            `json:"name"`
	Dosage    string            `json:"dosage"`
	Frequency Frequency         `json:"frequency"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Logs      []DoseLogResponse `json:"medication_logs"`
}

type DoseLogResponse struct {
	ID           string    `json:"id"`
	MedicationID string    `json:"medication_id"`
	UserID       string    `json:"user_id"`
	TakenAt      string    `json:"taken_at"`
	Notes        *string   `json:"notes,omitempty"`
	PhotoURL     *string   `json:"photo_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Provisional  bool      `json:"provisional,omitempty"`
}

// listMedicationsHandler godoc
// @Summary Listar medicaciones
// @Description Devuelve las medicaciones del usuario autenticado con sus tomas registradas. Se sirve desde el cache por usuario; si está vacío, se consulta el backend.
// @Tags medications
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Success 200 {array} MedicationResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 503 {string} string "backend unavailable"
// @Router /medications [get]
func listMedicationsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.List(r.Context(), userID)
		if err != nil {
			WriteError(w, r, err)
			return
		}

		out := make([]MedicationResponse, 0, len(items))
		for _, m := range items {
			out = append(out, ToMedicationResponse(m))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// createMedicationHandler godoc
// @Summary Crear medicación
// @Description Registra una medicación. name 1-100 caracteres, dosage 1-50, frequency de la lista permitida.
// @Tags medications
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body createMedicationRequest true "Datos de la medicación"
// @Success 201 {object} MedicationResponse
// @Failure 400 {string} string "invalid json / validación"
// @Failure 401 {string} string "unauthorized"
// @Failure 409 {string} string "this record already exists"
// @Router /medications [post]
func createMedicationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createMedicationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		m, err := svc.Create(r.Context(), userID, NewMedication{
			Name:      req.Name,
			Dosage:    req.Dosage,
			Frequency: req.Frequency,
		})
		if err != nil {
			WriteError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, ToMedicationResponse(MedicationWithLogs{Medication: m}))
	}
}

// updateMedicationHandler godoc
// @Summary Actualizar medicación
// @Description Actualiza parcialmente una medicación propia. Una medicación ajena responde igual que una inexistente.
// @Tags medications
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param medicationID path string true "ID de la medicación"
// @Param payload body updateMedicationRequest true "Campos a modificar"
// @Success 200 {object} MedicationResponse
// @Failure 400 {string} string "invalid json / validación"
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "not found or access denied"
// @Router /medications/{medicationID} [patch]
func updateMedicationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req updateMedicationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		m, err := svc.Update(r.Context(), userID, chi.URLParam(r, "medicationID"), MedicationUpdate{
			Name:      req.Name,
			Dosage:    req.Dosage,
			Frequency: req.Frequency,
		})
		if err != nil {
			WriteError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, ToMedicationResponse(MedicationWithLogs{Medication: m}))
	}
}

// deleteMedicationHandler godoc
// @Summary Eliminar medicación
// @Description Elimina una medicación propia. Si tiene tomas registradas responde 409.
// @Tags medications
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param medicationID path string true "ID de la medicación"
// @Success 204
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "not found or access denied"
// @Failure 409 {string} string "record is referenced by other data"
// @Router /medications/{medicationID} [delete]
func deleteMedicationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := svc.Delete(r.Context(), userID, chi.URLParam(r, "medicationID")); err != nil {
			WriteError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ToMedicationResponse(m MedicationWithLogs) MedicationResponse {
	logs := make([]DoseLogResponse, 0, len(m.Logs))
	for _, l := range m.Logs {
		logs = append(logs, ToDoseLogResponse(l))
	}
	return MedicationResponse{
		ID:        m.ID,
		UserID:    m.UserID,
		Name:      m.Name,
		Dosage:    m.Dosage,
		Frequency: m.Frequency,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		Logs:      logs,
	}
}

func ToDoseLogResponse(l DoseLog) DoseLogResponse {
	return DoseLogResponse{
		ID:           l.ID,
		MedicationID: l.MedicationID,
		UserID:       l.UserID,
		TakenAt:      l.TakenAt,
		Notes:        l.Notes,
		PhotoURL:     l.PhotoURL,
		CreatedAt:    l.CreatedAt,
		Provisional:  l.IsProvisional(),
	}
}

// WriteError traduce los errores del dominio a HTTP. Lo usan también
// los handlers de doses y caregivers.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		http.Error(w, verr.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, ErrInvalidInput.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrUnauthenticated):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, ErrNotFound):
		http.Error(w, ErrNotFound.Error(), http.StatusNotFound)
	case errors.Is(err, ErrConflict):
		http.Error(w, ErrConflict.Error(), http.StatusConflict)
	case errors.Is(err, ErrReferenced):
		http.Error(w, ErrReferenced.Error(), http.StatusConflict)
	case IsTransient(err):
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("backend unavailable")
		http.Error(w, "backend unavailable", http.StatusServiceUnavailable)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("unhandled error")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// writeJSON está duplicado en los handlers de cada módulo.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
