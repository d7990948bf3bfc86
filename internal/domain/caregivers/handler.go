package caregivers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"medication-adherence/internal/domain/adherence"
	"medication-adherence/internal/domain/doses"
	"medication-adherence/internal/domain/medications"
	"medication-adherence/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, medSvc *medications.Service) {
	// Paciente: invitar y listar sus cuidadores
	r.Route("/me/caretakers", func(mr chi.Router) {
		mr.Post("/", inviteCaretakerHandler(svc))
		mr.Get("/", listMyCaretakersHandler(svc))
	})

	// Cuidador: ver sus invitaciones / pacientes
	r.Get("/me/patients", listMyPatientsHandler(svc))

	r.Route("/grants/{grantID}", func(gr chi.Router) {
		gr.Post("/accept", acceptGrantHandler(svc))
		gr.Post("/revoke", revokeGrantHandler(svc))
	})

	// Dashboard del cuidador
	r.Route("/patients/{patientID}", func(pr chi.Router) {
		pr.Get("/medications", patientMedicationsHandler(svc, medSvc))
		pr.Get("/adherence", patientAdherenceHandler(svc, medSvc))
	})
}

type inviteCaretakerRequest struct {
	CaretakerUserID string  `json:"caretaker_user_id"`
	Scopes          []Scope `json:"scopes"`
}

type grantResponse struct {
	ID              string     `json:"id"`
	PatientUserID   string     `json:"patient_user_id"`
	CaretakerUserID string     `json:"caretaker_user_id"`
	Scopes          []Scope    `json:"scopes"`
	Status          Status     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	RevokedAt       *time.Time `json:"revoked_at,omitempty"`
}

type patientMedicationResponse struct {
	medications.MedicationResponse
	TakenToday  bool       `json:"taken_today"`
	DosesLogged int        `json:"doses_logged"`
	LastTakenAt *time.Time `json:"last_taken_at,omitempty"`
}

// inviteCaretakerHandler godoc
// @Summary Invitar cuidador
// @Description El paciente autenticado invita a un cuidador. Sin scopes se otorgan `medications:read` y `adherence:read`. Reinvitar al mismo cuidador actualiza el grant existente.
// @Tags caregivers
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body inviteCaretakerRequest true "Cuidador y scopes"
// @Success 201 {object} grantResponse
// @Failure 400 {string} string "invalid json / scope desconocido"
// @Failure 401 {string} string "unauthorized"
// @Router /me/caretakers [post]
func inviteCaretakerHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req inviteCaretakerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.CaretakerUserID) == "" {
			http.Error(w, "caretaker_user_id required", http.StatusBadRequest)
			return
		}

		g, err := svc.Invite(r.Context(), InviteInput{
			PatientUserID:   userID,
			CaretakerUserID: req.CaretakerUserID,
			Scopes:          req.Scopes,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toGrantResponse(g))
	}
}

// listMyCaretakersHandler godoc
// @Summary Listar cuidadores del paciente
// @Tags caregivers
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Success 200 {array} grantResponse
// @Failure 401 {string} string "unauthorized"
// @Router /me/caretakers [get]
func listMyCaretakersHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByPatient(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toGrantResponses(items))
	}
}

// listMyPatientsHandler godoc
// @Summary Listar pacientes del cuidador
// @Description Lista los grants recibidos por el cuidador autenticado. `status` filtra por CSV (invited,active,revoked).
// @Tags caregivers
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param status query string false "invited,active,revoked"
// @Success 200 {array} grantResponse
// @Failure 401 {string} string "unauthorized"
// @Router /me/patients [get]
func listMyPatientsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		allowed := parseStatusFilter(r.URL.Query().Get("status"))

		items, err := svc.ListByCaretaker(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}

		if len(allowed) > 0 {
			filtered := make([]Grant, 0, len(items))
			for _, g := range items {
				if _, ok := allowed[g.Status]; ok {
					filtered = append(filtered, g)
				}
			}
			items = filtered
		}

		writeJSON(w, http.StatusOK, toGrantResponses(items))
	}
}

// acceptGrantHandler godoc
// @Summary Aceptar invitación
// @Tags caregivers
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param grantID path string true "ID del grant"
// @Success 200 {object} grantResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "not found"
// @Failure 409 {string} string "invalid state"
// @Router /grants/{grantID}/accept [post]
func acceptGrantHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		g, err := svc.Accept(r.Context(), chi.URLParam(r, "grantID"), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toGrantResponse(g))
	}
}

// revokeGrantHandler godoc
// @Summary Revocar grant
// @Description Solo el paciente que compartió puede revocar. El acceso del cuidador se corta inmediatamente.
// @Tags caregivers
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param grantID path string true "ID del grant"
// @Success 200 {object} grantResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "not found"
// @Router /grants/{grantID}/revoke [post]
func revokeGrantHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		g, err := svc.Revoke(r.Context(), chi.URLParam(r, "grantID"), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toGrantResponse(g))
	}
}

// patientMedicationsHandler godoc
// @Summary Medicaciones de un paciente
// @Description Vista del cuidador: medicaciones del paciente con la toma de hoy, cantidad de tomas y la última. Requiere grant activo con `medications:read`. Sin permiso responde 404, igual que un paciente inexistente.
// @Tags caregivers
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Param tz query string false "Zona horaria IANA, p.ej. America/Lima"
// @Success 200 {array} patientMedicationResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "not found or access denied"
// @Router /patients/{patientID}/medications [get]
func patientMedicationsHandler(svc *Service, medSvc *medications.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		patientID := chi.URLParam(r, "patientID")
		if err := svc.Authorize(r.Context(), patientID, userID, ScopeMedicationsRead); err != nil {
			http.Error(w, medications.ErrNotFound.Error(), http.StatusNotFound)
			return
		}

		asOf, err := doses.AsOf(r, time.Now)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		items, err := medSvc.Fetch(r.Context(), patientID)
		if err != nil {
			medications.WriteError(w, r, err)
			return
		}

		out := make([]patientMedicationResponse, 0, len(items))
		for _, it := range adherence.Today(items, asOf) {
			sum := adherence.Summarize(it.MedicationWithLogs)
			out = append(out, patientMedicationResponse{
				MedicationResponse: medications.ToMedicationResponse(it.MedicationWithLogs),
				TakenToday:         it.TakenToday,
				DosesLogged:        sum.DosesLogged,
				LastTakenAt:        sum.LastTakenAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// patientAdherenceHandler godoc
// @Summary Adherencia de un paciente
// @Description Vista del cuidador: estadísticas de 30 días y alertas. Requiere grant activo con `adherence:read`.
// @Tags caregivers
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Param tz query string false "Zona horaria IANA, p.ej. America/Lima"
// @Success 200 {object} doses.AdherenceResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "not found or access denied"
// @Router /patients/{patientID}/adherence [get]
func patientAdherenceHandler(svc *Service, medSvc *medications.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		patientID := chi.URLParam(r, "patientID")
		if err := svc.Authorize(r.Context(), patientID, userID, ScopeAdherenceRead); err != nil {
			http.Error(w, medications.ErrNotFound.Error(), http.StatusNotFound)
			return
		}

		asOf, err := doses.AsOf(r, time.Now)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		items, err := medSvc.Fetch(r.Context(), patientID)
		if err != nil {
			medications.WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, doses.NewAdherenceResponse(items, asOf))
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch err {
	case ErrInvalidInput:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case ErrForbidden:
		http.Error(w, "forbidden", http.StatusForbidden)
	case ErrNotFound:
		http.Error(w, "not found", http.StatusNotFound)
	case ErrBadState:
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toGrantResponse(g Grant) grantResponse {
	return grantResponse{
		ID:              g.ID,
		PatientUserID:   g.PatientUserID,
		CaretakerUserID: g.CaretakerUserID,
		Scopes:          g.Scopes,
		Status:          g.Status,
		CreatedAt:       g.CreatedAt,
		UpdatedAt:       g.UpdatedAt,
		RevokedAt:       g.RevokedAt,
	}
}

func toGrantResponses(items []Grant) []grantResponse {
	out := make([]grantResponse, 0, len(items))
	for _, g := range items {
		out = append(out, toGrantResponse(g))
	}
	return out
}

func parseStatusFilter(raw string) map[Status]struct{} {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := map[Status]struct{}{}
	for _, p := range strings.Split(raw, ",") {
		s := Status(strings.TrimSpace(p))
		if s == "" {
			continue
		}
		out[s] = struct{}{}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
