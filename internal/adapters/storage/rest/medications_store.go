package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"medication-adherence/internal/domain/medications"
	"medication-adherence/internal/platform/httpclient"
	"medication-adherence/internal/ports/auth"
)

type Config struct {
	BaseURL string
	APIKey  string
	// ServiceKey, si está, se usa en lugar del token del usuario. Hace falta
	// para leer datos de un paciente desde la cuenta del cuidador. Los filtros
	// por user_id de este store siguen aplicando.
	ServiceKey string
	Timeout    time.Duration
	MaxRetries uint64
}

// MedicationsStore implementa medications.Store contra el servicio de datos
// hospedado (dialecto PostgREST: /rest/v1/<tabla>).
type MedicationsStore struct {
	http       *httpclient.Client
	apiKey     string
	serviceKey string
}

func NewMedicationsStore(cfg Config) (*MedicationsStore, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" || strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("rest store: base url and api key are required")
	}
	hc, err := httpclient.NewWithBaseURL(cfg.BaseURL, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	hc.MaxRetries = cfg.MaxRetries
	return &MedicationsStore{
		http:       hc,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		serviceKey: strings.TrimSpace(cfg.ServiceKey),
	}, nil
}

type medicationRow struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Name      string       `json:"name"`
	Dosage    string       `json:"dosage"`
	Frequency string       `json:"frequency"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Logs      []doseLogRow `json:"medication_logs,omitempty"`
}

type doseLogRow struct {
	ID           string    `json:"id"`
	MedicationID string    `json:"medication_id"`
	UserID       string    `json:"user_id"`
	TakenAt      string    `json:"taken_at"`
	Notes        *string   `json:"notes"`
	PhotoURL     *string   `json:"photo_url"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r medicationRow) toDomain() medications.Medication {
	return medications.Medication{
		ID:        r.ID,
		UserID:    r.UserID,
		Name:      r.Name,
		Dosage:    r.Dosage,
		Frequency: medications.Frequency(r.Frequency),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r doseLogRow) toDomain() medications.DoseLog {
	return medications.DoseLog{
		ID:           r.ID,
		MedicationID: r.MedicationID,
		UserID:       r.UserID,
		TakenAt:      r.TakenAt,
		Notes:        r.Notes,
		PhotoURL:     r.PhotoURL,
		CreatedAt:    r.CreatedAt,
	}
}

func (s *MedicationsStore) ListMedications(ctx context.Context, userID string) ([]medications.MedicationWithLogs, error) {
	q := url.Values{}
	q.Set("select", "*,medication_logs(*)")
	q.Set("user_id", "eq."+userID)
	q.Set("order", "created_at.desc")
	q.Set("medication_logs.order", "taken_at.asc")

	var rows []medicationRow
	if err := s.do(ctx, http.MethodGet, "/rest/v1/medications?"+q.Encode(), nil, &rows); err != nil {
		return nil, err
	}

	out := make([]medications.MedicationWithLogs, 0, len(rows))
	for _, r := range rows {
		logs := make([]medications.DoseLog, 0, len(r.Logs))
		for _, l := range r.Logs {
			logs = append(logs, l.toDomain())
		}
		out = append(out, medications.MedicationWithLogs{Medication: r.toDomain(), Logs: logs})
	}
	return out, nil
}

func (s *MedicationsStore) InsertMedication(ctx context.Context, userID string, in medications.NewMedication) (medications.Medication, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Dosage) == "" || !in.Frequency.Valid() {
		return medications.Medication{}, fmt.Errorf("%w: name, dosage and frequency are required", medications.ErrInvalidInput)
	}

	body := map[string]string{
		"user_id":   userID,
		"name":      in.Name,
		"dosage":    in.Dosage,
		"frequency": string(in.Frequency),
	}
	var rows []medicationRow
	if err := s.do(ctx, http.MethodPost, "/rest/v1/medications", body, &rows); err != nil {
		return medications.Medication{}, err
	}
	if len(rows) == 0 {
		return medications.Medication{}, fmt.Errorf("%w: insert returned no row", medications.ErrBackend)
	}
	return rows[0].toDomain(), nil
}

func (s *MedicationsStore) UpdateMedication(ctx context.Context, id, userID string, fields medications.MedicationUpdate) (medications.Medication, error) {
	body := map[string]string{"updated_at": time.Now().UTC().Format(time.RFC3339Nano)}
	if fields.Name != nil {
		body["name"] = *fields.Name
	}
	if fields.Dosage != nil {
		body["dosage"] = *fields.Dosage
	}
	if fields.Frequency != nil {
		body["frequency"] = string(*fields.Frequency)
	}

	var rows []medicationRow
	if err := s.do(ctx, http.MethodPatch, "/rest/v1/medications?"+ownerFilter(id, userID), body, &rows); err != nil {
		return medications.Medication{}, err
	}
	// filtro sin match => 0 filas, no error
	if len(rows) == 0 {
		return medications.Medication{}, medications.ErrNotFound
	}
	return rows[0].toDomain(), nil
}

func (s *MedicationsStore) DeleteMedication(ctx context.Context, id, userID string) error {
	var rows []medicationRow
	if err := s.do(ctx, http.MethodDelete, "/rest/v1/medications?"+ownerFilter(id, userID), nil, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return medications.ErrNotFound
	}
	return nil
}

// InsertDoseLog verifica primero que la medicación sea del usuario: con la
// service key no hay RLS que lo impida.
func (s *MedicationsStore) InsertDoseLog(ctx context.Context, userID string, in medications.NewDoseLog) (medications.DoseLog, error) {
	q := url.Values{}
	q.Set("select", "id")
	q.Set("id", "eq."+in.MedicationID)
	q.Set("user_id", "eq."+userID)

	var owned []struct {
		ID string `json:"id"`
	}
	if err := s.do(ctx, http.MethodGet, "/rest/v1/medications?"+q.Encode(), nil, &owned); err != nil {
		return medications.DoseLog{}, err
	}
	if len(owned) == 0 {
		return medications.DoseLog{}, medications.ErrNotFound
	}

	takenAt := time.Now()
	if in.TakenAt != nil {
		takenAt = *in.TakenAt
	}
	body := map[string]any{
		"medication_id": in.MedicationID,
		"user_id":       userID,
		"taken_at":      medications.FormatTakenAt(takenAt),
		"notes":         in.Notes,
		"photo_url":     in.PhotoURL,
	}

	var rows []doseLogRow
	if err := s.do(ctx, http.MethodPost, "/rest/v1/medication_logs", body, &rows); err != nil {
		return medications.DoseLog{}, err
	}
	if len(rows) == 0 {
		return medications.DoseLog{}, fmt.Errorf("%w: insert returned no row", medications.ErrBackend)
	}
	return rows[0].toDomain(), nil
}

func (s *MedicationsStore) do(ctx context.Context, method, path string, in, out any) error {
	headers := map[string]string{
		"apikey":        s.apiKey,
		"Authorization": "Bearer " + s.bearer(ctx),
		"Prefer":        "return=representation",
	}
	return mapError(s.http.DoJSON(ctx, method, path, headers, in, out))
}

func (s *MedicationsStore) bearer(ctx context.Context) string {
	if s.serviceKey != "" {
		return s.serviceKey
	}
	if tok, ok := auth.TokenFrom(ctx); ok {
		return tok
	}
	return s.apiKey
}

func ownerFilter(id, userID string) string {
	q := url.Values{}
	q.Set("id", "eq."+id)
	q.Set("user_id", "eq."+userID)
	return q.Encode()
}

// apiError es el cuerpo de error estándar de PostgREST.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var terr *httpclient.TransportError
	if errors.As(err, &terr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", medications.ErrNetwork, err)
	}

	var herr *httpclient.HTTPError
	if !errors.As(err, &herr) {
		return fmt.Errorf("%w: %w", medications.ErrBackend, err)
	}

	var body apiError
	_ = json.Unmarshal([]byte(herr.Body), &body)

	switch body.Code {
	case "23505":
		return fmt.Errorf("%w: %s", medications.ErrConflict, body.Message)
	case "23503":
		return fmt.Errorf("%w: %s", medications.ErrReferenced, body.Message)
	case "23502", "23514", "22001", "22P02", "PGRST102":
		return fmt.Errorf("%w: %s", medications.ErrInvalidInput, body.Message)
	case "PGRST116", "42501":
		// 42501: RLS rechazó la fila; no distinguimos de "no existe"
		return medications.ErrNotFound
	case "PGRST301", "PGRST302":
		return fmt.Errorf("%w: %s", medications.ErrUnauthenticated, body.Message)
	}

	switch {
	case herr.StatusCode == http.StatusUnauthorized,
		strings.Contains(body.Message, "JWT"):
		return fmt.Errorf("%w: %s", medications.ErrUnauthenticated, body.Message)
	case herr.StatusCode == http.StatusForbidden, herr.StatusCode == http.StatusNotFound && body.Code == "":
		return medications.ErrNotFound
	}
	return fmt.Errorf("%w: %w", medications.ErrBackend, err)
}
