package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"medication-adherence/internal/router"
)

func TestHTTP_EndToEnd_MedicationsDosesAndAdherence(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{AuthVerifier: nil}))
	defer ts.Close()

	patientID := "patient-1"

	// 1) Sin usuario => 401
	{
		st, _ := doReq(t, ts.URL, "GET", "/medications", "", nil)
		if st != http.StatusUnauthorized {
			t.Fatalf("expected 401 without user, got %d", st)
		}
	}

	// 2) Alta con validación
	{
		st, _ := doReq(t, ts.URL, "POST", "/medications", patientID, map[string]any{
			"name": "Aspirin", "dosage": "100mg", "frequency": "hourly",
		})
		if st != http.StatusBadRequest {
			t.Fatalf("expected 400 for unknown frequency, got %d", st)
		}
	}
	medID := createMedication(t, ts.URL, patientID, map[string]any{
		"name": "  Aspirin ", "dosage": "100mg", "frequency": "once_daily",
	})

	// 3) Nombre duplicado => 409
	{
		st, _ := doReq(t, ts.URL, "POST", "/medications", patientID, map[string]any{
			"name": "aspirin", "dosage": "50mg", "frequency": "weekly",
		})
		if st != http.StatusConflict {
			t.Fatalf("expected 409 for duplicate name, got %d", st)
		}
	}

	// 4) Marcar toma (sin body => ahora)
	{
		st, body := doReq(t, ts.URL, "POST", "/medications/"+medID+"/doses", patientID, nil)
		if st != http.StatusCreated {
			t.Fatalf("expected 201 mark taken, got %d body=%s", st, string(body))
		}
		var resp struct {
			Status string `json:"status"`
			Log    struct {
				ID          string `json:"id"`
				Provisional bool   `json:"provisional"`
			} `json:"log"`
		}
		_ = json.Unmarshal(body, &resp)
		if resp.Status != "success" || resp.Log.ID == "" || resp.Log.Provisional {
			t.Fatalf("unexpected mark response %s", string(body))
		}
	}

	// 5) La lista ya trae el log persistido
	{
		st, body := doReq(t, ts.URL, "GET", "/medications", patientID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 list, got %d", st)
		}
		var items []struct {
			Name string            `json:"name"`
			Logs []json.RawMessage `json:"medication_logs"`
		}
		_ = json.Unmarshal(body, &items)
		if len(items) != 1 || items[0].Name != "Aspirin" || len(items[0].Logs) != 1 {
			t.Fatalf("unexpected list %s", string(body))
		}
	}

	// 6) Hoy y adherencia
	{
		st, body := doReq(t, ts.URL, "GET", "/me/today", patientID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 today, got %d", st)
		}
		var resp struct {
			Progress struct {
				Completed int `json:"completed"`
				Total     int `json:"total"`
			} `json:"progress"`
		}
		_ = json.Unmarshal(body, &resp)
		if resp.Progress.Completed != 1 || resp.Progress.Total != 1 {
			t.Fatalf("unexpected today %s", string(body))
		}
	}
	{
		st, body := doReq(t, ts.URL, "GET", "/me/adherence", patientID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 adherence, got %d", st)
		}
		var resp struct {
			TotalDays  int `json:"total_days"`
			TakenDays  int `json:"taken_days"`
			Percentage int `json:"adherence_percentage"`
			Streak     int `json:"current_streak"`
		}
		_ = json.Unmarshal(body, &resp)
		if resp.TotalDays != 30 || resp.TakenDays != 1 || resp.Percentage != 3 || resp.Streak != 1 {
			t.Fatalf("unexpected adherence %s", string(body))
		}
	}
	{
		st, _ := doReq(t, ts.URL, "GET", "/me/adherence?tz=Mars/Olympus", patientID, nil)
		if st != http.StatusBadRequest {
			t.Fatalf("expected 400 for invalid tz, got %d", st)
		}
	}

	// 7) Otro usuario no puede registrar tomas ni borrar
	{
		st, _ := doReq(t, ts.URL, "POST", "/medications/"+medID+"/doses", "intruder", nil)
		if st != http.StatusNotFound {
			t.Fatalf("expected 404 marking someone else's medication, got %d", st)
		}
		st, _ = doReq(t, ts.URL, "DELETE", "/medications/"+medID, "intruder", nil)
		if st != http.StatusNotFound {
			t.Fatalf("expected 404 deleting someone else's medication, got %d", st)
		}
	}

	// 8) Con tomas registradas no se puede borrar
	{
		st, _ := doReq(t, ts.URL, "DELETE", "/medications/"+medID, patientID, nil)
		if st != http.StatusConflict {
			t.Fatalf("expected 409 deleting a referenced medication, got %d", st)
		}
	}

	// 9) Update parcial y borrado de una sin tomas
	otherID := createMedication(t, ts.URL, patientID, map[string]any{
		"name": "Vitamin D", "dosage": "1000IU", "frequency": "weekly",
	})
	{
		st, body := doReq(t, ts.URL, "PATCH", "/medications/"+otherID, patientID, map[string]any{"dosage": "2000IU"})
		if st != http.StatusOK || !strings.Contains(string(body), "2000IU") {
			t.Fatalf("expected 200 patch, got %d body=%s", st, string(body))
		}
		st, _ = doReq(t, ts.URL, "DELETE", "/medications/"+otherID, patientID, nil)
		if st != http.StatusNoContent {
			t.Fatalf("expected 204 delete, got %d", st)
		}
	}

	// 10) Fotos sin configurar => 501
	{
		st, _ := doReq(t, ts.URL, "POST", "/doses/photo-uploads", patientID, map[string]any{"content_type": "image/png"})
		if st != http.StatusNotImplemented {
			t.Fatalf("expected 501 without photo storage, got %d", st)
		}
	}
}

func TestHTTP_EndToEnd_CaretakerAccess(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{AuthVerifier: nil}))
	defer ts.Close()

	patientID := "patient-1"
	caretakerID := "caretaker-1"

	medID := createMedication(t, ts.URL, patientID, map[string]any{
		"name": "Metformin", "dosage": "500mg", "frequency": "twice_daily",
	})
	if st, _ := doReq(t, ts.URL, "POST", "/medications/"+medID+"/doses", patientID, nil); st != http.StatusCreated {
		t.Fatalf("expected 201 mark taken, got %d", st)
	}

	// 1) Sin grant => 404 (no se revela si existe)
	{
		st, _ := doReq(t, ts.URL, "GET", "/patients/"+patientID+"/adherence", caretakerID, nil)
		if st != http.StatusNotFound {
			t.Fatalf("expected 404 before grant, got %d", st)
		}
	}

	// 2) Paciente invita; scope desconocido => 400
	{
		st, _ := doReq(t, ts.URL, "POST", "/me/caretakers", patientID, map[string]any{
			"caretaker_user_id": caretakerID,
			"scopes":            []string{"medications:write"},
		})
		if st != http.StatusBadRequest {
			t.Fatalf("expected 400 for unknown scope, got %d", st)
		}
	}
	grantID := inviteCaretaker(t, ts.URL, patientID, caretakerID)

	// 3) Invitado pero no aceptado => sigue 404
	{
		st, _ := doReq(t, ts.URL, "GET", "/patients/"+patientID+"/medications", caretakerID, nil)
		if st != http.StatusNotFound {
			t.Fatalf("expected 404 for invited grant, got %d", st)
		}
	}

	// 4) Cuidador ve la invitación y acepta
	{
		st, body := doReq(t, ts.URL, "GET", "/me/patients?status=invited", caretakerID, nil)
		if st != http.StatusOK || !strings.Contains(string(body), grantID) {
			t.Fatalf("expected invitation listed, got %d body=%s", st, string(body))
		}
		st, body = doReq(t, ts.URL, "POST", "/grants/"+grantID+"/accept", caretakerID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 accept, got %d body=%s", st, string(body))
		}
	}

	// 5) Dashboard del cuidador
	{
		st, body := doReq(t, ts.URL, "GET", "/patients/"+patientID+"/medications", caretakerID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 patient medications, got %d body=%s", st, string(body))
		}
		var items []struct {
			ID          string `json:"id"`
			TakenToday  bool   `json:"taken_today"`
			DosesLogged int    `json:"doses_logged"`
		}
		_ = json.Unmarshal(body, &items)
		if len(items) != 1 || items[0].ID != medID || !items[0].TakenToday || items[0].DosesLogged != 1 {
			t.Fatalf("unexpected dashboard %s", string(body))
		}

		st, body = doReq(t, ts.URL, "GET", "/patients/"+patientID+"/adherence", caretakerID, nil)
		if st != http.StatusOK || !strings.Contains(string(body), `"alerts"`) {
			t.Fatalf("expected 200 patient adherence, got %d body=%s", st, string(body))
		}
	}

	// 6) El cuidador no puede escribir en nombre del paciente
	{
		st, _ := doReq(t, ts.URL, "POST", "/medications/"+medID+"/doses", caretakerID, nil)
		if st != http.StatusNotFound {
			t.Fatalf("expected 404 when caretaker marks patient's dose, got %d", st)
		}
	}

	// 7) Paciente revoca => acceso perdido de inmediato
	{
		st, body := doReq(t, ts.URL, "POST", "/grants/"+grantID+"/revoke", patientID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 revoke, got %d body=%s", st, string(body))
		}
		st, _ = doReq(t, ts.URL, "GET", "/patients/"+patientID+"/adherence", caretakerID, nil)
		if st != http.StatusNotFound {
			t.Fatalf("expected 404 after revoke, got %d", st)
		}
	}
}

func TestHTTP_HealthAndMetrics(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{MetricsEnabled: true}))
	defer ts.Close()

	if st, body := doReq(t, ts.URL, "GET", "/health", "", nil); st != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected health %d %s", st, string(body))
	}
	st, body := doReq(t, ts.URL, "GET", "/metrics", "", nil)
	if st != http.StatusOK || !strings.Contains(string(body), "http_requests_total") {
		t.Fatalf("expected prometheus output, got %d", st)
	}
}

func TestHTTP_RateLimit(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{RateRPS: 0.0001, RateBurst: 1}))
	defer ts.Close()

	if st, _ := doReq(t, ts.URL, "GET", "/medications", "u1", nil); st != http.StatusOK {
		t.Fatalf("first request should pass, got %d", st)
	}
	if st, _ := doReq(t, ts.URL, "GET", "/medications", "u1", nil); st != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", st)
	}
}

func createMedication(t *testing.T, baseURL, userID string, payload map[string]any) string {
	t.Helper()

	st, body := doReq(t, baseURL, "POST", "/medications", userID, payload)
	if st != http.StatusCreated {
		t.Fatalf("expected 201 create medication, got %d body=%s", st, string(body))
	}

	var resp struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(body, &resp)
	if resp.ID == "" {
		t.Fatalf("create medication: missing id body=%s", string(body))
	}
	return resp.ID
}

func inviteCaretaker(t *testing.T, baseURL, patientID, caretakerID string) string {
	t.Helper()

	st, body := doReq(t, baseURL, "POST", "/me/caretakers", patientID, map[string]any{
		"caretaker_user_id": caretakerID,
	})
	if st != http.StatusCreated {
		t.Fatalf("expected 201 invite caretaker, got %d body=%s", st, string(body))
	}

	var resp struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(body, &resp)
	if resp.ID == "" {
		t.Fatalf("invite caretaker: missing id body=%s", string(body))
	}
	return resp.ID
}

func doReq(t *testing.T, baseURL, method, path, debugUserID string, body any) (int, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if debugUserID != "" {
		req.Header.Set("X-Debug-User-ID", debugUserID)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	return res.StatusCode, respBody
}
