package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearglass/quote-wizard/internal/backend"
	"github.com/clearglass/quote-wizard/internal/session"
	"github.com/clearglass/quote-wizard/internal/vehicles"
	"github.com/clearglass/quote-wizard/internal/wizard"
)

type stubLookup struct {
	res *wizard.VehicleLookupResult
	err error
}

func (s *stubLookup) Identify(_ context.Context, _ vehicles.IdentifyRequest) (*wizard.VehicleLookupResult, error) {
	return s.res, s.err
}

type stubSubmitter struct {
	calls int
	err   error
}

func (s *stubSubmitter) GenerateQuote(_ context.Context, _ wizard.QuoteGenerationRequest) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "task-1", nil
}

type stubStatus struct {
	st backend.TaskStatus
}

func (s *stubStatus) TaskStatus(_ context.Context, _ string) (backend.TaskStatus, error) {
	return s.st, nil
}

type stubPreview struct{}

func (stubPreview) QuotePreview(_ context.Context, quoteID string) (json.RawMessage, error) {
	return json.RawMessage(`{"id":"` + quoteID + `"}`), nil
}

type testEnv struct {
	srv      *httptest.Server
	h        *Handler
	repo     *session.Memory
	lookup   *stubLookup
	submit   *stubSubmitter
	statuses *stubStatus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		repo:     session.NewMemory(session.DefaultTTL),
		lookup:   &stubLookup{},
		submit:   &stubSubmitter{},
		statuses: &stubStatus{st: backend.TaskStatus{Status: backend.StateCompleted, QuoteID: "q-1"}},
	}

	log := slog.Default()
	h := NewHandler(
		context.Background(),
		log,
		env.repo,
		env.lookup,
		wizard.NewPipeline(log, env.submit),
		backend.NewPoller(log, env.statuses, 5*time.Millisecond),
		stubPreview{},
	)

	env.h = h

	mux := http.NewServeMux()
	h.Register(mux)
	env.srv = httptest.NewServer(mux)
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	}
	return resp.StatusCode, out
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	code, body := e.do(t, http.MethodPost, "/api/wizard/sessions", nil)
	require.Equal(t, http.StatusCreated, code)
	id := body["session"].(map[string]any)["id"].(string)
	require.NotEmpty(t, id)
	return id
}

// driveToSubmission доводит сессию до неявной отправки кратчайшим путём
// (back_glass — ветка без шага повреждения).
func (e *testEnv) driveToSubmission(t *testing.T) string {
	t.Helper()
	id := e.createSession(t)
	base := "/api/wizard/sessions/" + id

	code, _ := e.do(t, http.MethodPost, base+"/steps/glass",
		map[string]any{"category": "back_glass"})
	require.Equal(t, http.StatusOK, code)

	code, _ = e.do(t, http.MethodPost, base+"/steps/contact", map[string]any{
		"first_name": "J", "last_name": "D", "email": "j@d.io", "phone": "2145550100",
	})
	require.Equal(t, http.StatusOK, code)

	code, _ = e.do(t, http.MethodPost, base+"/steps/location",
		map[string]any{"service_type": "in_store", "shop_id": 1, "postal_code": "75201"})
	require.Equal(t, http.StatusOK, code)
	return id
}

func TestFullRepairFlow(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)
	base := "/api/wizard/sessions/" + id

	code, body := env.do(t, http.MethodPost, base+"/steps/glass",
		map[string]any{"category": "windshield"})
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["active_steps"], 5)

	code, _ = env.do(t, http.MethodPost, base+"/steps/damage",
		map[string]any{"service_intent": "repair", "chip_count": 2})
	require.Equal(t, http.StatusOK, code)

	code, _ = env.do(t, http.MethodPost, base+"/steps/contact", map[string]any{
		"first_name": "Jane", "last_name": "Doe",
		"email": "jane@example.com", "phone": "(214) 555-0123", "sms_consent": true,
	})
	require.Equal(t, http.StatusOK, code)

	code, _ = env.do(t, http.MethodPost, base+"/steps/vehicle", map[string]any{
		"method": "vin", "vin": "1HGCM82633A004352",
	})
	require.Equal(t, http.StatusOK, code)

	// Установка локации триггерит отправку ровно один раз.
	loc := map[string]any{"service_type": "in_store", "shop_id": 7, "postal_code": "75201"}
	code, body = env.do(t, http.MethodPost, base+"/steps/location", loc)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "repair", body["flow_type"])
	assert.Equal(t, 1, env.submit.calls)

	// Повтор того же значения — подавлен.
	code, _ = env.do(t, http.MethodPost, base+"/steps/location", loc)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, env.submit.calls)

	// Поллер доводит задачу до терминального статуса.
	require.Eventually(t, func() bool {
		_, g := env.do(t, http.MethodGet, base+"/generation", nil)
		return g["quote_id"] == "q-1" && g["is_generating"] == false
	}, time.Second, 10*time.Millisecond)
}

// Чтения статуса генерации идут параллельно с терминальной записью поллера;
// каждый ответ обязан быть целостным снимком, а не половиной записи.
func TestGenerationReadsDuringTerminalWrite(t *testing.T) {
	env := newTestEnv(t)
	id := env.driveToSubmission(t)
	url := env.srv.URL + "/api/wizard/sessions/" + id + "/generation"

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				resp, err := http.Get(url)
				if err != nil {
					return
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()
			}
		}()
	}

	require.Eventually(t, func() bool {
		_, g := env.do(t, http.MethodGet, "/api/wizard/sessions/"+id+"/generation", nil)
		return g["quote_id"] == "q-1" && g["is_generating"] == false
	}, time.Second, 5*time.Millisecond)

	close(stop)
	wg.Wait()
}

// Служебные карты хэндлера не должны расти по записи на каждую задачу:
// запись watched живёт только пока работает поллер.
func TestWatchEntryFreedAfterTerminal(t *testing.T) {
	env := newTestEnv(t)
	env.driveToSubmission(t)

	require.Eventually(t, func() bool {
		env.h.mu.Lock()
		defer env.h.mu.Unlock()
		return len(env.h.watched) == 0
	}, time.Second, 10*time.Millisecond)
}

// Лок исчезнувшей сессии освобождается, когда хранилище отвечает «нет такой».
func TestGoneSessionFreesLockEntry(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)
	base := "/api/wizard/sessions/" + id

	code, _ := env.do(t, http.MethodPost, base+"/steps/glass",
		map[string]any{"category": "windshield"})
	require.Equal(t, http.StatusOK, code)

	env.h.mu.Lock()
	_, held := env.h.locks[id]
	env.h.mu.Unlock()
	require.True(t, held)

	require.NoError(t, env.repo.Delete(context.Background(), id))
	code, _ = env.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusNotFound, code)

	env.h.mu.Lock()
	_, held = env.h.locks[id]
	env.h.mu.Unlock()
	assert.False(t, held)
}

func TestIdentifyAppliesLookupReaction(t *testing.T) {
	env := newTestEnv(t)
	env.lookup.res = &wizard.VehicleLookupResult{
		Source: "autobolt", VIN: "1HGCM82633A004352",
		Year: 2019, Make: "Honda", Model: "Accord",
		Parts:              []wizard.GlassPart{{NAGSPartNumber: "FW03898"}},
		NeedsPartSelection: false,
		Confidence:         wizard.ConfidenceHigh,
	}

	id := env.createSession(t)
	base := "/api/wizard/sessions/" + id

	code, body := env.do(t, http.MethodPost, base+"/vehicle/identify",
		map[string]any{"vin": "1HGCM82633A004352"})
	require.Equal(t, http.StatusOK, code)

	sess := body["session"].(map[string]any)
	require.NotNil(t, sess["selected_part"], "единственный кандидат должен автоселектиться")
	assert.Equal(t, "FW03898", sess["selected_part"].(map[string]any)["nags_part_number"])
}

func TestIdentifyFailureDoesNotMutateSession(t *testing.T) {
	env := newTestEnv(t)
	env.lookup.err = errors.New("upstream down")

	id := env.createSession(t)
	base := "/api/wizard/sessions/" + id

	code, body := env.do(t, http.MethodPost, base+"/vehicle/identify",
		map[string]any{"vin": "1HGCM82633A004352"})
	require.Equal(t, http.StatusBadGateway, code)
	assert.Contains(t, body["error"], "lookup failed")

	s, err := env.repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, s.Lookup)
	assert.Equal(t, wizard.StepGlassSelection, s.CurrentStep)
}

func TestGotoBlockedByIncompleteSteps(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)
	base := "/api/wizard/sessions/" + id

	code, body := env.do(t, http.MethodPost, base+"/navigate/goto",
		map[string]any{"step": 6})
	require.Equal(t, http.StatusConflict, code)
	assert.Contains(t, body["error"], "incomplete")
}

func TestCompleteRequiresPrerequisites(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	code, body := env.do(t, http.MethodPost, "/api/wizard/sessions/"+id+"/complete", nil)
	require.Equal(t, http.StatusConflict, code)
	assert.NotEmpty(t, body["error"])
	assert.Zero(t, env.submit.calls)
}

func TestSubmissionErrorSurfacesInGenerationSlot(t *testing.T) {
	env := newTestEnv(t)
	env.submit.err = errors.New("503 from backend")

	id := env.createSession(t)
	base := "/api/wizard/sessions/" + id

	for path, payload := range map[string]map[string]any{
		"/steps/glass":   {"category": "back_glass"},
		"/steps/contact": {"first_name": "J", "last_name": "D", "email": "j@d.io", "phone": "2145550100"},
	} {
		code, _ := env.do(t, http.MethodPost, base+path, payload)
		require.Equal(t, http.StatusOK, code, path)
	}

	code, _ := env.do(t, http.MethodPost, base+"/steps/location",
		map[string]any{"service_type": "in_store", "shop_id": 1, "postal_code": "75201"})
	require.Equal(t, http.StatusOK, code)

	_, g := env.do(t, http.MethodGet, base+"/generation", nil)
	assert.Equal(t, false, g["is_generating"])
	assert.Contains(t, g["generation_error"], "503")

	// Явный re-submit после ошибки — новая попытка.
	env.submit.err = nil
	code, _ = env.do(t, http.MethodPost, base+"/complete", nil)
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, 2, env.submit.calls)
}

func TestResetReturnsFreshSession(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)
	base := "/api/wizard/sessions/" + id

	code, _ := env.do(t, http.MethodPost, base+"/steps/glass",
		map[string]any{"category": "windshield"})
	require.Equal(t, http.StatusOK, code)

	code, body := env.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["has_prior_progress"])

	code, body = env.do(t, http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["has_prior_progress"])
	assert.Len(t, body["active_steps"], 4)
}

func TestMobileLocationRequiresFullAddress(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	code, body := env.do(t, http.MethodPost,
		fmt.Sprintf("/api/wizard/sessions/%s/steps/location", id),
		map[string]any{"service_type": "mobile", "shop_id": 1, "postal_code": "75201"})
	require.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "address")
}

func TestQuotePreviewPassthrough(t *testing.T) {
	env := newTestEnv(t)
	code, body := env.do(t, http.MethodGet, "/api/quotes/q-55", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "q-55", body["id"])
}

func TestUnknownSessionIs404(t *testing.T) {
	env := newTestEnv(t)
	code, body := env.do(t, http.MethodGet, "/api/wizard/sessions/nope", nil)
	require.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body["error"], "not found")
}
