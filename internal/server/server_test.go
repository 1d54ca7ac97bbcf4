package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/internal/config"
	"github.com/xkilldash9x/deskpilot/internal/control"
	"github.com/xkilldash9x/deskpilot/internal/control/sim"
	"github.com/xkilldash9x/deskpilot/internal/engine"
	"github.com/xkilldash9x/deskpilot/internal/interpreter"
	"github.com/xkilldash9x/deskpilot/internal/parser"
)

func newTestServer(t *testing.T) (*Server, *sim.Backend) {
	t.Helper()
	backend := sim.New(zap.NewNop())
	eng := engine.New(backend.Surfaces(), control.Simulated, zap.NewNop())
	interp := interpreter.New(parser.New(), eng, zap.NewNop())
	srv := New(config.ServerConfig{
		Addr:            ":0",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: time.Second,
	}, time.Minute, interp, nil, zap.NewNop())
	return srv, backend
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reqBody *bytes.Reader
	if body == "" {
		reqBody = bytes.NewReader(nil)
	} else {
		reqBody = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), "body: %s", rec.Body.String())
	return rec, decoded
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := doJSON(t, srv.Router(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "simulated", body["mode"])
}

func TestTaskExecute_Success(t *testing.T) {
	srv, backend := newTestServer(t)
	rec, body := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/task/execute",
		`{"task": "open notepad and type hello world"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["task_id"])
	assert.Equal(t, "simulated", body["mode"])
	outcomes, ok := body["outcomes"].([]any)
	require.True(t, ok)
	assert.Len(t, outcomes, 2)
	assert.Len(t, backend.Calls(), 2)
}

func TestTaskExecute_UnrecognizedTask(t *testing.T) {
	srv, backend := newTestServer(t)
	rec, body := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/task/execute",
		`{"task": "contemplate the void"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "contemplate the void")
	assert.Empty(t, backend.Calls())
}

func TestTaskExecute_MissingTask(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/task/execute", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestMouseMove(t *testing.T) {
	srv, backend := newTestServer(t)

	rec, body := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/mouse/move", `{"x": 100, "y": 200}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	calls := backend.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "move", calls[0].Op)
	assert.Equal(t, "100,200", calls[0].Args)
}

func TestMouseMove_MissingCoordinates(t *testing.T) {
	srv, backend := newTestServer(t)
	rec, _ := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/mouse/move", `{"x": 100}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, backend.Calls())
}

func TestMouseMove_NegativeCoordinatesRejected(t *testing.T) {
	srv, backend := newTestServer(t)
	rec, body := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/mouse/move", `{"x": -5, "y": 10}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Empty(t, backend.Calls())
}

func TestMouseClick_DefaultsToLeft(t *testing.T) {
	srv, backend := newTestServer(t)
	rec, _ := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/mouse/click", `{}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	calls := backend.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "click", calls[0].Op)
	assert.Equal(t, "left", calls[0].Args)
}

func TestKeyboardType(t *testing.T) {
	srv, backend := newTestServer(t)
	rec, _ := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/keyboard/type", `{"text": "hello"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	calls := backend.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "type", calls[0].Op)
	assert.Equal(t, "hello", calls[0].Args)
}

func TestKeyboardHotkey_MissingKeys(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, _ := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/keyboard/hotkey", `{"keys": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAppOpen(t *testing.T) {
	srv, backend := newTestServer(t)
	rec, body := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/app/open", `{"app_name": "notepad"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body["message"], "notepad")

	calls := backend.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "open", calls[0].Op)
}

func TestScreenCapture_ReturnsImage(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := doJSON(t, srv.Router(), http.MethodGet, "/api/v1/screen/capture", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	image, ok := body["image"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, image)
}

func TestScreenText_SimulatedIsEmpty(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := doJSON(t, srv.Router(), http.MethodGet, "/api/v1/screen/text", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "", body["text"])
}

func TestTaskList_DisabledWithoutHistory(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, _ := doJSON(t, srv.Router(), http.MethodGet, "/api/v1/tasks", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTaskStream_StepsThenResult(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/v1/tasks"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"task": "open notepad and type hi"}))

	var types []string
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var ev wsEvent
		require.NoError(t, conn.ReadJSON(&ev))
		types = append(types, ev.Type)
		if ev.Type == "result" {
			require.NotNil(t, ev.Result)
			assert.True(t, ev.Result.Success)
			assert.Len(t, ev.Result.Outcomes, 2)
			break
		}
	}
	assert.Equal(t, []string{"accepted", "step", "step", "result"}, types)
}

func TestTaskStream_RejectsMalformedSubmission(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/v1/tasks"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev wsEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "error", ev.Type)
}
