package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/archmesh"
	"github.com/hupe1980/archmesh/core"
	"github.com/hupe1980/archmesh/gateway"
	"github.com/hupe1980/archmesh/internal/testutil"
	"github.com/hupe1980/archmesh/metrics"
	"github.com/hupe1980/archmesh/model"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, p model.Provider) (*Server, *archmesh.ArchMesh) {
	t.Helper()
	mesh, err := archmesh.New(func(o *archmesh.Options) {
		o.Providers = []model.Provider{p}
		o.Clock = testutil.NewAutoClock(epoch)
		o.Metrics = metrics.New()
	})
	require.NoError(t, err)
	return New(mesh), mesh
}

func do(t *testing.T, h http.Handler, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func livingRoomPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testutil.LivingRoom()))
	return buf.Bytes()
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, testutil.NewScriptedProvider(gateway.ProviderAnthropic))
	rec := do(t, s, http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","providers":["anthropic"]}`, rec.Body.String())
}

func TestIntent(t *testing.T) {
	s, _ := newTestServer(t, testutil.NewScriptedProvider(gateway.ProviderAnthropic))

	rec := do(t, s, http.MethodPost, "/v1/intent", strings.NewReader(`{"utterance":"paint the walls sage green"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp intentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Matched)
	assert.Equal(t, core.CommandChangeColor, resp.Intent.Command)

	rec = do(t, s, http.MethodPost, "/v1/intent", strings.NewReader(`{"utterance":"good morning"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"matched":false}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/v1/intent", strings.NewReader(`{"text":"x"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyze_RawAndMultipart(t *testing.T) {
	s, mesh := newTestServer(t, testutil.NewScriptedProvider(gateway.ProviderAnthropic))

	rec := do(t, s, http.MethodPost, "/v1/analyze?conversation_id=c1", bytes.NewReader(livingRoomPNG(t)), "image/png")
	require.Equal(t, http.StatusOK, rec.Code)
	var a core.RoomAnalysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, core.RoomLivingRoom, a.RoomType)

	conv, err := mesh.Sessions().Get(context.Background(), "c1")
	require.NoError(t, err)
	_, ok := conv.Analysis()
	assert.True(t, ok)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "room.png")
	require.NoError(t, err)
	_, err = fw.Write(livingRoomPNG(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec = do(t, s, http.MethodPost, "/v1/analyze", &body, mw.FormDataContentType())
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, core.RoomLivingRoom, a.RoomType)

	rec = do(t, s, http.MethodPost, "/v1/analyze", bytes.NewReader([]byte("garbage")), "image/png")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.True(t, a.Fallback)

	rec = do(t, s, http.MethodPost, "/v1/analyze", nil, "image/png")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAsk(t *testing.T) {
	p := testutil.NewScriptedProvider(gateway.ProviderAnthropic, testutil.Step{Text: "Hello there."})
	s, _ := newTestServer(t, p)

	rec := do(t, s, http.MethodPost, "/v1/ask", strings.NewReader(`{"message":"hi"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ConversationID string `json:"conversation_id"`
		Text           string `json:"text"`
		Degraded       bool   `json:"degraded"`
		Selection      struct {
			Primary core.AgentRole `json:"primary"`
		} `json:"selection"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ConversationID)
	assert.Equal(t, "Hello there.", resp.Text)
	assert.False(t, resp.Degraded)
	assert.Equal(t, core.RoleCoordinator, resp.Selection.Primary)

	rec = do(t, s, http.MethodPost, "/v1/ask", strings.NewReader(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecide_Validation(t *testing.T) {
	s, _ := newTestServer(t, testutil.NewScriptedProvider(gateway.ProviderAnthropic))

	rec := do(t, s, http.MethodPost, "/v1/decide", strings.NewReader(`{"question":"?","options":["a"],"roles":["janitor"]}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/decide", strings.NewReader(`{"question":"?","options":[],"roles":["design"]}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecide(t *testing.T) {
	p := testutil.NewScriptedProvider(gateway.ProviderAnthropic).Then(testutil.Step{Text: `{"choice":"b","confidence":0.8}`})
	s, _ := newTestServer(t, p)

	rec := do(t, s, http.MethodPost, "/v1/decide", strings.NewReader(`{"question":"a or b?","options":["a","b"],"roles":["design"]}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Resolved *string `json:"resolved"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Resolved)
	assert.Equal(t, "b", *resp.Resolved)
}

func TestReset(t *testing.T) {
	s, _ := newTestServer(t, testutil.NewScriptedProvider(gateway.ProviderAnthropic))

	rec := do(t, s, http.MethodDelete, "/v1/conversations/missing/history", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/ask", strings.NewReader(`{"conversation_id":"c9","message":"hi"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, s, http.MethodDelete, "/v1/conversations/c9/history?role=coordinator", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, s, http.MethodDelete, "/v1/conversations/c9/history?role=janitor", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, testutil.NewScriptedProvider(gateway.ProviderAnthropic))
	do(t, s, http.MethodPost, "/v1/intent", strings.NewReader(`{"utterance":"help"}`), "application/json")

	rec := do(t, s, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `archmesh_http_requests_total{method="POST",route="/v1/intent",status="200"} 1`)
}

func TestWebSocket_StreamsTurn(t *testing.T) {
	p := testutil.NewScriptedProvider(gateway.ProviderAnthropic, testutil.Step{Text: "Check the beam first."})
	s, _ := newTestServer(t, p)
	ts := httptest.NewServer(s)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/v1/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.WriteJSON(wsRequest{Type: "ping"}))
	var pong map[string]any
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong["type"])

	require.NoError(t, conn.WriteJSON(wsRequest{Type: "ask", Message: "Remove the wall"}))
	var (
		types    []string
		streamed = map[string]string{}
		done     map[string]any
	)
	for done == nil {
		var frame map[string]any
		require.NoError(t, conn.ReadJSON(&frame))
		typ := frame["type"].(string)
		types = append(types, typ)
		switch typ {
		case "chunk":
			text, _ := frame["text"].(string)
			streamed[frame["role"].(string)] += text
		case "done":
			done = frame
		case "error":
			t.Fatalf("unexpected error frame: %v", frame)
		}
	}

	assert.Equal(t, "route", types[0])
	assert.Equal(t, "Check the beam first.", streamed["structural"])
	assert.Equal(t, "ok", streamed["coordinator"])
	outcome := done["outcome"].(map[string]any)
	assert.Contains(t, outcome["text"], "**Structural Engineer:** Check the beam first.")
	assert.NotEmpty(t, done["conversation_id"])
}

func TestWebSocket_OversizedFrameClosesConnection(t *testing.T) {
	p := testutil.NewScriptedProvider(gateway.ProviderAnthropic)
	mesh, err := archmesh.New(func(o *archmesh.Options) {
		o.Providers = []model.Provider{p}
		o.Clock = testutil.NewAutoClock(epoch)
	})
	require.NoError(t, err)
	s := New(mesh, func(o *Options) { o.MaxRequestBodySize = 1 << 10 })
	ts := httptest.NewServer(s)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/v1/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.WriteJSON(wsRequest{Type: "ask", Message: "Remove the wall", Image: bytes.Repeat([]byte{0xff}, 4<<10)}))

	// The server answers with a close frame instead of route and chunk frames.
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		assert.Equal(t, websocket.CloseMessageTooBig, closeErr.Code)
	}
	assert.Equal(t, 0, p.CallCount())
}
