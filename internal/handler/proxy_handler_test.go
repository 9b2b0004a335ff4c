package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arturoeanton/dyana-web/internal/adapter/astro"
	"github.com/arturoeanton/dyana-web/internal/service"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validNatal = `{"nome":"Ada","citta":"Roma","data":"1990-01-01","ora":"10:30","tier":"free"}`

type upstream struct {
	server *httptest.Server
	calls  atomic.Int32
	engine atomic.Value
}

func newUpstream(t *testing.T, status int, contentType, body string) *upstream {
	t.Helper()
	u := &upstream{}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		u.engine.Store(r.Header.Get(service.EngineHeader))
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(u.server.Close)
	return u
}

func setupProxyApp(baseURL string) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	client := astro.NewClient(baseURL, 2*time.Second)
	NewProxyHandler(service.NewProxyService(client, "ai")).Register(app.Group("/api"))
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return doRequest(t, app, req)
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestProxyHandler_MissingFieldNeverCallsUpstream(t *testing.T) {
	up := newUpstream(t, 200, "application/json", `{}`)
	app := setupProxyApp(up.server.URL)

	status, body := doJSON(t, app, http.MethodPost, "/api/tema", `{"data":"1990-01-01","ora":"10:30","tier":"free"}`)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, []any{"citta"}, body["fields"])
	assert.Zero(t, up.calls.Load())
}

func TestProxyHandler_InvalidJSONBody(t *testing.T) {
	up := newUpstream(t, 200, "application/json", `{}`)
	app := setupProxyApp(up.server.URL)

	status, body := doJSON(t, app, http.MethodPost, "/api/sinastria", `{not json`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "error", body["status"])
	assert.Zero(t, up.calls.Load())
}

func TestProxyHandler_NonJSONUpstreamIs502(t *testing.T) {
	up := newUpstream(t, 200, "text/html", `<html>Bad Gateway</html>`)
	app := setupProxyApp(up.server.URL)

	status, body := doJSON(t, app, http.MethodPost, "/api/tema", validNatal)

	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, float64(200), body["upstream_status"])
	assert.Equal(t, "<html>Bad Gateway</html>", body["preview"])
}

func TestProxyHandler_WrapsPlainResult(t *testing.T) {
	up := newUpstream(t, 200, "application/json", `{"chart":{"sun":"Leo"}}`)
	app := setupProxyApp(up.server.URL)

	status, body := doJSON(t, app, http.MethodPost, "/api/tema", validNatal)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, map[string]any{"chart": map[string]any{"sun": "Leo"}}, body["result"])
}

func TestProxyHandler_PassesThroughEnvelope(t *testing.T) {
	up := newUpstream(t, 200, "application/json", `{"status":"ok","result":{"score":81},"remaining_credits":4}`)
	app := setupProxyApp(up.server.URL)

	status, body := doJSON(t, app, http.MethodPost, "/api/tema", validNatal)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(4), body["remaining_credits"])
}

func TestProxyHandler_RelaysUpstreamErrorStatus(t *testing.T) {
	up := newUpstream(t, 422, "application/json", `{"detail":"bad date"}`)
	app := setupProxyApp(up.server.URL)

	status, body := doJSON(t, app, http.MethodPost, "/api/tema", validNatal)

	assert.Equal(t, 422, status)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, map[string]any{"detail": "bad date"}, body["detail"])
}

func TestProxyHandler_UpstreamDown(t *testing.T) {
	up := newUpstream(t, 200, "application/json", `{}`)
	up.server.Close()
	app := setupProxyApp(up.server.URL)

	status, body := doJSON(t, app, http.MethodPost, "/api/tema", validNatal)

	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "error", body["status"])
}

func TestProxyHandler_Horoscope(t *testing.T) {
	up := newUpstream(t, 200, "application/json", `{"text":"stars align"}`)
	app := setupProxyApp(up.server.URL)

	status, _ := doJSON(t, app, http.MethodPost, "/api/oroscopo/monthly", `{"segno":"leone"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ai", up.engine.Load())

	status, body := doJSON(t, app, http.MethodPost, "/api/oroscopo/hourly", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, []any{"period"}, body["fields"])
	assert.Equal(t, int32(1), up.calls.Load())
}

func TestErrorHandler_UnknownRoute(t *testing.T) {
	app := setupProxyApp("http://127.0.0.1:1")

	status, body := doJSON(t, app, http.MethodGet, "/api/nowhere", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "error", body["status"])
}
