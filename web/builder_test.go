package web

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gocrud/container/di"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Mailer struct {
	Host string
	Port int
}

func NewMailer(host string, port int) *Mailer { return &Mailer{Host: host, Port: port} }

type Registry struct{ Names []string }

func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) Add(name string) { r.Names = append(r.Names, name) }

func newTestContainer(t *testing.T) *di.Container {
	t.Helper()
	types := di.NewTypeRegistry().
		MustRegister("Mailer", NewMailer).
		MustRegister("Registry", NewRegistry)

	c := di.New(di.WithTypes(types))
	c.SetParameter("host", "smtp.local")
	c.SetParameter("port", 2525)
	c.SetParameter("dsn", "%host%:%port%")

	require.NoError(t, c.Register("mailer", di.Options{
		"class":     "Mailer",
		"arguments": []any{"%host%", "%port%"},
		"aliases":   []any{"smtp"},
		"notify":    []any{[]any{"@registry", "add", []any{"@="}}},
	}))
	require.NoError(t, c.Register("registry", "Registry"))
	require.NoError(t, c.Register("secret", di.Options{"class": "Registry", "private": true}))
	return c
}

func request(t *testing.T, h http.Handler, path string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func TestListServices(t *testing.T) {
	host := New(newTestContainer(t))

	var body struct {
		Services []serviceSummary `json:"services"`
		Aliases  map[string]string `json:"aliases"`
	}
	require.Equal(t, http.StatusOK, request(t, host.Handler(), "/services", &body))

	names := make([]string, 0, len(body.Services))
	for _, s := range body.Services {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{di.ContainerName, "mailer", "registry", "secret"}, names)
	assert.Equal(t, "mailer", body.Aliases["smtp"])
	assert.False(t, body.Services[2].Private)
	assert.True(t, body.Services[3].Private)
}

func TestGetService(t *testing.T) {
	c := newTestContainer(t)
	host := New(c)

	var view serviceView
	require.Equal(t, http.StatusOK, request(t, host.Handler(), "/services/SMTP", &view))
	assert.Equal(t, "mailer", view.Name)
	assert.Equal(t, "class", view.Kind)
	assert.Equal(t, "Mailer", view.Class)
	assert.Equal(t, []any{"%host%", "%port%"}, view.Arguments)
	assert.Equal(t, []string{"smtp"}, view.Aliases)
	assert.False(t, view.Instantiated)
	require.Len(t, view.Notify, 1)
	assert.Equal(t, "registry", view.Notify[0].Target)

	_, err := c.Get("mailer")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, request(t, host.Handler(), "/services/mailer", &view))
	assert.True(t, view.Instantiated)

	var failure map[string]string
	assert.Equal(t, http.StatusNotFound, request(t, host.Handler(), "/services/unknown", &failure))
	assert.Contains(t, failure["error"], "unknown")
}

func TestObjectServiceIsDescribed(t *testing.T) {
	c := di.New()
	require.NoError(t, c.Set("clock", time.UTC))

	var view serviceView
	require.Equal(t, http.StatusOK, request(t, New(c).Handler(), "/services/clock", &view))
	assert.Equal(t, "object", view.Kind)
}

func TestParameters(t *testing.T) {
	host := New(newTestContainer(t))

	var all struct {
		Parameters map[string]any `json:"parameters"`
	}
	require.Equal(t, http.StatusOK, request(t, host.Handler(), "/parameters", &all))
	assert.Equal(t, "smtp.local:2525", all.Parameters["dsn"])
	assert.EqualValues(t, 2525, all.Parameters["port"])

	var one map[string]any
	require.Equal(t, http.StatusOK, request(t, host.Handler(), "/parameters/dsn", &one))
	assert.Equal(t, "smtp.local:2525", one["value"])

	assert.Equal(t, http.StatusNotFound, request(t, host.Handler(), "/parameters/missing", nil))
}

func TestBrokenParameter(t *testing.T) {
	c := di.New()
	c.SetParameter("broken", "%broken%")

	assert.Equal(t, http.StatusUnprocessableEntity, request(t, New(c).Handler(), "/parameters/broken", nil))
}

func TestNotifications(t *testing.T) {
	c := newTestContainer(t)
	host := New(c)

	var body struct {
		Pending   map[string][]notificationView `json:"pending"`
		Delivered map[string][]notificationView `json:"delivered"`
	}
	require.Equal(t, http.StatusOK, request(t, host.Handler(), "/notifications", &body))
	require.Len(t, body.Pending["registry"], 1)
	assert.Equal(t, "mailer", body.Pending["registry"][0].Sender)
	assert.Empty(t, body.Delivered)

	registry, err := c.Get("registry")
	require.NoError(t, err)
	assert.Equal(t, []string{"mailer"}, registry.(*Registry).Names)

	body.Pending, body.Delivered = nil, nil
	require.Equal(t, http.StatusOK, request(t, host.Handler(), "/notifications", &body))
	assert.Empty(t, body.Pending)
	assert.Len(t, body.Delivered["registry"], 1)
}

func TestValidate(t *testing.T) {
	c := newTestContainer(t)
	host := New(c)

	var ok struct {
		Valid  bool     `json:"valid"`
		Errors []string `json:"errors"`
	}
	require.Equal(t, http.StatusOK, request(t, host.Handler(), "/validate", &ok))
	assert.True(t, ok.Valid)

	require.NoError(t, c.Register("needy", di.Options{"class": "Mailer", "arguments": []any{"@ghost", "@phantom"}}))

	var bad struct {
		Valid  bool     `json:"valid"`
		Errors []string `json:"errors"`
	}
	require.Equal(t, http.StatusConflict, request(t, host.Handler(), "/validate", &bad))
	assert.False(t, bad.Valid)
	assert.Len(t, bad.Errors, 2)
}

func TestHostLifecycle(t *testing.T) {
	host := New(newTestContainer(t), WithPort(0))

	done := make(chan error, 1)
	go func() { done <- host.Start(context.Background()) }()

	require.Eventually(t, func() bool { return host.Address() != "" }, 2*time.Second, 10*time.Millisecond)

	_, port, err := net.SplitHostPort(host.Address())
	require.NoError(t, err)
	resp, err := http.Get("http://127.0.0.1:" + port + "/services")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, host.Stop(ctx))
	assert.NoError(t, <-done)
}
