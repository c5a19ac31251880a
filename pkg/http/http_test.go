package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestClientRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.URL.Query().Get("interval") != "1d" {
			t.Errorf("missing query param: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(WithRetry(3, time.Millisecond))
	var out struct {
		OK bool `json:"ok"`
	}
	err := c.SendAndParse(context.Background(), &RequestOptions{
		Method:      MethodGet,
		URL:         srv.URL,
		QueryParams: map[string][]string{"interval": {"1d"}},
	}, &out)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !out.OK || calls.Load() != 3 {
		t.Fatalf("expected success on third attempt, ok=%v calls=%d", out.OK, calls.Load())
	}
}

func TestClientReturnsLastStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(WithRetry(2, time.Millisecond))
	err := c.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL}, nil)
	if err == nil {
		t.Fatalf("expected status error")
	}
}

func TestClientResendsBody(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in["symbol"] != "BBCA.JK" {
			t.Errorf("body not resent: %v %v", in, err)
		}
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(WithRetry(2, time.Millisecond))
	err := c.SendAndParse(context.Background(), &RequestOptions{
		Method: MethodPost,
		URL:    srv.URL,
		Body:   map[string]string{"symbol": "BBCA.JK"},
	}, nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestAppErrorResponse(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	appErr := NotFoundError("no model").WithParam("symbol", "BBCA.JK").WithError(errors.New("missing"))
	if err := AppErrorResponse(c, appErr); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var body struct {
		Status int        `json:"status"`
		Data   []AppError `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != http.StatusNotFound || len(body.Data) != 1 || body.Data[0].Code != "ERR_NOT_FOUND" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	_ = AppErrorResponse(c, errors.New("boom"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("plain errors should map to 500, got %d", rec.Code)
	}
}

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return SuccessResponse(c, "pong") })
	e.GET("/panic", func(c echo.Context) error { panic("boom") })
}

func TestServerRoutes(t *testing.T) {
	s := NewServer(Handlers{pingHandler{}}, WithMetrics(false, ""))
	for path, want := range map[string]int{"/ping": 200, "/healthz": 200, "/panic": 500, "/metrics": 404} {
		rec := httptest.NewRecorder()
		s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != want {
			t.Fatalf("%s: status %d, want %d", path, rec.Code, want)
		}
	}
}
