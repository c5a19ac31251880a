package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"FinCast/internal/domain/models"
	"FinCast/internal/usecase"
)

type fakeForecaster struct {
	symbols []string
	err     error
}

func (f *fakeForecaster) Forecast(_ context.Context, symbol string) (models.ForecastView, error) {
	f.symbols = append(f.symbols, symbol)
	if f.err != nil {
		return models.ForecastView{}, f.err
	}
	return models.ForecastView{
		Name: "Bank Central Asia Tbk (BBCA)",
		Record: models.ForecastRecord{
			Instrument:       symbol,
			PredictedClose:   9525,
			ReferenceClose:   9400,
			PercentageChange: 1.33,
			AccuracyMAPE:     0.87,
			ApplicableDate:   models.Date{Year: 2024, Month: 12, Day: 31},
		},
	}, nil
}

func (f *fakeForecaster) Instruments() []models.Instrument {
	return []models.Instrument{{Symbol: "BBCA.JK", Name: "Bank Central Asia Tbk (BBCA)"}, {Symbol: "TLKM.JK", Name: "Telkom"}}
}

type fakeTrainer struct {
	err error
}

func (f *fakeTrainer) TrainInstrument(_ context.Context, symbol string) (models.TrainingReport, error) {
	if f.err != nil {
		return models.TrainingReport{}, f.err
	}
	return models.TrainingReport{Instrument: symbol, ArtifactID: models.ArtifactID(symbol), Examples: 240}, nil
}

func (f *fakeTrainer) TrainAll(context.Context) ([]models.TrainingReport, error) { return nil, nil }

func serve(t *testing.T, h *ForecastEchoHandler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestInstruments(t *testing.T) {
	f := &fakeForecaster{}
	rec := serve(t, NewForecastEchoHandler(nil, f, f, nil), http.MethodGet, "/api/instruments", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var list struct {
		Rows  []models.Instrument `json:"rows"`
		Total int64               `json:"total"`
	}
	if err := json.Unmarshal(decode(t, rec).Data, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Total != 2 || list.Rows[0].Symbol != "BBCA.JK" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestForecastOK(t *testing.T) {
	f := &fakeForecaster{}
	rec := serve(t, NewForecastEchoHandler(nil, f, f, nil), http.MethodGet, "/api/forecast?symbol=%20bbca.jk", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if len(f.symbols) != 1 || f.symbols[0] != "BBCA.JK" {
		t.Fatalf("symbol should be normalized, got %v", f.symbols)
	}
	var resp ForecastResponse
	if err := json.Unmarshal(decode(t, rec).Data, &resp); err != nil {
		t.Fatalf("decode forecast: %v", err)
	}
	if resp.Record.PredictedClose != 9525 || resp.Display.PredictedClose != "Rp 9.525,00" || resp.Display.ApplicableDate != "2024-12-31" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestForecastMissingSymbol(t *testing.T) {
	f := &fakeForecaster{}
	rec := serve(t, NewForecastEchoHandler(nil, f, f, nil), http.MethodGet, "/api/forecast", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ERR_REQUIRED") {
		t.Fatalf("expected required error, got %s", rec.Body.String())
	}
	if len(f.symbols) != 0 {
		t.Fatalf("forecaster must not be called")
	}
}

func TestForecastErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("AAPL: %w", models.ErrUnknownInstrument), http.StatusBadRequest, "ERR_UNKNOWN_INSTRUMENT"},
		{fmt.Errorf("load: %w", models.ErrModelNotFound), http.StatusNotFound, "ERR_MODEL_NOT_FOUND"},
		{fmt.Errorf("fetch: %w", models.ErrDataUnavailable), http.StatusNotFound, "ERR_DATA_UNAVAILABLE"},
		{fmt.Errorf("derive: %w", models.ErrInsufficientData), http.StatusUnprocessableEntity, "ERR_INSUFFICIENT_DATA"},
		{fmt.Errorf("change: %w", models.ErrDivisionByZero), http.StatusUnprocessableEntity, "ERR_DIVISION_BY_ZERO"},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError, "ERR_INTERNAL"},
	}
	for _, c := range cases {
		f := &fakeForecaster{err: c.err}
		rec := serve(t, NewForecastEchoHandler(nil, f, f, nil), http.MethodGet, "/api/forecast?symbol=BBCA.JK", "")
		if rec.Code != c.status {
			t.Fatalf("%v: status %d, want %d", c.err, rec.Code, c.status)
		}
		if !strings.Contains(rec.Body.String(), c.code) {
			t.Fatalf("%v: expected code %s in %s", c.err, c.code, rec.Body.String())
		}
	}
}

func TestForecastRateLimited(t *testing.T) {
	f := &fakeForecaster{}
	h := NewForecastEchoHandler(nil, f, f, nil)
	h.SetRateLimit(1, 0.0001)
	if rec := serve(t, h, http.MethodGet, "/api/forecast?symbol=BBCA.JK", ""); rec.Code != http.StatusOK {
		t.Fatalf("first request: %d", rec.Code)
	}
	if rec := serve(t, h, http.MethodGet, "/api/forecast?symbol=BBCA.JK", ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited, got %d", rec.Code)
	}
}

func TestTrain(t *testing.T) {
	f := &fakeForecaster{}
	h := NewForecastEchoHandler(nil, f, f, &fakeTrainer{})

	rec := serve(t, h, http.MethodPost, "/api/train", `{"symbol":"bbca.jk"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var rep models.TrainingReport
	if err := json.Unmarshal(decode(t, rec).Data, &rep); err != nil || rep.Instrument != "BBCA.JK" {
		t.Fatalf("unexpected report %+v (%v)", rep, err)
	}

	if rec := serve(t, h, http.MethodPost, "/api/train", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty request: %d", rec.Code)
	}
	if rec := serve(t, h, http.MethodPost, "/api/train", `{"all":true}`); rec.Code != http.StatusAccepted {
		t.Fatalf("train all: %d", rec.Code)
	}

	busy := NewForecastEchoHandler(nil, f, f, &fakeTrainer{err: fmt.Errorf("train BBCA.JK: %w", usecase.ErrTrainingInProgress)})
	if rec := serve(t, busy, http.MethodPost, "/api/train", `{"symbol":"BBCA.JK"}`); rec.Code != http.StatusConflict {
		t.Fatalf("locked training: %d", rec.Code)
	}
}

type recordingQueue struct {
	types []string
}

func (q *recordingQueue) Enqueue(_ context.Context, msgType string, _ interface{}) error {
	q.types = append(q.types, msgType)
	return nil
}

func TestTrainAllIsQueued(t *testing.T) {
	f := &fakeForecaster{}
	q := &recordingQueue{}
	h := NewForecastEchoHandler(nil, f, f, &fakeTrainer{})
	h.SetQueue(q)
	rec := serve(t, h, http.MethodPost, "/api/train", `{"all":true}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if len(q.types) != 1 || q.types[0] != usecase.TrainJobType {
		t.Fatalf("expected one queued training job, got %v", q.types)
	}
}

func TestTrainRouteDisabledWithoutTrainer(t *testing.T) {
	f := &fakeForecaster{}
	rec := serve(t, NewForecastEchoHandler(nil, f, f, nil), http.MethodPost, "/api/train", `{"symbol":"BBCA.JK"}`)
	if rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected no train route, got %d", rec.Code)
	}
}
