package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	xhttp "FinCast/pkg/http"
)

const chartBody = `{"chart":{"result":[{"meta":{"symbol":"BBCA.JK","exchangeTimezoneName":"Asia/Jakarta"},
"timestamp":[1704160800,1704247200,1704333600,1704340800],
"indicators":{"quote":[{"open":[9400,9450,null,9500],"high":[9500,9500,null,9550],"low":[9350,9400,null,9450],
"close":[9450,9475,null,9525],"volume":[1000,2000,null,3000]}]}}],"error":null}}`

func TestHistoryParsesChart(t *testing.T) {
	var gotPath, gotUA, gotInterval string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		gotInterval = r.URL.Query().Get("interval")
		_, _ = w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	c := New(xhttp.NewClient(), time.UTC, WithBaseURL(srv.URL))
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series, err := c.History(context.Background(), "BBCA.JK", from, from.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if gotPath != "/v8/finance/chart/BBCA.JK" || gotInterval != "1d" || !strings.Contains(gotUA, "fincast") {
		t.Fatalf("unexpected request path=%q interval=%q ua=%q", gotPath, gotInterval, gotUA)
	}
	// the null row is dropped and the last two timestamps share 2024-01-04 WIB
	if series.Len() != 3 {
		t.Fatalf("expected 3 bars, got %d: %+v", series.Len(), series.Bars)
	}
	last := series.Bars[2]
	if last.Date.String() != "2024-01-04" || last.Close != 9525 || last.Volume != 3000 {
		t.Fatalf("unexpected last bar %+v", last)
	}
	if err := series.Validate(); err != nil {
		t.Fatalf("series not ordered: %v", err)
	}
}

func TestHistoryNotFoundIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
	}))
	defer srv.Close()

	c := New(xhttp.NewClient(), time.UTC, WithBaseURL(srv.URL))
	series, err := c.History(context.Background(), "NOPE.JK", time.Now().AddDate(0, -1, 0), time.Now())
	if err != nil || !series.Empty() {
		t.Fatalf("expected empty series, got %d bars (%v)", series.Len(), err)
	}
}

func TestHistoryServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(xhttp.NewClient(), time.UTC, WithBaseURL(srv.URL))
	if _, err := c.History(context.Background(), "BBCA.JK", time.Now().AddDate(0, -1, 0), time.Now()); err == nil {
		t.Fatalf("expected error on 502")
	}
}
