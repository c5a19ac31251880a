package clickhouse

import (
	"errors"
	"net/url"
	"testing"
	"time"
)

func TestBuildDSN(t *testing.T) {
	cfg := defaultClientConfig()
	for _, opt := range []ClientOption{
		WithHost("ch.local"),
		WithPort(9440),
		WithDatabase("fincast"),
		WithCredentials("svc", "p@ss"),
		WithMaxExecutionTime(90 * time.Second),
		WithAsyncInsert(true, true),
	} {
		opt(&cfg)
	}

	u, err := url.Parse(buildDSN(cfg))
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	if u.Scheme != "clickhouse" || u.Host != "ch.local:9440" || u.Path != "/fincast" {
		t.Fatalf("unexpected dsn %s", u)
	}
	if pw, _ := u.User.Password(); u.User.Username() != "svc" || pw != "p@ss" {
		t.Fatalf("credentials not encoded: %s", u.User)
	}
	q := u.Query()
	if q.Get("max_execution_time") != "90" || q.Get("async_insert") != "1" || q.Get("wait_for_async_insert") != "1" {
		t.Fatalf("unexpected query %v", q)
	}
	if q.Get("dial_timeout") != "5s" {
		t.Fatalf("dial_timeout = %q", q.Get("dial_timeout"))
	}
}

func TestBuildDSNHTTP(t *testing.T) {
	cfg := defaultClientConfig()
	WithHost("localhost")(&cfg)
	WithHTTP(true)(&cfg)
	WithAsyncInsert(false, true)(&cfg)

	u, err := url.Parse(buildDSN(cfg))
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	if u.Scheme != "http" {
		t.Fatalf("scheme = %s", u.Scheme)
	}
	if u.Query().Has("wait_for_async_insert") {
		t.Fatalf("wait flag set without async insert")
	}
}

func TestNewClientRequiresHost(t *testing.T) {
	if _, err := NewClient(WithPort(9000)); !errors.Is(err, ErrHostRequired) {
		t.Fatalf("expected ErrHostRequired, got %v", err)
	}
}
