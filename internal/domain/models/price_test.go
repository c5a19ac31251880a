package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDateJSONZeroRoundTrip(t *testing.T) {
	b, err := json.Marshal(ModelMeta{Seed: 42})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var meta ModelMeta
	if err := json.Unmarshal(b, &meta); err != nil {
		t.Fatalf("unmarshal %s: %v", b, err)
	}
	if meta.Seed != 42 || !meta.FirstDate.IsZero() || !meta.LastDate.IsZero() {
		t.Fatalf("unexpected meta %+v", meta)
	}
}

func TestDateUnmarshalJSON(t *testing.T) {
	cases := []struct {
		in   string
		want Date
	}{
		{`"2024-12-31"`, Date{Year: 2024, Month: time.December, Day: 31}},
		{`null`, Date{}},
		{`""`, Date{}},
		{`"0000-00-00"`, Date{}},
	}
	for _, c := range cases {
		d := Date{Year: 1999, Month: time.January, Day: 1}
		if err := json.Unmarshal([]byte(c.in), &d); err != nil {
			t.Fatalf("unmarshal %s: %v", c.in, err)
		}
		if d != c.want {
			t.Fatalf("unmarshal %s = %v, want %v", c.in, d, c.want)
		}
	}
	var d Date
	if err := json.Unmarshal([]byte(`20241231`), &d); err == nil {
		t.Fatalf("expected error for non-string date")
	}
}

func TestDateMarshalJSON(t *testing.T) {
	b, _ := json.Marshal(Date{Year: 2024, Month: time.January, Day: 2})
	if string(b) != `"2024-01-02"` {
		t.Fatalf("got %s", b)
	}
	b, _ = json.Marshal(Date{})
	if string(b) != "null" {
		t.Fatalf("zero date should marshal as null, got %s", b)
	}
}
