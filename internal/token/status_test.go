package token

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/amorokk/bee/internal/fetcher"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		fixed []int
		want  Availability
	}{
		{"empty", nil, Unknown},
		{"all available", []int{1, 1}, Available},
		{"all sold", []int{2, 2}, SoldOut},
		{"mixed", []int{1, 2}, Partial},
		{"mixed reversed", []int{2, 1}, Partial},
		{"single open", []int{1}, Available},
		{"single sold", []int{2}, SoldOut},
		{"unexpected codes only", []int{3, 0}, SoldOut},
		{"open among unexpected", []int{3, 1}, Available},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.fixed); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.fixed, got, tt.want)
			}
		})
	}
}

func TestClassifyOrderIndependent(t *testing.T) {
	perms := [][]int{{1, 2, 2}, {2, 1, 2}, {2, 2, 1}}
	for _, p := range perms {
		if got := Classify(p); got != Partial {
			t.Errorf("Classify(%v) = %v, want Partial", p, got)
		}
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	apr := decimal.RequireFromString("0.025")
	observed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := Status{Coin: "ALGO", FixedList: []int{1, 2}, APR: &apr, ObservedAt: observed}

	serialized := s.Serialize()
	parsed := Parse("algo", serialized)

	if !parsed.Equal(s) {
		t.Fatalf("round trip lost availability state: %+v vs %+v", parsed, s)
	}
	if parsed.APR == nil || !parsed.APR.Equal(apr) {
		t.Fatalf("round trip lost apr: %+v", parsed.APR)
	}
	if !parsed.ObservedAt.Equal(observed) {
		t.Fatalf("round trip lost timestamp: %v", parsed.ObservedAt)
	}
}

func TestSerializeUnknownCollapsesToNoData(t *testing.T) {
	s := Status{Coin: "ALGO", ObservedAt: time.Now()}
	if got := s.Serialize(); got != NoData {
		t.Fatalf("expected %q, got %q", NoData, got)
	}
}

func TestParseToleratesMissingTimestamp(t *testing.T) {
	before := time.Now().UTC()
	parsed := Parse("algo", `{"fixed_list": [1]}`)
	after := time.Now().UTC()

	if parsed.Availability() != Available {
		t.Fatalf("expected available, got %v", parsed.Availability())
	}
	if parsed.ObservedAt.Before(before) || parsed.ObservedAt.After(after) {
		t.Fatalf("expected substituted current timestamp, got %v", parsed.ObservedAt)
	}
}

func TestParseNoDataAndGarbage(t *testing.T) {
	for _, raw := range []string{NoData, "", "{broken"} {
		parsed := Parse("btc", raw)
		if parsed.Availability() != Unknown {
			t.Errorf("Parse(%q): expected unknown availability, got %v", raw, parsed.Availability())
		}
		if parsed.Coin != "BTC" {
			t.Errorf("Parse(%q): expected coin BTC, got %q", raw, parsed.Coin)
		}
	}
}

func TestEqualIgnoresAPRAndTimestamp(t *testing.T) {
	apr1 := decimal.RequireFromString("0.02")
	apr2 := decimal.RequireFromString("0.09")
	a := Status{Coin: "DOT", FixedList: []int{1}, APR: &apr1, ObservedAt: time.Now()}
	b := Status{Coin: "DOT", FixedList: []int{1}, APR: &apr2, ObservedAt: time.Now().Add(time.Hour)}

	if !a.Equal(b) {
		t.Fatal("apr drift must not register as a change")
	}
	c := Status{Coin: "DOT", FixedList: []int{2}}
	if a.Equal(c) {
		t.Fatal("different sale statuses must register as a change")
	}
}

func TestFromRecord(t *testing.T) {
	rec := fetcher.Record{
		"asset":    "algo",
		"sort_apr": "0.025",
		"fixed_list": []any{
			map[string]any{"sale_status": float64(1)},
		},
	}
	s := FromRecord(rec)
	if s.Coin != "ALGO" {
		t.Fatalf("expected coin ALGO, got %q", s.Coin)
	}
	if s.Availability() != Available {
		t.Fatalf("expected available, got %v", s.Availability())
	}
	if s.APR == nil || s.APR.String() != "0.025" {
		t.Fatalf("unexpected apr: %v", s.APR)
	}
}

func TestFormat(t *testing.T) {
	apr := decimal.RequireFromString("0.025")
	s := Status{Coin: "ALGO", FixedList: []int{1}, APR: &apr}

	got := s.Format()
	want := "ALGO: 🟢 available for purchase [1] (APR: 2.50%)"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	unknown := Status{Coin: "BTC"}
	if got := unknown.Format(); !strings.Contains(got, "⚪") || !strings.Contains(got, "no data") {
		t.Fatalf("unexpected unknown formatting: %q", got)
	}
}
