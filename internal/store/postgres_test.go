package store

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// fakeRow scans fixed column values into the destinations in order.
type fakeRow []any

func (r fakeRow) Scan(dest ...any) error {
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r[i]))
	}
	return nil
}

func quoteRow(price string) fakeRow {
	seed := "42"
	return fakeRow{
		"q1", "MC-VANILLA-CALL-EUROPEAN-K90", "VANILLA", []string{"m1"},
		[]byte(`{"family":"VANILLA","strike":"90"}`), []float64{100},
		1.0, 100, 10, &seed, 0.0, price, int64(3), time.Unix(0, 0).UTC(),
	}
}

func TestScanQuote(t *testing.T) {
	q, err := scanQuote(quoteRow("10.12345678"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.Price.Equal(decimal.RequireFromString("10.12345678")) {
		t.Errorf("expected price 10.12345678, got %s", q.Price)
	}
	if q.Seed == nil || *q.Seed != 42 {
		t.Errorf("expected seed 42, got %v", q.Seed)
	}
	if !q.Contract.Strike.Equal(decimal.NewFromInt(90)) {
		t.Errorf("expected strike 90, got %s", q.Contract.Strike)
	}
}

func TestScanQuote_CorruptPrice(t *testing.T) {
	_, err := scanQuote(quoteRow("not-a-number"))
	if err == nil {
		t.Fatal("expected error for a price that is not a number")
	}
	if !strings.Contains(err.Error(), "decode price of quote q1") {
		t.Errorf("unexpected error: %v", err)
	}
}
