package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeNanos(t *testing.T) {
	got, ok := ParseTime("2020-01-01T00:00:00.000000000Z")
	if !ok {
		t.Fatalf("expected ok")
	}
	if !got.Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeDate(t *testing.T) {
	got, ok := ParseTime("2021-03-04")
	if !ok {
		t.Fatalf("expected ok")
	}
	if FormatDate(got) != "2021-03-04" {
		t.Fatalf("unexpected date %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeUnixMillis(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got, ok := ParseTime(FormatMillis(want))
	if !ok {
		t.Fatalf("expected ok")
	}
	if !got.Equal(want) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
	got = ParseTimeDefault("not-a-time", def)
	if !got.Equal(def) {
		t.Fatalf("expected default for garbage input")
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList("btc, eth", "btc", "", "sol")
	want := []string{"btc", "eth", "sol"}
	if len(got) != len(want) {
		t.Fatalf("unexpected list %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected list %v", got)
		}
	}
}
