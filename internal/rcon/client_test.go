package rcon

import (
	"errors"
	"io"
	"reflect"
	"testing"
)

func TestParsePlayerList(t *testing.T) {
	testCases := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "two players",
			body: "There are 2 of a max of 20 players online: Alice, Bob",
			want: []string{"Alice", "Bob"},
		},
		{
			name: "single player",
			body: "There are 1 of a max of 20 players online: Alice",
			want: []string{"Alice"},
		},
		{
			name: "empty server",
			body: "There are 0 of a max of 20 players online: ",
			want: []string{},
		},
		{
			name: "no separator",
			body: "nothing useful here",
			want: []string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := parsePlayerList(tc.body)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("parsePlayerList(%q) = %#v, want %#v", tc.body, got, tc.want)
			}
		})
	}
}

func TestParseTickStats(t *testing.T) {
	body := "Target tick rate: 20.0 per second.\n" +
		"Average time per tick: 13.2ms (Target: 50.0ms)\n" +
		"Percentiles: P50: 13.0ms P95: 16.0ms P99: 18.6ms, sample: 100"

	stats, err := parseTickStats(body)
	if err != nil {
		t.Fatalf("parseTickStats failed: %v", err)
	}

	want := TickStats{
		Average: "13.2ms",
		Target:  "50.0ms",
		P50:     "13.0ms",
		P95:     "16.0ms",
		P99:     "18.6ms",
	}
	if stats != want {
		t.Fatalf("parseTickStats = %+v, want %+v", stats, want)
	}
}

func TestParseTickStatsWrongTokenCount(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"too few", "Average time per tick: 13.2ms"},
		{"too many", "1ms 2ms 3ms 4ms 5ms 6ms"},
		{"no ms tokens", "the server is not in the mood"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseTickStats(tc.body)

			var tickErr *TickStatsError
			if !errors.As(err, &tickErr) {
				t.Fatalf("expected TickStatsError, got %v", err)
			}
			// The raw server text must survive for diagnostics.
			if tickErr.Raw != tc.body {
				t.Fatalf("TickStatsError.Raw = %q, want %q", tickErr.Raw, tc.body)
			}
		})
	}
}

func TestClassifyBrokenConnection(t *testing.T) {
	for _, err := range []error{
		&ReadError{Err: io.ErrUnexpectedEOF},
		&WriteError{Err: io.ErrClosedPipe},
	} {
		classified := classify(err)

		var broken *BrokenConnectionError
		if !errors.As(classified, &broken) {
			t.Fatalf("classify(%v): expected BrokenConnectionError, got %v", err, classified)
		}
		if !errors.Is(classified, err) {
			t.Fatalf("classified error must wrap the original, got %v", classified)
		}
	}
}

func TestClassifyPassThrough(t *testing.T) {
	for _, err := range []error{
		ErrAuthFailed,
		&ConnectError{Err: io.EOF},
		&IDMismatchError{Want: 1, Got: 2},
		&DecodeError{Reason: "whatever"},
	} {
		if classified := classify(err); classified != err {
			t.Fatalf("classify(%v) = %v, want pass-through", err, classified)
		}
	}
}

func TestClassifyNil(t *testing.T) {
	if err := classify(nil); err != nil {
		t.Fatalf("classify(nil) = %v, want nil", err)
	}
}
