package trace

import (
	"testing"
)

func TestExtractSetupLatencyClockTimestamps(t *testing.T) {
	traceText := "12:00:00.100 INVITE sip:1001@example.com SIP/2.0\n" +
		"12:00:00.500 SIP/2.0 100 Trying\n" +
		"12:00:01.900 SIP/2.0 200 OK\n"

	got := ExtractSetupLatency(traceText)
	if got == nil {
		t.Fatal("Expected latency, got nil")
	}
	if *got != 1800 {
		t.Errorf("Expected 1800ms, got %d", *got)
	}
}

func TestExtractSetupLatencyEpochTimestamps(t *testing.T) {
	// 1700000000.250 and 1700000001.000 are 750ms apart.
	traceText := "1700000000.250 INVITE sip:1001@example.com SIP/2.0\n" +
		"1700000001.000 SIP/2.0 180 Ringing\n"

	got := ExtractSetupLatency(traceText)
	if got == nil {
		t.Fatal("Expected latency, got nil")
	}
	if *got != 750 {
		t.Errorf("Expected 750ms, got %d", *got)
	}
}

func TestExtractSetupLatencyIgnoresEarlierAnswer(t *testing.T) {
	// An answer carrying a timestamp before the INVITE belongs to another
	// exchange and must not pair.
	traceText := "12:00:05.000 INVITE sip:1001@example.com SIP/2.0\n" +
		"12:00:04.000 SIP/2.0 200 OK\n" +
		"12:00:06.000 SIP/2.0 180 Ringing\n"

	got := ExtractSetupLatency(traceText)
	if got == nil || *got != 1000 {
		t.Fatalf("Expected 1000ms from the later answer, got %v", got)
	}
}

func TestExtractSetupLatencyNoPair(t *testing.T) {
	if got := ExtractSetupLatency("SIP/2.0 200 OK\nno invite here\n"); got != nil {
		t.Errorf("Expected nil without an INVITE, got %d", *got)
	}
	if got := ExtractSetupLatency(""); got != nil {
		t.Errorf("Expected nil for empty trace, got %d", *got)
	}
}

func TestFallbackSetupLatency(t *testing.T) {
	got := FallbackSetupLatency(9500, 8)
	if got == nil || *got != 1500 {
		t.Fatalf("Expected 1500ms fallback, got %v", got)
	}

	if got := FallbackSetupLatency(7000, 8); got != nil {
		t.Errorf("Expected absent latency for non-positive result, got %d", *got)
	}
	if got := FallbackSetupLatency(8000, 8); got != nil {
		t.Errorf("Expected absent latency at exactly zero, got %d", *got)
	}
}

func TestLineTimestampMsClockWithoutFraction(t *testing.T) {
	ms, ok := lineTimestampMs("09:30:15 something")
	if !ok {
		t.Fatal("Expected clock timestamp to parse")
	}
	want := float64(((9*60+30)*60 + 15) * 1000)
	if ms != want {
		t.Errorf("Expected %v, got %v", want, ms)
	}
}

func TestLineTimestampMsNone(t *testing.T) {
	if _, ok := lineTimestampMs("INVITE sip:1001@example.com SIP/2.0"); ok {
		t.Error("Expected no timestamp on a bare request line")
	}
}
