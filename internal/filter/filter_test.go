package filter

import (
	"testing"
	"time"

	"github.com/console-mcp/broker/internal/model"
)

func TestCompileMatchLogByLevel(t *testing.T) {
	c := Compile(Descriptor{Levels: []string{"error", "warn"}}, time.Now())

	if !c.MatchLog(model.LogEntry{Level: model.LevelError}) {
		t.Error("error level should match")
	}
	if c.MatchLog(model.LogEntry{Level: model.LevelInfo}) {
		t.Error("info level should not match")
	}
}

func TestCompileMatchLogByTabAndSession(t *testing.T) {
	tab := 7
	sess := "s1"
	c := Compile(Descriptor{TabID: &tab, SessionID: &sess}, time.Now())

	if !c.MatchLog(model.LogEntry{TabID: 7, SessionID: "s1"}) {
		t.Error("matching tab+session should match")
	}
	if c.MatchLog(model.LogEntry{TabID: 7, SessionID: "s2"}) {
		t.Error("mismatched session should not match")
	}
	if c.MatchLog(model.LogEntry{TabID: 8, SessionID: "s1"}) {
		t.Error("mismatched tab should not match")
	}
}

func TestCompileURLPatternCaseInsensitive(t *testing.T) {
	c := Compile(Descriptor{URLPattern: "API/users"}, time.Now())

	if !c.MatchLog(model.LogEntry{URL: "https://example.com/api/USERS/1"}) {
		t.Error("url pattern match should be case-insensitive")
	}
	if c.MatchLog(model.LogEntry{URL: "https://example.com/other"}) {
		t.Error("non-matching url should not match")
	}
}

func TestCompileInvalidURLPatternIsNoConstraint(t *testing.T) {
	c := Compile(Descriptor{URLPattern: "(unterminated"}, time.Now())

	if !c.MatchLog(model.LogEntry{URL: "https://example.com/anything"}) {
		t.Error("invalid regex should be treated as no constraint, not reject everything")
	}
}

func TestCompileMatchNetURLMatchesEitherField(t *testing.T) {
	c := Compile(Descriptor{URLPattern: "cdn"}, time.Now())

	if !c.MatchNet(model.NetEntry{URL: "https://cdn.example.com/a.js", PageURL: "https://example.com"}) {
		t.Error("should match on URL field")
	}
	if !c.MatchNet(model.NetEntry{URL: "https://example.com/a.js", PageURL: "https://cdn.example.com"}) {
		t.Error("should match on PageURL field")
	}
	if c.MatchNet(model.NetEntry{URL: "https://example.com/a.js", PageURL: "https://example.com"}) {
		t.Error("should not match when neither field matches")
	}
}

func TestCompileMatchNetByInitiatorAndDuration(t *testing.T) {
	min := 10.0
	max := 100.0
	c := Compile(Descriptor{
		InitiatorTypes: []string{"fetch", "xmlhttprequest"},
		MinDuration:    &min,
		MaxDuration:    &max,
	}, time.Now())

	if !c.MatchNet(model.NetEntry{InitiatorType: model.InitiatorFetch, Duration: 50}) {
		t.Error("fetch within duration bounds should match")
	}
	if c.MatchNet(model.NetEntry{InitiatorType: model.InitiatorImg, Duration: 50}) {
		t.Error("non-listed initiator should not match")
	}
	if c.MatchNet(model.NetEntry{InitiatorType: model.InitiatorFetch, Duration: 200}) {
		t.Error("duration above max should not match")
	}
}

func TestCompileMatchNetIsError(t *testing.T) {
	wantErr := true
	c := Compile(Descriptor{IsError: &wantErr}, time.Now())

	if !c.MatchNet(model.NetEntry{IsError: true}) {
		t.Error("isError=true entry should match isError filter")
	}
	if c.MatchNet(model.NetEntry{IsError: false}) {
		t.Error("isError=false entry should not match isError filter")
	}
}

func TestCompileAfterBeforeBounds(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	c := Compile(Descriptor{After: "10m", Before: now.Format(time.RFC3339)}, now)

	inBounds := now.Add(-5 * time.Minute).UnixMilli()
	tooOld := now.Add(-20 * time.Minute).UnixMilli()

	if !c.MatchLog(model.LogEntry{Timestamp: inBounds}) {
		t.Error("timestamp within [after, before] should match")
	}
	if c.MatchLog(model.LogEntry{Timestamp: tooOld}) {
		t.Error("timestamp older than after should not match")
	}
}

func TestOnlyTabIDDetectsPureTabFilter(t *testing.T) {
	tab := 3
	c := Compile(Descriptor{TabID: &tab}, time.Now())
	got, ok := c.OnlyTabID()
	if !ok || got != 3 {
		t.Fatalf("OnlyTabID() = %d, %v; want 3, true", got, ok)
	}
}

func TestOnlyTabIDFalseWhenOtherFieldsSet(t *testing.T) {
	tab := 3
	c := Compile(Descriptor{TabID: &tab, URLPattern: "x"}, time.Now())
	if _, ok := c.OnlyTabID(); ok {
		t.Error("OnlyTabID() should be false when a URL pattern is also set")
	}
	c2 := Compile(Descriptor{}, time.Now())
	if _, ok := c2.OnlyTabID(); ok {
		t.Error("OnlyTabID() should be false with no tabId set")
	}
}

func TestParseRelativeTimeOffsetsAndAbsolute(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	ms, ok := ParseRelativeTime("5m", now)
	if !ok || ms != now.Add(-5*time.Minute).UnixMilli() {
		t.Errorf("5m offset = %d, ok=%v", ms, ok)
	}

	ms, ok = ParseRelativeTime(now.Format(time.RFC3339), now)
	if !ok || ms != now.UnixMilli() {
		t.Errorf("absolute timestamp = %d, ok=%v", ms, ok)
	}

	if _, ok := ParseRelativeTime("", now); ok {
		t.Error("empty string should yield ok=false")
	}
	if _, ok := ParseRelativeTime("garbage", now); ok {
		t.Error("unparsable string should yield ok=false")
	}
	if _, ok := ParseRelativeTime("-5m", now); ok {
		t.Error("negative offset should yield ok=false")
	}
}
