package store

import (
	"testing"
	"time"

	"github.com/console-mcp/broker/internal/model"
)

func entry(id string, tab int, ts int64) model.LogEntry {
	return model.LogEntry{ID: id, TabID: tab, Timestamp: ts}
}

func TestAddEvictsOldestOnOverflow(t *testing.T) {
	s := New[model.LogEntry](2, 0)
	s.Add(entry("a", 1, 1))
	s.Add(entry("b", 1, 2))
	s.Add(entry("c", 1, 3))

	got := s.GetAll(nil, nil)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "b" || got[1].ID != "c" {
		t.Errorf("got = %+v, want [b c] (oldest entry 'a' evicted first)", got)
	}
}

func TestAddEvictsInStrictInsertionOrder(t *testing.T) {
	s := New[model.LogEntry](3, 0)
	s.Add(entry("a", 1, 1))
	s.Add(entry("b", 1, 2))
	s.Add(entry("c", 1, 3))
	s.Add(entry("d", 1, 4))
	s.Add(entry("e", 1, 5))

	got := s.GetAll(nil, nil)
	ids := make([]string, len(got))
	for i, e := range got {
		ids[i] = e.ID
	}
	want := []string{"c", "d", "e"}
	for i, id := range want {
		if ids[i] != id {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}

func TestTTLEvictsExpiredEntries(t *testing.T) {
	s := New[model.LogEntry](100, 10*time.Minute)
	base := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return base })

	s.Add(entry("old", 1, base.Add(-20*time.Minute).UnixMilli()))
	s.Add(entry("fresh", 1, base.UnixMilli()))

	got := s.GetAll(nil, nil)
	if len(got) != 1 || got[0].ID != "fresh" {
		t.Errorf("got = %+v, want only [fresh] after TTL eviction", got)
	}
}

func TestTTLZeroDisablesEviction(t *testing.T) {
	s := New[model.LogEntry](100, 0)
	base := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return base })

	s.Add(entry("old", 1, base.Add(-24*time.Hour).UnixMilli()))

	got := s.GetAll(nil, nil)
	if len(got) != 1 {
		t.Errorf("len = %d, want 1 (TTL disabled, nothing should be evicted)", len(got))
	}
}

func TestGetAllTabFastPathMatchesSlowPathScan(t *testing.T) {
	s := New[model.LogEntry](100, 0)
	s.Add(entry("a", 1, 1))
	s.Add(entry("b", 2, 2))
	s.Add(entry("c", 1, 3))
	s.Add(entry("d", 2, 4))

	tab := 1
	fast := s.GetAll(nil, &tab)
	slow := s.GetAll(func(e model.LogEntry) bool { return e.TabID == tab }, nil)

	if len(fast) != len(slow) {
		t.Fatalf("fast path returned %d entries, slow path returned %d", len(fast), len(slow))
	}
	for i := range fast {
		if fast[i].ID != slow[i].ID {
			t.Errorf("fast[%d].ID = %q, slow[%d].ID = %q", i, fast[i].ID, i, slow[i].ID)
		}
	}
	if len(fast) != 2 || fast[0].ID != "a" || fast[1].ID != "c" {
		t.Errorf("fast = %+v, want [a c]", fast)
	}
}

func TestGetAllTabFastPathReflectsEviction(t *testing.T) {
	s := New[model.LogEntry](2, 0)
	s.Add(entry("a", 1, 1))
	s.Add(entry("b", 1, 2))
	s.Add(entry("c", 1, 3))

	tab := 1
	got := s.GetAll(nil, &tab)
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "c" {
		t.Errorf("got = %+v, want [b c] (tab index should reflect capacity eviction)", got)
	}
}

func TestSubscribeDeliversExactlyOncePerMatchingAdd(t *testing.T) {
	s := New[model.LogEntry](100, 0)
	var received []string
	unsub := s.Subscribe(func(e model.LogEntry) bool { return e.TabID == 1 }, func(e model.LogEntry) {
		received = append(received, e.ID)
	})

	s.Add(entry("a", 1, 1))
	s.Add(entry("b", 2, 2))
	s.Add(entry("c", 1, 3))

	if len(received) != 2 || received[0] != "a" || received[1] != "c" {
		t.Errorf("received = %v, want [a c]", received)
	}

	unsub()
	s.Add(entry("d", 1, 4))
	if len(received) != 2 {
		t.Errorf("received = %v, want no further delivery after unsubscribe", received)
	}
}

func TestSubscribeMultipleSubscribersEachReceiveOnce(t *testing.T) {
	s := New[model.LogEntry](100, 0)
	var countA, countB int
	s.Subscribe(nil, func(model.LogEntry) { countA++ })
	s.Subscribe(nil, func(model.LogEntry) { countB++ })

	s.Add(entry("a", 1, 1))

	if countA != 1 || countB != 1 {
		t.Errorf("countA=%d countB=%d, want both 1", countA, countB)
	}
}

func TestClearWithNoFilterDropsEverything(t *testing.T) {
	s := New[model.LogEntry](100, 0)
	s.Add(entry("a", 1, 1))
	s.Add(entry("b", 2, 2))

	s.Clear(nil, nil)

	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestClearTabAndTimeAreOrSemantics(t *testing.T) {
	s := New[model.LogEntry](100, 0)
	s.Add(entry("keep-other-tab-late", 2, 100))
	s.Add(entry("drop-tab1-late", 1, 100))
	s.Add(entry("drop-tab1-early", 1, 10))
	s.Add(entry("keep-other-tab-early", 2, 10))

	tab := 1
	before := int64(50)
	// Clear drops entries that match BOTH constraints (tabId == 1 AND
	// timestamp < 50); an entry satisfying only one constraint is kept.
	s.Clear(&tab, &before)

	got := s.GetAll(nil, nil)
	ids := make(map[string]bool, len(got))
	for _, e := range got {
		ids[e.ID] = true
	}

	if !ids["keep-other-tab-late"] || !ids["keep-other-tab-early"] {
		t.Errorf("entries from the other tab should survive regardless of time: %+v", got)
	}
	if !ids["drop-tab1-late"] {
		t.Errorf("tab1 entry at/after the cutoff should survive (time constraint not met): %+v", got)
	}
	if ids["drop-tab1-early"] {
		t.Errorf("tab1 entry before the cutoff should be dropped (both constraints met): %+v", got)
	}
}

func TestClearRebuildsTabIndex(t *testing.T) {
	s := New[model.LogEntry](100, 0)
	s.Add(entry("a", 1, 1))
	s.Add(entry("b", 2, 2))

	tab := 1
	s.Clear(&tab, nil)

	remaining := 2
	got := s.GetAll(nil, &remaining)
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("tab index after Clear = %+v, want [b]", got)
	}
}

func TestLatestSessionTracksMostRecentEntry(t *testing.T) {
	s := New[model.LogEntry](100, 0)
	s.Add(model.LogEntry{ID: "a", TabID: 1, SessionID: "s1", Timestamp: 1})
	s.Add(model.LogEntry{ID: "b", TabID: 1, SessionID: "s2", Timestamp: 2})

	sess, ok := s.LatestSession(1)
	if !ok || sess != "s2" {
		t.Errorf("LatestSession(1) = %q, %v, want s2, true", sess, ok)
	}
}
