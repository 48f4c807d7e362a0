// Package tabs implements the Tab Registry: a mutex-guarded map of tab id
// to the browser's last-announced TabInfo for that tab.
package tabs

import (
	"sync"
	"time"

	"github.com/console-mcp/broker/internal/model"
)

// Registry tracks every tab currently open in the instrumented browser, as
// announced by tab_opened/tab_updated/tab_closed frames.
type Registry struct {
	mu   sync.Mutex
	tabs map[int]model.TabInfo
	now  func() time.Time
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{tabs: make(map[int]model.TabInfo), now: time.Now}
}

// SetClock overrides the registry's time source; used by tests that need
// to control when a sessionId change is stamped.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Upsert inserts or replaces the record for info.ID. It reports whether the
// registry actually changed: a TabInfo identical to what's stored is a
// coalesced no-op, matching the hub's tab_updated dedup rule.
//
// Per the TabInfo invariant, a change in sessionId implies a page load:
// if the incoming record changes sessionId without carrying its own
// navigation timestamp, lastNavigationAt is stamped with the current time.
func (r *Registry) Upsert(info model.TabInfo) (changed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.tabs[info.ID]
	if ok && existing.SessionID != info.SessionID && info.LastNavigationAt == 0 {
		info.LastNavigationAt = r.now().UnixMilli()
	}
	if ok && existing.Equal(info) {
		return false
	}
	r.tabs[info.ID] = info
	return true
}

// EnsureMinimal creates a minimal record for tabID if none exists yet,
// carrying only the session id — used when a log or network entry
// references a tab the registry hasn't seen a tab_opened for.
func (r *Registry) EnsureMinimal(tabID int, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tabs[tabID]; ok {
		return
	}
	r.tabs[tabID] = model.TabInfo{ID: tabID, SessionID: sessionID}
}

// Remove deletes tabID from the registry. Stores keep any entries already
// captured for that tab until they age out on their own terms.
func (r *Registry) Remove(tabID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tabs, tabID)
}

// Get returns the current record for tabID, if any.
func (r *Registry) Get(tabID int) (model.TabInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.tabs[tabID]
	return info, ok
}

// All returns every tab currently registered, in no particular order.
func (r *Registry) All() []model.TabInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.TabInfo, 0, len(r.tabs))
	for _, info := range r.tabs {
		out = append(out, info)
	}
	return out
}

// Len returns the number of tabs currently registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tabs)
}
