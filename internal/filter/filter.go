// Package filter implements the Filter Engine: it compiles a filter
// descriptor once into a reusable, immutable matcher used by both Bounded
// Ordered Store instances and by the Search Engine.
package filter

import (
	"regexp"
	"time"

	"github.com/console-mcp/broker/internal/model"
)

// Descriptor is the wire/query representation of a filter, as it arrives
// over the HTTP query API.
type Descriptor struct {
	Levels         []string `json:"levels,omitempty"`
	TabID          *int     `json:"tabId,omitempty"`
	SessionID      *string  `json:"sessionId,omitempty"`
	URLPattern     string   `json:"urlPattern,omitempty"`
	InitiatorTypes []string `json:"initiatorTypes,omitempty"`
	MinDuration    *float64 `json:"minDuration,omitempty"`
	MaxDuration    *float64 `json:"maxDuration,omitempty"`
	IsError        *bool    `json:"isError,omitempty"`
	After          string   `json:"after,omitempty"`
	Before         string   `json:"before,omitempty"`
}

// Compiled is the immutable, reusable form of a Descriptor. Matching is
// pure: Compiled never mutates and is safe for concurrent use.
type Compiled struct {
	desc Descriptor

	levels     map[model.Level]bool
	tabID      *int
	sessionID  *string
	urlRegex   *regexp.Regexp
	initiators map[model.InitiatorType]bool
	minDur     *float64
	maxDur     *float64
	isError    *bool
	afterMs    *int64
	beforeMs   *int64
}

// Compile builds a Compiled matcher from d, resolving relative/absolute
// time bounds against now. An unparseable URL regex is silently treated as
// "no URL constraint", matching the store's documented failure semantics.
func Compile(d Descriptor, now time.Time) *Compiled {
	c := &Compiled{desc: d}

	if len(d.Levels) > 0 {
		c.levels = make(map[model.Level]bool, len(d.Levels))
		for _, l := range d.Levels {
			if lv, ok := model.ParseLevel(l); ok {
				c.levels[lv] = true
			}
		}
	}

	c.tabID = d.TabID
	c.sessionID = d.SessionID

	if d.URLPattern != "" {
		// Case-insensitive for both logs and network entries: the distilled
		// spec found the two source code paths disagreeing on case
		// sensitivity and asked for a single policy in a rewrite.
		if re, err := regexp.Compile("(?i)" + d.URLPattern); err == nil {
			c.urlRegex = re
		}
	}

	if len(d.InitiatorTypes) > 0 {
		c.initiators = make(map[model.InitiatorType]bool, len(d.InitiatorTypes))
		for _, it := range d.InitiatorTypes {
			if t, ok := model.ParseInitiatorType(it); ok {
				c.initiators[t] = true
			}
		}
	}

	c.minDur = d.MinDuration
	c.maxDur = d.MaxDuration
	c.isError = d.IsError

	if ms, ok := ParseRelativeTime(d.After, now); ok {
		c.afterMs = &ms
	}
	if ms, ok := ParseRelativeTime(d.Before, now); ok {
		c.beforeMs = &ms
	}

	return c
}

func (c *Compiled) matchesTimeTabSession(tabID int, sessionID string, ts int64) bool {
	if c.tabID != nil && tabID != *c.tabID {
		return false
	}
	if c.sessionID != nil && sessionID != *c.sessionID {
		return false
	}
	if c.afterMs != nil && ts < *c.afterMs {
		return false
	}
	if c.beforeMs != nil && ts > *c.beforeMs {
		return false
	}
	return true
}

// MatchLog reports whether e satisfies every constraint in the filter.
func (c *Compiled) MatchLog(e model.LogEntry) bool {
	if !c.matchesTimeTabSession(e.TabID, e.SessionID, e.Timestamp) {
		return false
	}
	if c.levels != nil && !c.levels[e.Level] {
		return false
	}
	if c.urlRegex != nil && !c.urlRegex.MatchString(e.URL) {
		return false
	}
	return true
}

// MatchNet reports whether e satisfies every constraint in the filter. The
// URL pattern matches if either e.URL or e.PageURL matches.
func (c *Compiled) MatchNet(e model.NetEntry) bool {
	if !c.matchesTimeTabSession(e.TabID, e.SessionID, e.Timestamp) {
		return false
	}
	if c.urlRegex != nil && !c.urlRegex.MatchString(e.URL) && !c.urlRegex.MatchString(e.PageURL) {
		return false
	}
	if c.initiators != nil && !c.initiators[e.InitiatorType] {
		return false
	}
	if c.minDur != nil && e.Duration < *c.minDur {
		return false
	}
	if c.maxDur != nil && e.Duration > *c.maxDur {
		return false
	}
	if c.isError != nil && e.IsError != *c.isError {
		return false
	}
	return true
}

// OnlyTabID reports whether this filter constrains solely by tabId, with no
// other field set — the condition under which a store can take its O(k)
// tab-index fast path instead of scanning the whole ring.
func (c *Compiled) OnlyTabID() (int, bool) {
	d := c.desc
	if d.TabID == nil {
		return 0, false
	}
	if d.SessionID != nil || d.URLPattern != "" || d.After != "" || d.Before != "" {
		return 0, false
	}
	if len(d.Levels) > 0 || len(d.InitiatorTypes) > 0 || d.MinDuration != nil || d.MaxDuration != nil || d.IsError != nil {
		return 0, false
	}
	return *d.TabID, true
}
