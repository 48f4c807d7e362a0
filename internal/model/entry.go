// Package model holds the broker's immutable wire/storage records: log and
// network entries, tab metadata, and the enums they carry.
package model

// LogEntry is an immutable console record captured from an instrumented
// browser tab. Values are never mutated after insertion into a LogStore;
// callers that need to change a field must construct a new entry.
type LogEntry struct {
	ID        string        `json:"id"`
	Timestamp int64         `json:"timestamp"`
	Level     Level         `json:"level"`
	Message   string        `json:"message"`
	Args      []interface{} `json:"args,omitempty"`
	Stack     string        `json:"stack,omitempty"`
	TabID     int           `json:"tabId"`
	URL       string        `json:"url"`
	SessionID string        `json:"sessionId"`
}

// NetEntry is an immutable resource-timing record for a single network
// request observed in a tab.
type NetEntry struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	TabID     int    `json:"tabId"`
	SessionID string `json:"sessionId"`
	PageURL   string `json:"pageUrl"`
	URL       string `json:"url"`

	InitiatorType InitiatorType `json:"initiatorType"`
	Status        int           `json:"status"`
	Size          int64         `json:"size"`
	DecodedSize   int64         `json:"decodedSize"`
	HeaderSize    int64         `json:"headerSize"`
	Protocol      string        `json:"protocol"`
	Cached        bool          `json:"cached"`
	IsError       bool          `json:"isError"`
	IsBlocking    bool          `json:"isBlocking"`

	Duration       float64  `json:"duration"`
	DNSTime        *float64 `json:"dnsTime,omitempty"`
	ConnectionTime *float64 `json:"connectionTime,omitempty"`
	TLSTime        *float64 `json:"tlsTime,omitempty"`
	TTFB           *float64 `json:"ttfb,omitempty"`
	DownloadTime   *float64 `json:"downloadTime,omitempty"`
	StallTime      *float64 `json:"stallTime,omitempty"`
}

// TabInfo is the mutable record the Tab Registry keeps per browser tab.
type TabInfo struct {
	ID               int    `json:"id"`
	URL              string `json:"url"`
	Title            string `json:"title"`
	SessionID        string `json:"sessionId"`
	IsActive         bool   `json:"isActive"`
	LastNavigationAt int64  `json:"lastNavigationAt"`
}

// Equal reports whether two TabInfo values carry identical fields, used by
// the Client Hub to coalesce no-op tab_updated frames.
func (t TabInfo) Equal(other TabInfo) bool {
	return t == other
}

// The Ring* methods satisfy store.Entry by structural typing, letting the
// Bounded Ordered Store index LogEntry and NetEntry without either package
// importing the other.

func (e LogEntry) RingID() string          { return e.ID }
func (e LogEntry) RingTabID() int          { return e.TabID }
func (e LogEntry) RingSessionID() string   { return e.SessionID }
func (e LogEntry) RingTimestampMs() int64  { return e.Timestamp }

func (e NetEntry) RingID() string         { return e.ID }
func (e NetEntry) RingTabID() int         { return e.TabID }
func (e NetEntry) RingSessionID() string  { return e.SessionID }
func (e NetEntry) RingTimestampMs() int64 { return e.Timestamp }
