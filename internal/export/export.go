// Package export implements the Export Encoder (C11): it renders a
// LogEntry slice to json, csv, or txt for the maintenance/export endpoint.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/console-mcp/broker/internal/model"
)

var defaultFields = []string{"timestamp", "level", "tabId", "message"}

// Encode renders entries in the given format, returning the encoded bytes
// and the HTTP content type to serve them with. fields restricts csv
// columns (json and txt ignore it, since json serialises the full record
// and txt has a fixed line shape). An unknown format is the caller's cue to
// answer 400.
func Encode(format string, entries []model.LogEntry, fields []string, prettyPrint bool) ([]byte, string, error) {
	switch format {
	case "json":
		return encodeJSON(entries, prettyPrint)
	case "csv":
		return encodeCSV(entries, fields)
	case "txt":
		return encodeTxt(entries), "text/plain", nil
	default:
		return nil, "", fmt.Errorf("unknown export format %q", format)
	}
}

func encodeJSON(entries []model.LogEntry, prettyPrint bool) ([]byte, string, error) {
	var (
		b   []byte
		err error
	)
	if prettyPrint {
		b, err = json.MarshalIndent(entries, "", "  ")
	} else {
		b, err = json.Marshal(entries)
	}
	if err != nil {
		return nil, "", err
	}
	return b, "application/json", nil
}

func encodeCSV(entries []model.LogEntry, fields []string) ([]byte, string, error) {
	if len(fields) == 0 {
		fields = defaultFields
	}

	sorted := append([]model.LogEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(fields); err != nil {
		return nil, "", err
	}
	for _, e := range sorted {
		row := make([]string, len(fields))
		for i, f := range fields {
			row[i] = csvField(e, f)
		}
		if err := w.Write(row); err != nil {
			return nil, "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "text/csv", nil
}

func csvField(e model.LogEntry, field string) string {
	switch field {
	case "id":
		return e.ID
	case "timestamp":
		return fmt.Sprintf("%d", e.Timestamp)
	case "level":
		return e.Level.String()
	case "message":
		return e.Message
	case "stack":
		return e.Stack
	case "tabId":
		return fmt.Sprintf("%d", e.TabID)
	case "url":
		return e.URL
	case "sessionId":
		return e.SessionID
	case "args":
		b, err := json.Marshal(e.Args)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return ""
	}
}

func encodeTxt(entries []model.LogEntry) []byte {
	sorted := append([]model.LogEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	var buf bytes.Buffer
	for _, e := range sorted {
		ts := time.UnixMilli(e.Timestamp).UTC().Format(time.RFC3339)
		fmt.Fprintf(&buf, "[%s] [%s] tabId=%d %s\n", ts, e.Level.String(), e.TabID, e.Message)
	}
	return buf.Bytes()
}
