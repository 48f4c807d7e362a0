// Package search implements the Search Engine: regex and keyword search
// over a snapshot of log entries, as served by the search HTTP endpoint.
package search

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/console-mcp/broker/internal/model"
)

// Match is a single regex-search hit, carrying optional surrounding context
// entries drawn from the same snapshot in insertion order.
type Match struct {
	Entry        model.LogEntry   `json:"entry"`
	MatchedField string           `json:"matchedField"`
	MatchedText  string           `json:"matchedText"`
	Before       []model.LogEntry `json:"before,omitempty"`
	After        []model.LogEntry `json:"after,omitempty"`
}

// Result is the uniform return shape for both search modes.
type Result struct {
	Matches []Match `json:"matches"`
	Total   int     `json:"total"`
}

var defaultRegexFields = []string{"message", "args", "stack"}

// RegexQuery describes a regex search request.
type RegexQuery struct {
	Pattern      string
	CaseSensitve bool
	Fields       []string
	ContextLines int
	Limit        int
}

// Regex runs a regex search over entries, in insertion order. At the first
// matching field per entry it records one hit, attaching up to
// ContextLines preceding and following entries from the same slice. It
// stops once Limit matches have been collected (0 means unlimited).
func Regex(entries []model.LogEntry, q RegexQuery) (Result, error) {
	pattern := q.Pattern
	if !q.CaseSensitve {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Result{}, err
	}

	fields := q.Fields
	if len(fields) == 0 {
		fields = defaultRegexFields
	}

	var matches []Match
	for i, e := range entries {
		if q.Limit > 0 && len(matches) >= q.Limit {
			break
		}
		field, text, ok := firstFieldMatch(re, e, fields)
		if !ok {
			continue
		}
		m := Match{Entry: e, MatchedField: field, MatchedText: text}
		if q.ContextLines > 0 {
			m.Before = contextSlice(entries, i-q.ContextLines, i)
			m.After = contextSlice(entries, i+1, i+1+q.ContextLines)
		}
		matches = append(matches, m)
	}

	return Result{Matches: matches, Total: len(matches)}, nil
}

func firstFieldMatch(re *regexp.Regexp, e model.LogEntry, fields []string) (field, text string, ok bool) {
	for _, f := range fields {
		var candidate string
		switch f {
		case "message":
			candidate = e.Message
		case "args":
			b, err := json.Marshal(e.Args)
			if err != nil {
				continue
			}
			candidate = string(b)
		case "stack":
			candidate = e.Stack
		default:
			continue
		}
		if re.MatchString(candidate) {
			return f, candidate, true
		}
	}
	return "", "", false
}

func contextSlice(entries []model.LogEntry, from, to int) []model.LogEntry {
	if from < 0 {
		from = 0
	}
	if to > len(entries) {
		to = len(entries)
	}
	if from >= to {
		return nil
	}
	out := make([]model.LogEntry, to-from)
	copy(out, entries[from:to])
	return out
}

// KeywordQuery describes a keyword search request.
type KeywordQuery struct {
	Keywords []string
	Logic    string // "and" (default) or "or"
	Excludes []string
	Limit    int
}

const truncatedMatchLen = 100

// Keyword runs a case-insensitive keyword search over entries. A candidate
// text is built once per entry from message + JSON(args) + stack, lower-cased,
// and matched against Keywords per Logic (AND requires all present, OR
// requires any), then rejected if any Exclude term is present.
func Keyword(entries []model.LogEntry, q KeywordQuery) Result {
	keywords := lower(q.Keywords)
	excludes := lower(q.Excludes)
	logic := strings.ToLower(q.Logic)

	var matches []Match
	for _, e := range entries {
		if q.Limit > 0 && len(matches) >= q.Limit {
			break
		}
		candidate := buildCandidate(e)
		lowered := strings.ToLower(candidate)

		if !keywordsSatisfied(lowered, keywords, logic) {
			continue
		}
		if containsAny(lowered, excludes) {
			continue
		}

		matches = append(matches, Match{
			Entry:       e,
			MatchedText: truncate(e.Message, truncatedMatchLen),
		})
	}

	return Result{Matches: matches, Total: len(matches)}
}

func buildCandidate(e model.LogEntry) string {
	argsJSON, err := json.Marshal(e.Args)
	if err != nil {
		argsJSON = []byte("null")
	}
	var b strings.Builder
	b.WriteString(e.Message)
	b.Write(argsJSON)
	b.WriteString(e.Stack)
	return b.String()
}

func keywordsSatisfied(haystack string, keywords []string, logic string) bool {
	if len(keywords) == 0 {
		return true
	}
	if logic == "or" {
		return containsAny(haystack, keywords)
	}
	for _, k := range keywords {
		if !strings.Contains(haystack, k) {
			return false
		}
	}
	return true
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func lower(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToLower(s)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
