package model

import "encoding/json"

// Level is the closed set of console log severities the broker accepts.
type Level int

const (
	LevelLog Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelDebug
)

var levelNames = map[Level]string{
	LevelLog:   "log",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
	LevelDebug: "debug",
}

var levelFromName = map[string]Level{
	"log":   LevelLog,
	"info":  LevelInfo,
	"warn":  LevelWarn,
	"error": LevelError,
	"debug": LevelDebug,
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return "log"
}

// ParseLevel resolves a wire-level string to a Level, reporting false for
// an unknown string. UnmarshalJSON, by contrast, maps unknown strings to
// LevelLog rather than erroring, matching the broker's policy of never
// failing ingress on a cosmetic field.
func ParseLevel(s string) (Level, bool) {
	l, ok := levelFromName[s]
	return l, ok
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := levelFromName[s]; ok {
		*l = v
		return nil
	}
	*l = LevelLog
	return nil
}
