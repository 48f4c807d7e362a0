package model

import "encoding/json"

// InitiatorType is a closed enum over the resource-timing initiator kinds
// the browser side reports, with Other as the catch-all for anything the
// broker doesn't recognise by name.
type InitiatorType int

const (
	InitiatorScript InitiatorType = iota
	InitiatorLink
	InitiatorImg
	InitiatorCSS
	InitiatorXHR
	InitiatorFetch
	InitiatorFont
	InitiatorMedia
	InitiatorNavigation
	InitiatorOther
)

var initiatorNames = map[InitiatorType]string{
	InitiatorScript:     "script",
	InitiatorLink:       "link",
	InitiatorImg:        "img",
	InitiatorCSS:        "css",
	InitiatorXHR:        "xmlhttprequest",
	InitiatorFetch:      "fetch",
	InitiatorFont:       "font",
	InitiatorMedia:      "media",
	InitiatorNavigation: "navigation",
	InitiatorOther:      "other",
}

var initiatorFromName = map[string]InitiatorType{
	"script":         InitiatorScript,
	"link":           InitiatorLink,
	"img":            InitiatorImg,
	"css":            InitiatorCSS,
	"xmlhttprequest": InitiatorXHR,
	"fetch":          InitiatorFetch,
	"font":           InitiatorFont,
	"media":          InitiatorMedia,
	"navigation":     InitiatorNavigation,
}

// ParseInitiatorType resolves a wire-level string to an InitiatorType.
func ParseInitiatorType(s string) (InitiatorType, bool) {
	t, ok := initiatorFromName[s]
	return t, ok
}

func (t InitiatorType) String() string {
	if s, ok := initiatorNames[t]; ok {
		return s
	}
	return "other"
}

func (t InitiatorType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *InitiatorType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := initiatorFromName[s]; ok {
		*t = v
		return nil
	}
	*t = InitiatorOther
	return nil
}
