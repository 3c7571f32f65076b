package codec

import (
	"encoding/json"
	"errors"
)

// Structured message types. Detective types are matched by substring
// (detective1_question, detective2_answer, ...), everything else exactly.
const (
	TypeNarrator         = "narrator"
	TypeCouncilVisionary = "council_visionary"
	TypeCouncilSkeptic   = "council_skeptic"
	TypeCouncilLeader    = "council_leader"
	TypeSummary          = "summary"
	TypeError            = "error"
	TypeInteractiveReady = "interactive_ready"
	TypeInverseInit      = "inverse_init"
	TypeInverseQuestion  = "inverse_question"
	TypeInverseSolution  = "inverse_solution"
	TypeStatus           = "status"
)

var errNoType = errors.New("message has no string type")

// wireMessage is a structured line. Keys are matched exactly; encoding/json
// struct decoding would also accept "Type" or "CONTENT".
type wireMessage struct {
	Type       string
	Content    string
	HasContent bool
	Mystery    string
	Solution   string
}

func parseWire(line string) (*wireMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return nil, err
	}

	msg := &wireMessage{}

	typ, ok, err := stringField(fields, "type")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNoType
	}
	msg.Type = typ

	msg.Content, msg.HasContent = textField(fields, "content")
	msg.Mystery, _ = textField(fields, "mystery")
	msg.Solution, _ = textField(fields, "solution")
	return msg, nil
}

// stringField requires the key, when present, to hold a JSON string.
func stringField(fields map[string]json.RawMessage, key string) (string, bool, error) {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false, err
	}
	return s, true, nil
}

// textField accepts strings and renders any other JSON value as its literal
// text, so a numeric content still displays.
func textField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return string(raw), true
}
