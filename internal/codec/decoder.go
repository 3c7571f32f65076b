// Package codec decodes stream lines into domain events. Two wire formats
// share one stream: newline-delimited JSON objects and legacy prefix-tagged
// plain text. Callers only ever see domain.Event.
package codec

import (
	"errors"
	"regexp"
	"strings"

	"github.com/tjfontaine/blackstories-client/internal/domain"
)

// Filter explains why a line produced no event.
type Filter int

const (
	// FilterNone means the line decoded to an event.
	FilterNone Filter = iota

	// FilterBlank drops empty and whitespace-only lines.
	FilterBlank

	// FilterDebug drops legacy debug lines.
	FilterDebug

	// FilterSaveOffer drops the legacy sentinel that means a save action may
	// now be offered. It is a signal, not a display event.
	FilterSaveOffer
)

func (f Filter) String() string {
	switch f {
	case FilterNone:
		return "none"
	case FilterBlank:
		return "blank"
	case FilterDebug:
		return "debug"
	case FilterSaveOffer:
		return "save_offer"
	default:
		return "unknown"
	}
}

// Legacy plain-text markers.
const (
	PrefixNarrator  = "Narrator:"
	PrefixDetective = "Detective:"
	PrefixError     = "Error"
	PrefixDebug     = "DEBUG:"
	SentinelSave    = "save_conversation"
)

var (
	detective1Lead = regexp.MustCompile(`^Detective 1 (pregunta|dice):`)
	detective2Lead = regexp.MustCompile(`^Detective 2 (pregunta|dice):`)
)

// Decode classifies one complete line. It never fails: malformed structured
// input becomes a SystemNote carrying the raw line with Malformed set. When
// the returned Filter is not FilterNone the event is nil. Decode is pure, so
// decoding the same line twice yields equal events.
func Decode(line string) (domain.Event, Filter) {
	ev, filter, _ := DecodeChecked(line)
	return ev, filter
}

// DecodeChecked is Decode that also returns a decode *domain.Error whenever
// the event is a Malformed note.
func DecodeChecked(line string) (domain.Event, Filter, error) {
	if strings.TrimSpace(line) == "" {
		return nil, FilterBlank, nil
	}
	if strings.HasPrefix(line, "{") {
		ev, err := decodeStructured(line)
		if err != nil {
			return domain.SystemNote{Text: line, Malformed: true}, FilterNone, domain.ErrMalformedLine(err)
		}
		return ev, FilterNone, nil
	}
	ev, filter := decodeLegacy(line)
	return ev, filter, nil
}

var errMissingContent = errors.New("detective message without content")

func decodeStructured(line string) (domain.Event, error) {
	msg, err := parseWire(line)
	if err != nil {
		return nil, err
	}

	switch {
	case msg.Type == TypeNarrator:
		return domain.Narrator{Text: msg.Content}, nil
	case strings.Contains(msg.Type, "detective1"):
		if !msg.HasContent {
			return nil, errMissingContent
		}
		return domain.Detective{Speaker: 1, Text: stripLead(detective1Lead, msg.Content)}, nil
	case strings.Contains(msg.Type, "detective2"):
		if !msg.HasContent {
			return nil, errMissingContent
		}
		return domain.Detective{Speaker: 2, Text: stripLead(detective2Lead, msg.Content)}, nil
	}

	switch msg.Type {
	case TypeCouncilVisionary:
		return domain.CouncilMessage{Role: domain.RoleVisionary, Text: msg.Content}, nil
	case TypeCouncilSkeptic:
		return domain.CouncilMessage{Role: domain.RoleSkeptic, Text: msg.Content}, nil
	case TypeCouncilLeader:
		return domain.CouncilMessage{Role: domain.RoleLeader, Text: msg.Content}, nil
	case TypeSummary:
		return domain.Summary{HTML: msg.Content}, nil
	case TypeError:
		return domain.ErrorNotice{Message: msg.Content}, nil
	case TypeInteractiveReady:
		return domain.InteractiveReady{Text: msg.Content}, nil
	case TypeInverseInit:
		return domain.InverseInit{Mystery: msg.Mystery, Solution: msg.Solution}, nil
	case TypeInverseQuestion:
		return domain.InverseQuestion{Text: msg.Content}, nil
	case TypeInverseSolution:
		return domain.InverseSolutionAck{}, nil
	case TypeStatus:
		return domain.Status{Text: msg.Content}, nil
	default:
		return domain.SystemNote{Text: msg.Content}, nil
	}
}

func decodeLegacy(line string) (domain.Event, Filter) {
	switch {
	case strings.HasPrefix(line, PrefixNarrator):
		return domain.Narrator{Text: strings.TrimSpace(strings.TrimPrefix(line, PrefixNarrator))}, FilterNone
	case strings.HasPrefix(line, PrefixDetective):
		return domain.Detective{Speaker: 1, Text: strings.TrimSpace(strings.TrimPrefix(line, PrefixDetective))}, FilterNone
	case strings.HasPrefix(line, PrefixError):
		return domain.ErrorNotice{Message: line}, FilterNone
	case line == SentinelSave:
		return nil, FilterSaveOffer
	case strings.HasPrefix(line, PrefixDebug):
		return nil, FilterDebug
	default:
		return domain.SystemNote{Text: line}, FilterNone
	}
}

func stripLead(lead *regexp.Regexp, content string) string {
	return strings.TrimSpace(lead.ReplaceAllString(content, ""))
}
