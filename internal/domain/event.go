package domain

// EventKind names an Event variant, mostly for logging.
type EventKind string

const (
	KindNarrator           EventKind = "narrator"
	KindDetective          EventKind = "detective"
	KindCouncilRole        EventKind = "council_role"
	KindSummary            EventKind = "summary"
	KindStatus             EventKind = "status"
	KindError              EventKind = "error"
	KindInteractiveReady   EventKind = "interactive_ready"
	KindInverseInit        EventKind = "inverse_init"
	KindInverseQuestion    EventKind = "inverse_question"
	KindInverseSolutionAck EventKind = "inverse_solution"
	KindSystemNote         EventKind = "system_note"
)

// Event is a decoded stream message. The set of variants is closed; use a
// type switch over the concrete types below.
type Event interface {
	Kind() EventKind
	isEvent()
}

// CouncilRole is one of the three advisory voices in council mode.
type CouncilRole string

const (
	RoleVisionary CouncilRole = "visionary"
	RoleSkeptic   CouncilRole = "skeptic"
	RoleLeader    CouncilRole = "leader"
)

// Narrator is narrator-originated text. The first one of a session is the
// mystery.
type Narrator struct {
	Text string
}

// Detective is a detective utterance. Speaker is 1 or 2.
type Detective struct {
	Speaker int
	Text    string
}

// CouncilMessage is a council member utterance.
type CouncilMessage struct {
	Role CouncilRole
	Text string
}

// Summary carries pre-rendered markup.
type Summary struct {
	HTML string
}

// Status is a progress heartbeat. It is never displayed.
type Status struct {
	Text string
}

// ErrorNotice is an error reported by the backend inside the stream.
type ErrorNotice struct {
	Message string
}

// InteractiveReady signals the backend finished setup and the user may ask.
type InteractiveReady struct {
	Text string
}

// InverseInit hands the narrating user the mystery and its hidden solution.
type InverseInit struct {
	Mystery  string
	Solution string
}

// InverseQuestion is a detective question the user must answer from the
// canned choices.
type InverseQuestion struct {
	Text string
}

// InverseSolutionAck follows a detective solution attempt.
type InverseSolutionAck struct{}

// SystemNote is anything unrecognized. Malformed is set when the line looked
// structured but could not be parsed.
type SystemNote struct {
	Text      string
	Malformed bool
}

func (Narrator) Kind() EventKind           { return KindNarrator }
func (Detective) Kind() EventKind          { return KindDetective }
func (CouncilMessage) Kind() EventKind     { return KindCouncilRole }
func (Summary) Kind() EventKind            { return KindSummary }
func (Status) Kind() EventKind             { return KindStatus }
func (ErrorNotice) Kind() EventKind        { return KindError }
func (InteractiveReady) Kind() EventKind   { return KindInteractiveReady }
func (InverseInit) Kind() EventKind        { return KindInverseInit }
func (InverseQuestion) Kind() EventKind    { return KindInverseQuestion }
func (InverseSolutionAck) Kind() EventKind { return KindInverseSolutionAck }
func (SystemNote) Kind() EventKind         { return KindSystemNote }

func (Narrator) isEvent()           {}
func (Detective) isEvent()          {}
func (CouncilMessage) isEvent()     {}
func (Summary) isEvent()            {}
func (Status) isEvent()             {}
func (ErrorNotice) isEvent()        {}
func (InteractiveReady) isEvent()   {}
func (InverseInit) isEvent()        {}
func (InverseQuestion) isEvent()    {}
func (InverseSolutionAck) isEvent() {}
func (SystemNote) isEvent()         {}
