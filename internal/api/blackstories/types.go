package blackstories

type startGameRequest struct {
	Difficulty     string `json:"difficulty"`
	NarratorModel  string `json:"narrator_model"`
	DetectiveModel string `json:"detective_model"`
	SessionID      string `json:"session_id"`
}

type startInteractiveRequest struct {
	Difficulty    string `json:"difficulty"`
	NarratorModel string `json:"narrator_model"`
	SessionID     string `json:"session_id"`
}

type startFightRequest struct {
	NarratorModel   string `json:"narrator_model"`
	Difficulty      string `json:"difficulty"`
	DetectiveModel1 string `json:"detective_model_1"`
	DetectiveModel2 string `json:"detective_model_2"`
	SessionID       string `json:"session_id"`
}

type startCouncilRequest struct {
	NarratorModel  string `json:"narrator_model"`
	Difficulty     string `json:"difficulty"`
	VisionaryModel string `json:"visionary_model"`
	SkepticModel   string `json:"skeptic_model"`
	LeaderModel    string `json:"leader_model"`
	SessionID      string `json:"session_id"`
}

type startInverseRequest struct {
	Difficulty     string `json:"difficulty"`
	DetectiveModel string `json:"detective_model"`
	SessionID      string `json:"session_id"`
}

type askRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

type answerRequest struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

type solutionRequest struct {
	SessionID string `json:"session_id"`
	Solution  string `json:"solution"`
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

type hintResponse struct {
	Hint string `json:"hint"`
}

// saveResponse accepts both {"ok": true} and {"status": "success"} replies.
type saveResponse struct {
	OK      *bool  `json:"ok"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// errorResponse is the body of a non-2xx reply.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
