package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer     Action = "answer"
	ActionToggle     Action = "toggle"
	ActionPart       Action = "part"
	ActionNavigate   Action = "navigate"
	ActionSubmit     Action = "submit"
	ActionPing       Action = "ping"
	ActionSkip       Action = "skip"
	ActionMediaEnded Action = "media_ended"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest selects the sole option of a single-answer question.
type AnswerRequest struct {
	Action Action `json:"action"`
	QID    string `json:"q_id"`
	Option int    `json:"option"`
}

// ToggleRequest flips one option of a multiple-answer question.
type ToggleRequest struct {
	Action Action `json:"action"`
	QID    string `json:"q_id"`
	Option int    `json:"option"`
}

// PartRequest answers one part of a compound question.
type PartRequest struct {
	Action Action `json:"action"`
	QID    string `json:"q_id"`
	Part   int    `json:"part"`
	Option int    `json:"option"`
}

// NavigateRequest jumps to a question by index.
type NavigateRequest struct {
	Action Action `json:"action"`
	Index  int    `json:"index"`
}

// SubmitRequest finishes the session and produces the result.
type SubmitRequest struct {
	Action Action `json:"action"`
}

// SkipRequest advances a live playback run past the current item.
type SkipRequest struct {
	Action Action `json:"action"`
}

// MediaEndedRequest reports that the current item's media finished playing.
// Seq guards against a skip racing the media-end signal.
type MediaEndedRequest struct {
	Action Action `json:"action"`
	Seq    int    `json:"seq"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState     Event = "state"
	EventAdvanced  Event = "advanced"
	EventCompleted Event = "completed"
	EventFinished  Event = "finished"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// StateResponse reports both countdowns and the current position. Sent on
// every tick and after each accepted action.
type StateResponse struct {
	Event             Event `json:"event"`
	QuestionIndex     int   `json:"question_index"`
	SessionRemaining  int   `json:"session_remaining_seconds"`
	QuestionRemaining int   `json:"question_remaining_seconds"`
}

// AdvancedResponse announces that playback moved to a new item.
type AdvancedResponse struct {
	Event    Event  `json:"event"`
	Index    int    `json:"index"`
	Seq      int    `json:"seq"`
	MediaRef string `json:"media_ref,omitempty"`
	Seconds  int    `json:"seconds"`
}

// CompletedResponse carries the final outcome of a submitted session.
type CompletedResponse struct {
	Event          Event  `json:"event"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"total_questions"`
	Percentage     int    `json:"percentage"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
	SaveWarning    string `json:"save_warning,omitempty"`
}

// FinishedResponse ends a live playback run. It carries no score.
type FinishedResponse struct {
	Event Event `json:"event"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
