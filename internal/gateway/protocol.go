package gateway

import "encoding/json"

// Frame is the universal WebSocket message format.
// Three types: "req" (client→server), "res" (server→client), "event" (server→client push).
type Frame struct {
	Type    string          `json:"type"`              // "req" | "res" | "event"
	ID      string          `json:"id,omitempty"`      // request/response correlation ID
	Method  string          `json:"method,omitempty"`  // for req: method name
	Params  json.RawMessage `json:"params,omitempty"`  // for req: method parameters
	OK      *bool           `json:"ok,omitempty"`      // for res: success flag
	Payload json.RawMessage `json:"payload,omitempty"` // for res: response data
	Error   *ErrorPayload   `json:"error,omitempty"`   // for res: error details
	Event   string          `json:"event,omitempty"`   // for event: event name
	Seq     int             `json:"seq,omitempty"`     // for event: per-connection sequence number
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ConnectParams is sent by the client during handshake.
type ConnectParams struct {
	Token string `json:"token"`
}

// ChatSendParams starts one conversational turn.
type ChatSendParams struct {
	SessionID string `json:"sessionId,omitempty"` // empty: a new session is created
	Text      string `json:"text"`
}

// SurveyUpdateParams replaces a session's survey script.
type SurveyUpdateParams struct {
	Active        bool             `json:"active"`
	QuestionIndex int              `json:"questionIndex"`
	Questions     []SurveyQuestion `json:"questions"`
}

// SurveyQuestion mirrors the stored survey question shape on the wire.
type SurveyQuestion struct {
	Prompt        string         `json:"prompt"`
	ChoiceKind    string         `json:"choiceKind"` // "single_choice" | "multiple_choice"
	Options       []SurveyOption `json:"options"`
	MinSelections *int           `json:"minSelections,omitempty"`
	MaxSelections *int           `json:"maxSelections,omitempty"`
}

type SurveyOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Helper to create response frames

func ResOK(id string, payload any) Frame {
	data, _ := json.Marshal(payload)
	ok := true
	return Frame{Type: "res", ID: id, OK: &ok, Payload: data}
}

func ResErr(id string, code, message string) Frame {
	ok := false
	return Frame{Type: "res", ID: id, OK: &ok, Error: &ErrorPayload{Code: code, Message: message}}
}

func EventFrame(event string, seq int, payload any) Frame {
	data, _ := json.Marshal(payload)
	return Frame{Type: "event", Event: event, Seq: seq, Payload: data}
}
