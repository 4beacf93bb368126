package transport

import "context"

// Action is an interaction offered with a delivered message, e.g. a "mark
// read" button. Callback is an opaque token the receiving side posts back.
type Action struct {
	Label    string `json:"label"`
	Callback string `json:"callback"`
}

// Message is one formatted digest entry for one subscriber.
type Message struct {
	Text    string   `json:"text"`
	AbsURL  string   `json:"abs_url,omitempty"`
	PDFURL  string   `json:"pdf_url,omitempty"`
	Actions []Action `json:"actions,omitempty"`
}

// Transport delivers messages to a subscriber identity. A failed Send
// leaves the delivery pending; the orchestrator retries on the next cycle.
type Transport interface {
	Name() string
	Send(ctx context.Context, identity string, msg *Message) error
}
