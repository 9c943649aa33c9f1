// Package host models the IDE assistant extension the gateway drives: the
// currently visible session, its conversation log, and the command bus the
// extension exposes. The gateway never owns this state; it only queries it.
package host

import "context"

// Mode is the assistant interaction mode.
type Mode string

const (
	// ModePlan has the assistant propose options and await a choice.
	ModePlan Mode = "plan"

	// ModeAct has the assistant execute directly.
	ModeAct Mode = "act"
)

// Message type/tag values observed in conversation logs.
const (
	MessageTypeAsk = "ask"
	MessageTypeSay = "say"

	// TagPlanModeRespond marks a pending plan-mode question whose text
	// payload carries the selectable options.
	TagPlanModeRespond = "planModeRespond"
)

// Position is a zero-based text position in the editor.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is the host's native selection representation.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// ConversationMessage is a single entry in a session's message log.
type ConversationMessage struct {
	Type string `json:"type"`
	Tag  string `json:"tag,omitempty"`
	Text string `json:"text,omitempty"`
	Ts   int64  `json:"ts,omitempty"`
}

// Conversation is the ordered message log of a session; the last entry is
// the most recent.
type Conversation struct {
	Messages []ConversationMessage `json:"messages"`
}

// LastMessage returns the most recent message, or nil for an empty log.
func (c *Conversation) LastMessage() *ConversationMessage {
	if c == nil || len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// State is a point-in-time snapshot of a session's activity flags.
type State struct {
	IsStreaming            bool `json:"isStreaming"`
	IsWaitingForFirstChunk bool `json:"isWaitingForFirstChunk"`
	IsAwaitingPlanResponse bool `json:"isAwaitingPlanResponse"`
}

// WebviewMessage is a message posted to the assistant's UI layer.
type WebviewMessage struct {
	Type     string   `json:"type"`
	Action   string   `json:"action,omitempty"`
	ButtonID string   `json:"buttonId,omitempty"`
	Text     string   `json:"text,omitempty"`
	Images   []string `json:"images,omitempty"`
}

// Session is the active assistant instance currently visible to the user.
type Session interface {
	// ID identifies the session within the host.
	ID() string

	// StartTask begins a brand-new task with the given text and optional
	// image attachments, replacing the current one.
	StartTask(ctx context.Context, text string, images []string) error

	// ToggleMode switches the session between plan and act modes.
	ToggleMode(ctx context.Context, mode Mode) error

	// PostToWebview forwards a message to the session's UI layer.
	PostToWebview(ctx context.Context, msg WebviewMessage) error

	// Conversation returns the session's message log, or nil when the
	// session has no active conversation.
	Conversation(ctx context.Context) (*Conversation, error)

	// State reports the session's current activity flags.
	State(ctx context.Context) (State, error)
}

// Locator finds the currently visible session. It returns (nil, nil) when
// no session is visible; errors are reserved for host transport failures.
type Locator interface {
	VisibleSession(ctx context.Context) (Session, error)
}

// Invoker executes a host action by its stable string id.
type Invoker interface {
	Invoke(ctx context.Context, actionID string, args ...any) (any, error)
}
