package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/odvcencio/switchboard/pkg/bus"
)

const defaultRequestTimeout = 30 * time.Second

// Client reaches the assistant extension over the message bus. The extension
// answers request/reply subjects under a configurable root, e.g.
// "assistant.rpc.session.visible". Client implements Locator and Invoker.
type Client struct {
	bus     bus.MessageBus
	root    string
	timeout time.Duration
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout toward the host.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSubjectRoot overrides the root token of host RPC subjects.
func WithSubjectRoot(root string) ClientOption {
	return func(c *Client) {
		root = strings.TrimSpace(root)
		if root != "" {
			c.root = root
		}
	}
}

// NewClient constructs a bus-backed host client.
func NewClient(b bus.MessageBus, opts ...ClientOption) *Client {
	c := &Client{
		bus:     b,
		root:    "assistant",
		timeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpc envelopes exchanged with the extension. Replies always carry either an
// error string or the result fields.
type visibleSessionReply struct {
	SessionID string `json:"sessionId"`
	Error     string `json:"error,omitempty"`
}

type startTaskRequest struct {
	Text   string   `json:"text"`
	Images []string `json:"images,omitempty"`
}

type toggleModeRequest struct {
	Mode Mode `json:"mode"`
}

type invokeRequest struct {
	ID   string `json:"id"`
	Args []any  `json:"args,omitempty"`
}

type invokeReply struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

type conversationReply struct {
	Conversation *Conversation `json:"conversation,omitempty"`
	Error        string        `json:"error,omitempty"`
}

type stateReply struct {
	State State  `json:"state"`
	Error string `json:"error,omitempty"`
}

type ackReply struct {
	Error string `json:"error,omitempty"`
}

// call performs a JSON request/reply round trip on the given subject.
func (c *Client) call(ctx context.Context, subject string, req any, out any) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode host request: %w", err)
	}
	reply, err := c.bus.Request(ctx, subject, data, c.timeout)
	if err != nil {
		return fmt.Errorf("host request %s: %w", subject, err)
	}
	if out != nil {
		if err := json.Unmarshal(reply, out); err != nil {
			return fmt.Errorf("decode host reply from %s: %w", subject, err)
		}
	}
	return nil
}

func (c *Client) subject(parts ...string) string {
	return c.root + ".rpc." + strings.Join(parts, ".")
}

// VisibleSession queries the host for the currently visible session.
// It returns (nil, nil) when the host reports none.
func (c *Client) VisibleSession(ctx context.Context) (Session, error) {
	var reply visibleSessionReply
	if err := c.call(ctx, c.subject("session", "visible"), struct{}{}, &reply); err != nil {
		return nil, err
	}
	if reply.Error != "" {
		return nil, errors.New(reply.Error)
	}
	if reply.SessionID == "" {
		return nil, nil
	}
	return &busSession{client: c, id: reply.SessionID}, nil
}

// Invoke forwards a host action invocation to the extension's command bus.
func (c *Client) Invoke(ctx context.Context, actionID string, args ...any) (any, error) {
	var reply invokeReply
	req := invokeRequest{ID: actionID, Args: args}
	if err := c.call(ctx, c.subject("invoke"), req, &reply); err != nil {
		return nil, err
	}
	if reply.Error != "" {
		return nil, errors.New(reply.Error)
	}
	return reply.Result, nil
}

// busSession proxies Session calls over the bus for one host session.
type busSession struct {
	client *Client
	id     string
}

func (s *busSession) ID() string {
	return s.id
}

func (s *busSession) StartTask(ctx context.Context, text string, images []string) error {
	var reply ackReply
	req := startTaskRequest{Text: text, Images: images}
	if err := s.client.call(ctx, s.client.subject("session", s.id, "newTask"), req, &reply); err != nil {
		return err
	}
	if reply.Error != "" {
		return errors.New(reply.Error)
	}
	return nil
}

func (s *busSession) ToggleMode(ctx context.Context, mode Mode) error {
	var reply ackReply
	if err := s.client.call(ctx, s.client.subject("session", s.id, "toggleMode"), toggleModeRequest{Mode: mode}, &reply); err != nil {
		return err
	}
	if reply.Error != "" {
		return errors.New(reply.Error)
	}
	return nil
}

func (s *busSession) PostToWebview(ctx context.Context, msg WebviewMessage) error {
	var reply ackReply
	if err := s.client.call(ctx, s.client.subject("session", s.id, "webview"), msg, &reply); err != nil {
		return err
	}
	if reply.Error != "" {
		return errors.New(reply.Error)
	}
	return nil
}

func (s *busSession) Conversation(ctx context.Context) (*Conversation, error) {
	var reply conversationReply
	if err := s.client.call(ctx, s.client.subject("session", s.id, "conversation"), struct{}{}, &reply); err != nil {
		return nil, err
	}
	if reply.Error != "" {
		return nil, errors.New(reply.Error)
	}
	return reply.Conversation, nil
}

func (s *busSession) State(ctx context.Context) (State, error) {
	var reply stateReply
	if err := s.client.call(ctx, s.client.subject("session", s.id, "state"), struct{}{}, &reply); err != nil {
		return State{}, err
	}
	if reply.Error != "" {
		return State{}, errors.New(reply.Error)
	}
	return reply.State, nil
}
