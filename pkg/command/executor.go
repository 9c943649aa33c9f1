package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/switchboard/pkg/host"
	"github.com/odvcencio/switchboard/pkg/logging"
)

// Fixed error texts reported on the wire. Callers match on these strings,
// so they never change shape.
const (
	ErrNoVisibleSession     = "No visible assistant instance found"
	ErrNoActiveConversation = "No active conversation"
)

// Executor resolves commands against the assistant host. The host session
// is located per request; the executor holds no per-request state.
type Executor struct {
	locator host.Locator
	invoker host.Invoker
	logger  *logging.Logger
}

// NewExecutor constructs an executor over the given host layer.
func NewExecutor(locator host.Locator, invoker host.Invoker, logger *logging.Logger) *Executor {
	return &Executor{
		locator: locator,
		invoker: invoker,
		logger:  logger,
	}
}

// Execute runs one command and always returns a reportable response:
// failures of any origin become {success:false, error}, never a panic.
func (e *Executor) Execute(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			_ = e.logger.Error(logging.CategoryCommand, "panic", fmt.Sprintf("recovered: %v", r), map[string]any{"command": req.Command})
			resp = failure(fmt.Sprintf("internal error: %v", r))
		}
	}()

	s, ok := specIndex[req.Command]
	if !ok {
		return failure(fmt.Sprintf("Unknown command: %s", req.Command))
	}

	// Argument validation happens before any host traffic, so a malformed
	// request can never reach the extension.
	params, err := decodeArgs(s, req.Args)
	if err != nil {
		return failure(err.Error())
	}

	sess, err := e.locator.VisibleSession(ctx)
	if err != nil {
		return failure(err.Error())
	}
	if sess == nil {
		return failure(ErrNoVisibleSession)
	}

	result, err := e.run(ctx, s, sess, params)
	if err != nil {
		_ = e.logger.Warn(logging.CategoryCommand, "command_failed", err.Error(), map[string]any{"command": req.Command})
		return failure(err.Error())
	}
	return success(result)
}

// rangeParams carries the raw selection range of range-bearing commands.
type rangeParams struct {
	Range *struct {
		Start host.Position `json:"start"`
		End   host.Position `json:"end"`
	} `json:"range"`
}

type selectButtonParams struct {
	ButtonID string `json:"buttonId"`
}

type sendTextParams struct {
	Text    string `json:"text"`
	NewTask bool   `json:"newTask"`
}

type startTaskParams struct {
	Task   string
	Images []string
}

// decodeArgs parses and validates the argument shape each command expects.
func decodeArgs(s *spec, raw json.RawMessage) (any, error) {
	switch s.kind {
	case kindRange:
		var p rangeParams
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("invalid arguments for %s: %w", s.name, err)
			}
		}
		if p.Range == nil {
			return nil, fmt.Errorf("%s requires a range argument", s.name)
		}
		return p, nil

	case kindSelectButton:
		var p selectButtonParams
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("invalid arguments for %s: %w", s.name, err)
			}
		}
		if strings.TrimSpace(p.ButtonID) == "" {
			return nil, fmt.Errorf("%s requires a buttonId argument", s.name)
		}
		return p, nil

	case kindSendText:
		var p sendTextParams
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("invalid arguments for %s: %w", s.name, err)
			}
		}
		if strings.TrimSpace(p.Text) == "" {
			return nil, fmt.Errorf("%s requires a non-empty text argument", s.name)
		}
		return p, nil

	case kindStartTask:
		// Positional: [task] or [task, images].
		var positional []json.RawMessage
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &positional); err != nil {
				return nil, fmt.Errorf("invalid arguments for %s: %w", s.name, err)
			}
		}
		if len(positional) == 0 {
			return nil, fmt.Errorf("%s requires a task argument", s.name)
		}
		var p startTaskParams
		if err := json.Unmarshal(positional[0], &p.Task); err != nil {
			return nil, fmt.Errorf("%s: task must be a string", s.name)
		}
		if strings.TrimSpace(p.Task) == "" {
			return nil, fmt.Errorf("%s requires a non-empty task argument", s.name)
		}
		if len(positional) > 1 {
			if err := json.Unmarshal(positional[1], &p.Images); err != nil {
				return nil, fmt.Errorf("%s: images must be a string list", s.name)
			}
		}
		return p, nil

	case kindGeneric:
		// Generic commands forward positional arguments verbatim.
		if len(raw) == 0 {
			return []any(nil), nil
		}
		var positional []any
		if err := json.Unmarshal(raw, &positional); err != nil {
			// Non-list args on a generic command are ignored, matching the
			// forward-verbatim contract for argument-less commands.
			return []any(nil), nil
		}
		return positional, nil

	default:
		return nil, nil
	}
}

// run dispatches the validated command to its handler.
func (e *Executor) run(ctx context.Context, s *spec, sess host.Session, params any) (any, error) {
	switch s.kind {
	case kindGeneric:
		args, _ := params.([]any)
		return e.invoker.Invoke(ctx, s.actionID, args...)
	case kindRange:
		return e.runRange(ctx, s, params.(rangeParams))
	case kindToggleMode:
		return nil, sess.ToggleMode(ctx, s.mode)
	case kindSelectButton:
		return nil, e.runSelectButton(ctx, sess, params.(selectButtonParams))
	case kindTaskStatus:
		return e.runTaskStatus(ctx, sess)
	case kindSendText:
		return nil, e.runSendText(ctx, sess, params.(sendTextParams))
	case kindStartTask:
		p := params.(startTaskParams)
		return nil, sess.StartTask(ctx, p.Task, p.Images)
	default:
		return nil, fmt.Errorf("unhandled command kind for %s", s.name)
	}
}

// runRange converts the raw range into the host's native representation
// before forwarding it to the mapped action.
func (e *Executor) runRange(ctx context.Context, s *spec, p rangeParams) (any, error) {
	rng := host.Range{
		Start: p.Range.Start,
		End:   p.Range.End,
	}
	return e.invoker.Invoke(ctx, s.actionID, rng)
}

// runSelectButton forwards the button id as a UI action message rather than
// a generic command invocation.
func (e *Executor) runSelectButton(ctx context.Context, sess host.Session, p selectButtonParams) error {
	return sess.PostToWebview(ctx, host.WebviewMessage{
		Type:     "action",
		Action:   "buttonClicked",
		ButtonID: p.ButtonID,
	})
}

// runTaskStatus composes a status snapshot from the session's activity flags
// and, when the last message is a pending plan-mode question, the options it
// carries.
func (e *Executor) runTaskStatus(ctx context.Context, sess host.Session) (any, error) {
	state, err := sess.State(ctx)
	if err != nil {
		return nil, err
	}
	conv, err := sess.Conversation(ctx)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, errors.New(ErrNoActiveConversation)
	}

	status := TaskStatus{
		IsRunning:              state.IsStreaming || state.IsWaitingForFirstChunk,
		IsAwaitingPlanResponse: state.IsAwaitingPlanResponse,
	}

	if last := conv.LastMessage(); last != nil &&
		last.Type == host.MessageTypeAsk && last.Tag == host.TagPlanModeRespond {
		var payload struct {
			Options []string `json:"options"`
		}
		if err := json.Unmarshal([]byte(last.Text), &payload); err != nil {
			// Malformed option payloads are diagnosed but never surfaced;
			// the snapshot simply omits availableOptions.
			_ = e.logger.Warn(logging.CategoryCommand, "plan_options_unparsable", err.Error(), map[string]any{
				"session": sess.ID(),
			})
		} else {
			status.AvailableOptions = payload.Options
		}
	}

	return status, nil
}

// runSendText injects text into the current session, or starts a brand-new
// task with it when newTask is set.
func (e *Executor) runSendText(ctx context.Context, sess host.Session, p sendTextParams) error {
	if p.NewTask {
		return sess.StartTask(ctx, p.Text, nil)
	}
	return sess.PostToWebview(ctx, host.WebviewMessage{
		Type:   "invoke",
		Action: "sendMessage",
		Text:   p.Text,
	})
}
