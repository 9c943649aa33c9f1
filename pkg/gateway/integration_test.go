package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/switchboard/pkg/bus"
	"github.com/odvcencio/switchboard/pkg/command"
	"github.com/odvcencio/switchboard/pkg/host"
)

// stubExtension answers host RPC subjects on the bus the way the assistant
// extension would, and records what it was asked to do.
type stubExtension struct {
	mu        sync.Mutex
	sessionID string
	state     host.State
	messages  []host.ConversationMessage
	invoked   []string
	webview   []host.WebviewMessage
	tasks     []string
	modes     []host.Mode
}

func (x *stubExtension) attach(t *testing.T, b bus.MessageBus) {
	t.Helper()
	ctx := context.Background()

	mustSubscribe := func(subject string, handler bus.MessageHandler) {
		sub, err := b.Subscribe(ctx, subject, handler)
		require.NoError(t, err)
		t.Cleanup(func() { _ = sub.Unsubscribe() })
	}

	mustSubscribe("assistant.rpc.session.visible", func(_ *bus.Message) []byte {
		x.mu.Lock()
		defer x.mu.Unlock()
		out, _ := json.Marshal(map[string]string{"sessionId": x.sessionID})
		return out
	})

	mustSubscribe("assistant.rpc.invoke", func(msg *bus.Message) []byte {
		var req struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(msg.Data, &req)
		x.mu.Lock()
		x.invoked = append(x.invoked, req.ID)
		x.mu.Unlock()
		return []byte(`{}`)
	})

	mustSubscribe("assistant.rpc.session.*.state", func(_ *bus.Message) []byte {
		x.mu.Lock()
		defer x.mu.Unlock()
		out, _ := json.Marshal(map[string]any{"state": x.state})
		return out
	})

	mustSubscribe("assistant.rpc.session.*.conversation", func(_ *bus.Message) []byte {
		x.mu.Lock()
		defer x.mu.Unlock()
		out, _ := json.Marshal(map[string]any{
			"conversation": host.Conversation{Messages: x.messages},
		})
		return out
	})

	mustSubscribe("assistant.rpc.session.*.webview", func(msg *bus.Message) []byte {
		var wm host.WebviewMessage
		_ = json.Unmarshal(msg.Data, &wm)
		x.mu.Lock()
		x.webview = append(x.webview, wm)
		x.mu.Unlock()
		return []byte(`{}`)
	})

	mustSubscribe("assistant.rpc.session.*.newTask", func(msg *bus.Message) []byte {
		var req struct {
			Text string `json:"text"`
		}
		_ = json.Unmarshal(msg.Data, &req)
		x.mu.Lock()
		x.tasks = append(x.tasks, req.Text)
		x.mu.Unlock()
		return []byte(`{}`)
	})

	mustSubscribe("assistant.rpc.session.*.toggleMode", func(msg *bus.Message) []byte {
		var req struct {
			Mode host.Mode `json:"mode"`
		}
		_ = json.Unmarshal(msg.Data, &req)
		x.mu.Lock()
		x.modes = append(x.modes, req.Mode)
		x.mu.Unlock()
		return []byte(`{}`)
	})
}

func newStack(t *testing.T, ext *stubExtension) http.Handler {
	t.Helper()
	memBus := bus.NewMemoryBus()
	t.Cleanup(func() { _ = memBus.Close() })
	ext.attach(t, memBus)

	client := host.NewClient(memBus, host.WithTimeout(5*time.Second))
	executor := command.NewExecutor(client, client, nil)
	server := NewServer(Config{Version: "test"}, executor, nil)
	return server.Router()
}

func postCommand(t *testing.T, h http.Handler, body string) (int, command.Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp command.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestEndToEndGenericCommand(t *testing.T) {
	ext := &stubExtension{sessionID: "sess-1"}
	h := newStack(t, ext)

	code, resp := postCommand(t, h, `{"command":"clickMCPButton"}`)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success, resp.Error)

	ext.mu.Lock()
	defer ext.mu.Unlock()
	assert.Equal(t, []string{"assistant.mcpButtonClicked"}, ext.invoked)
}

func TestEndToEndNoVisibleSession(t *testing.T) {
	ext := &stubExtension{}
	h := newStack(t, ext)

	code, resp := postCommand(t, h, `{"command":"clickPlusButton"}`)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, resp.Success)
	assert.Equal(t, command.ErrNoVisibleSession, resp.Error)

	ext.mu.Lock()
	defer ext.mu.Unlock()
	assert.Empty(t, ext.invoked)
}

func TestEndToEndTaskStatus(t *testing.T) {
	ext := &stubExtension{
		sessionID: "sess-1",
		state:     host.State{IsStreaming: true, IsAwaitingPlanResponse: true},
		messages: []host.ConversationMessage{
			{Type: host.MessageTypeAsk, Tag: host.TagPlanModeRespond, Text: `{"options":["Yes","No"]}`},
		},
	}
	h := newStack(t, ext)

	code, resp := postCommand(t, h, `{"command":"getTaskStatus"}`)
	require.Equal(t, http.StatusOK, code)
	require.True(t, resp.Success, resp.Error)

	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var status command.TaskStatus
	require.NoError(t, json.Unmarshal(raw, &status))
	assert.True(t, status.IsRunning)
	assert.True(t, status.IsAwaitingPlanResponse)
	assert.Equal(t, []string{"Yes", "No"}, status.AvailableOptions)
}

func TestEndToEndSendTextAndModes(t *testing.T) {
	ext := &stubExtension{sessionID: "sess-1"}
	h := newStack(t, ext)

	code, resp := postCommand(t, h, `{"command":"sendText","args":{"text":"hello"}}`)
	require.Equal(t, http.StatusOK, code)
	require.True(t, resp.Success, resp.Error)

	code, resp = postCommand(t, h, `{"command":"sendText","args":{"text":"fresh start","newTask":true}}`)
	require.Equal(t, http.StatusOK, code)
	require.True(t, resp.Success, resp.Error)

	code, resp = postCommand(t, h, `{"command":"switchToPlanMode"}`)
	require.Equal(t, http.StatusOK, code)
	require.True(t, resp.Success, resp.Error)

	ext.mu.Lock()
	defer ext.mu.Unlock()
	require.Len(t, ext.webview, 1)
	assert.Equal(t, "sendMessage", ext.webview[0].Action)
	assert.Equal(t, "hello", ext.webview[0].Text)
	assert.Equal(t, []string{"fresh start"}, ext.tasks)
	assert.Equal(t, []host.Mode{host.ModePlan}, ext.modes)
}

func TestEndToEndUnknownCommand(t *testing.T) {
	ext := &stubExtension{sessionID: "sess-1"}
	h := newStack(t, ext)

	code, resp := postCommand(t, h, `{"command":"explodeEverything"}`)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, resp.Success)
	assert.True(t, strings.Contains(resp.Error, "explodeEverything"))
}
