package command

import "github.com/odvcencio/switchboard/pkg/host"

// kind selects the dispatch path for a command.
type kind int

const (
	// kindGeneric forwards the command verbatim to the host invoker.
	kindGeneric kind = iota
	// kindRange converts a raw selection range before forwarding.
	kindRange
	// kindToggleMode maps two public names onto one parameterized toggle.
	kindToggleMode
	// kindSelectButton posts a UI action message instead of invoking.
	kindSelectButton
	// kindTaskStatus composes a status snapshot from session state.
	kindTaskStatus
	// kindSendText injects text into the session or starts a new task.
	kindSendText
	// kindStartTask starts a new task from positional arguments.
	kindStartTask
)

// spec binds a public command name to its host action and dispatch path.
type spec struct {
	name        string
	description string
	kind        kind
	actionID    string    // host action id for generic and range kinds
	mode        host.Mode // target mode for the toggle kind
	args        []ArgSpec
}

var rangeArg = ArgSpec{
	Name:        "range",
	Type:        "object",
	Description: "Selection range {start:{line,character}, end:{line,character}}",
}

// specs is the closed table of supported commands. Catalog entries and the
// command mapping are both derived from it, so they can never drift apart.
var specs = []spec{
	{
		name:        "openNewTab",
		description: "Open the assistant panel in a new editor tab",
		kind:        kindGeneric,
		actionID:    "assistant.openInNewTab",
	},
	{
		name:        "clickPlusButton",
		description: "Click the plus (new task) button",
		kind:        kindGeneric,
		actionID:    "assistant.plusButtonClicked",
	},
	{
		name:        "clickMCPButton",
		description: "Click the MCP servers button",
		kind:        kindGeneric,
		actionID:    "assistant.mcpButtonClicked",
	},
	{
		name:        "clickSettingsButton",
		description: "Click the settings button",
		kind:        kindGeneric,
		actionID:    "assistant.settingsButtonClicked",
	},
	{
		name:        "clickHistoryButton",
		description: "Click the history button",
		kind:        kindGeneric,
		actionID:    "assistant.historyButtonClicked",
	},
	{
		name:        "clickAccountButton",
		description: "Click the account button",
		kind:        kindGeneric,
		actionID:    "assistant.accountButtonClicked",
	},
	{
		name:        "addToChat",
		description: "Add the selected code range to the chat",
		kind:        kindRange,
		actionID:    "assistant.addToChat",
		args:        []ArgSpec{rangeArg},
	},
	{
		name:        "addTerminalOutput",
		description: "Add the terminal output to the chat",
		kind:        kindGeneric,
		actionID:    "assistant.addTerminalOutputToChat",
	},
	{
		name:        "fixWithAssistant",
		description: "Ask the assistant to fix the selected code range",
		kind:        kindRange,
		actionID:    "assistant.fixWithAssistant",
		args:        []ArgSpec{rangeArg},
	},
	{
		name:        "switchToPlanMode",
		description: "Switch the session to plan mode",
		kind:        kindToggleMode,
		mode:        host.ModePlan,
	},
	{
		name:        "switchToActMode",
		description: "Switch the session to act mode",
		kind:        kindToggleMode,
		mode:        host.ModeAct,
	},
	{
		name:        "clickSelectButton",
		description: "Click an option button by its id",
		kind:        kindSelectButton,
		args: []ArgSpec{{
			Name:        "buttonId",
			Type:        "string",
			Description: "Id of the option button to click",
		}},
	},
	{
		name:        "getTaskStatus",
		description: "Get the current task status",
		kind:        kindTaskStatus,
	},
	{
		name:        "sendText",
		description: "Send text to the session input and submit it",
		kind:        kindSendText,
		args: []ArgSpec{
			{Name: "text", Type: "string", Description: "Text to send"},
			{Name: "newTask", Type: "boolean", Description: "Start a brand-new task with the text instead of submitting it to the current session (default false)"},
		},
	},
	{
		name:        "startNewTask",
		description: "Start a new task; positional args: task text, optional image list",
		kind:        kindStartTask,
		args: []ArgSpec{
			{Name: "task", Type: "string", Description: "Task description"},
			{Name: "images", Type: "string[]", Description: "Optional image attachments"},
		},
	},
}

var specIndex = func() map[string]*spec {
	idx := make(map[string]*spec, len(specs))
	for i := range specs {
		idx[specs[i].name] = &specs[i]
	}
	return idx
}()

// Catalog returns the static command catalog served on GET /commands.
func Catalog() []CatalogEntry {
	entries := make([]CatalogEntry, 0, len(specs))
	for _, s := range specs {
		entries = append(entries, CatalogEntry{
			Command:     s.name,
			Description: s.description,
			Args:        append([]ArgSpec(nil), s.args...),
		})
	}
	return entries
}

// Names returns the supported command names in catalog order.
func Names() []string {
	names := make([]string, 0, len(specs))
	for _, s := range specs {
		names = append(names, s.name)
	}
	return names
}

// Known reports whether a command name is in the catalog.
func Known(name string) bool {
	_, ok := specIndex[name]
	return ok
}

// ActionID reports the host action a command maps to, for generic and
// range commands.
func ActionID(name string) (string, bool) {
	s, ok := specIndex[name]
	if !ok || s.actionID == "" {
		return "", false
	}
	return s.actionID, true
}
