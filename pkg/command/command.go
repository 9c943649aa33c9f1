// Package command defines the public command vocabulary of the gateway and
// executes commands against the assistant host.
package command

import "encoding/json"

// Request is the wire-level command envelope posted to the gateway. Args is
// either a named mapping or a positional list depending on the command.
type Request struct {
	Command string          `json:"command"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// Response is the wire-level command result. Command failures are reported
// here, not as HTTP errors.
type Response struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TaskStatus is the result shape of the getTaskStatus command. It is
// synthesized from host session state on every call, never cached.
type TaskStatus struct {
	IsRunning              bool     `json:"isRunning"`
	IsAwaitingPlanResponse bool     `json:"isAwaitingPlanResponse"`
	AvailableOptions       []string `json:"availableOptions,omitempty"`
}

// ArgSpec describes one named argument in the catalog.
type ArgSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// CatalogEntry describes one supported command for GET /commands.
type CatalogEntry struct {
	Command     string    `json:"command"`
	Description string    `json:"description"`
	Args        []ArgSpec `json:"args,omitempty"`
}

func failure(msg string) Response {
	return Response{Success: false, Error: msg}
}

func success(result any) Response {
	return Response{Success: true, Result: result}
}
