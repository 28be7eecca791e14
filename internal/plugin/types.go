// Package plugin discovers external plugin executables and runs them as
// interaction tasks.
package plugin

import (
	"encoding/json"
	"slices"
)

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	Phases       []string        `json:"phases,omitempty"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// HasAction reports whether the manifest declares action. A manifest with no
// actions accepts any.
func (m Manifest) HasAction(action string) bool {
	return len(m.Actions) == 0 || slices.Contains(m.Actions, action)
}

// WantsPhase reports whether the plugin is invoked for a task phase
// ("start", "update" or "end"). Plugins always receive the start of a
// gesture; update and end must be opted into.
func (m Manifest) WantsPhase(phase string) bool {
	if phase == "start" || phase == "discrete" {
		return true
	}
	return slices.Contains(m.Phases, phase)
}

// Request is written to the plugin's stdin as JSON.
type Request struct {
	Action       string          `json:"action"`
	Gesture      string          `json:"gesture"`
	Phase        string          `json:"phase"`
	State        string          `json:"state,omitempty"`
	Keyword      string          `json:"keyword,omitempty"`
	Interactable string          `json:"interactable,omitempty"`
	Source       string          `json:"source,omitempty"`
	Config       json.RawMessage `json:"config"`
	Params       json.RawMessage `json:"params,omitempty"`
}

// Response is read from the plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
