package protocol

import "driftscape.app/internal/sim/config"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	SessionID       string        `json:"session_id"`
	Tick            uint64        `json:"tick"`
	Ready           bool          `json:"ready"`
	Config          config.Config `json:"config"`
	Presets         []string      `json:"presets"`
	Params          []ParamInfo   `json:"params"`
	SettingsOpen    bool          `json:"settings_open"`
	Notices         []string      `json:"notices,omitempty"`
}

// ParamInfo advertises one tunable parameter and how a change takes effect.
type ParamInfo struct {
	Domain string `json:"domain"`
	Name   string `json:"name"`
	Effect string `json:"effect"`
}

// SET_PARAM (client -> server)
type SetParamMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ref             string `json:"ref,omitempty"`
	Domain          string `json:"domain"`
	Name            string `json:"name"`
	Value           any    `json:"value"`
}

// APPLY_PRESET (client -> server)
type ApplyPresetMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ref             string `json:"ref,omitempty"`
	Name            string `json:"name"`
}

// RESET_DEFAULTS (client -> server)
type ResetDefaultsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ref             string `json:"ref,omitempty"`
}

// SETTINGS_PANEL (client -> server)
type SettingsPanelMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ref             string `json:"ref,omitempty"`
	Open            bool   `json:"open"`
}

// RESIZE (client -> server)
type ResizeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ref             string `json:"ref,omitempty"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
}

// RESULT (server -> client) answers one client request.
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ref             string `json:"ref,omitempty"`
	For             string `json:"for"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	Effect          string `json:"effect,omitempty"`
	Tick            uint64 `json:"tick,omitempty"`
}

// EVENT (server -> client) forwards an engine event.
type EventMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Kind            string         `json:"kind"`
	Tick            uint64         `json:"tick"`
	Message         string         `json:"message,omitempty"`
	Config          *config.Config `json:"config,omitempty"`
	Open            *bool          `json:"open,omitempty"`
}
