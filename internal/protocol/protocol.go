// Package protocol defines the JSON control channel between a hosting UI and the
// engine.
package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello         = "HELLO"
	TypeWelcome       = "WELCOME"
	TypeSetParam      = "SET_PARAM"
	TypeApplyPreset   = "APPLY_PRESET"
	TypeResetDefaults = "RESET_DEFAULTS"
	TypeSettingsPanel = "SETTINGS_PANEL"
	TypeResize        = "RESIZE"
	TypeResult        = "RESULT"
	TypeEvent         = "EVENT"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	Ref             string `json:"ref,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
