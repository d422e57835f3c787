package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello    = "HELLO"
	TypeWelcome  = "WELCOME"
	TypeIntent   = "INTENT"
	TypeAck      = "ACK"
	TypeEvent    = "EVENT"
	TypeSnapshot = "SNAPSHOT"
)

// Intent kinds.
const (
	IntentToggleMaterial = "TOGGLE_MATERIAL"
	IntentCraft          = "CRAFT"
	IntentExplore        = "EXPLORE"
	IntentCommand        = "COMMAND"
	IntentExecute        = "EXECUTE"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
