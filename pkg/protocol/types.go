// Package protocol defines the JSON-lines protocol spoken between an engine client and
// an engine server.
//
// The server greets with READY, then answers every CALL with exactly one REPLY (or an
// ERROR for calls it could not decode) carrying the same id. EXIT is sent before the
// server stops.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cookbridge/cookbridge/pkg/engine"
)

// Version is the protocol version announced in READY.
const Version = "1"

// MessageType represents the type of message in the protocol.
type MessageType string

const (
	// MessageTypeReady is sent once by the server when it accepts calls.
	MessageTypeReady MessageType = "READY"
	// MessageTypeCall is an engine call from the client.
	MessageTypeCall MessageType = "CALL"
	// MessageTypeReply answers one call.
	MessageTypeReply MessageType = "REPLY"
	// MessageTypeError reports a call the server could not decode or dispatch.
	MessageTypeError MessageType = "ERROR"
	// MessageTypeExit is sent before the server stops.
	MessageTypeExit MessageType = "EXIT"
)

// Message is the envelope written on each line.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ReadyMessage is the server hello.
type ReadyMessage struct {
	Version  string            `json:"version"`
	Platform string            `json:"platform"`
	Arch     string            `json:"arch"`
	PID      int               `json:"pid"`
	License  engine.License    `json:"license"`
	Caps     map[string]bool   `json:"capabilities"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CallMessage is one engine call.
type CallMessage struct {
	ID     string `json:"id"`
	Method Method `json:"method"`
	Args   Args   `json:"args"`
}

// ReplyMessage answers a call. A non-success Result carries no Value.
type ReplyMessage struct {
	CallID   string          `json:"call_id"`
	Result   engine.Result   `json:"result"`
	Message  string          `json:"message,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
	Duration float64         `json:"duration"` // seconds
}

// ErrorMessage reports a transport-level failure.
type ErrorMessage struct {
	CallID    string `json:"call_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// ExitMessage is sent before the server terminates.
type ExitMessage struct {
	Reason     string `json:"reason"`
	ExitCode   int    `json:"exit_code"`
	CallsTotal int    `json:"calls_total"`
}

// Error codes used in ErrorMessage.
const (
	CodeBadMessage    = "BAD_MESSAGE"
	CodeUnknownMethod = "UNKNOWN_METHOD"
	CodeBadArgs       = "BAD_ARGS"
)

// Args carries the arguments of any call. Each method reads the fields it needs; the
// rest stay zero and are omitted on the wire.
type Args struct {
	Node       engine.NodeID        `json:"node,omitempty"`
	RelativeTo engine.NodeID        `json:"relative_to,omitempty"`
	Part       engine.PartID        `json:"part,omitempty"`
	Parm       engine.ParmID        `json:"parm,omitempty"`
	Library    engine.LibraryID     `json:"library,omitempty"`
	Handle     engine.StringHandle  `json:"handle,omitempty"`
	Batch      engine.StringBatchID `json:"batch,omitempty"`

	Name     string `json:"name,omitempty"`
	Operator string `json:"operator,omitempty"`
	Label    string `json:"label,omitempty"`
	Path     string `json:"path,omitempty"`
	Tag      string `json:"tag,omitempty"`
	Bytes    []byte `json:"bytes,omitempty"`

	Status      engine.StatusType      `json:"status,omitempty"`
	Verbosity   engine.StatusVerbosity `json:"verbosity,omitempty"`
	EnvKey      engine.SessionEnvInt   `json:"env_key,omitempty"`
	Owner       engine.AttributeOwner  `json:"owner,omitempty"`
	GroupType   engine.GroupType       `json:"group_type,omitempty"`
	Order       engine.RSTOrder        `json:"order,omitempty"`
	TypeFilter  engine.NodeType        `json:"type_filter,omitempty"`
	FlagsFilter engine.NodeFlags       `json:"flags_filter,omitempty"`

	Info      *engine.AttributeInfo  `json:"info,omitempty"`
	Cook      *engine.CookOptions    `json:"cook,omitempty"`
	Transform *engine.TransformEuler `json:"transform,omitempty"`

	Start  int  `json:"start,omitempty"`
	Length int  `json:"length,omitempty"`
	Index  int  `json:"index,omitempty"`
	Flag   bool `json:"flag,omitempty"`

	Ints    []int32   `json:"ints,omitempty"`
	Floats  []float32 `json:"floats,omitempty"`
	Strings []string  `json:"strings,omitempty"`
}

// GroupMembership is the value of a GetGroupMembership reply.
type GroupMembership struct {
	Membership []int32 `json:"membership"`
	AllEqual   bool    `json:"all_equal"`
}

// GroupCount is the value of a GetGroupCountOnPackedInstancePart reply.
type GroupCount struct {
	Point     int `json:"point"`
	Primitive int `json:"primitive"`
}

// Validate checks if the message type is valid.
func (mt MessageType) Validate() error {
	switch mt {
	case MessageTypeReady, MessageTypeCall, MessageTypeReply, MessageTypeError, MessageTypeExit:
		return nil
	default:
		return fmt.Errorf("invalid message type: %s", mt)
	}
}

// Validate checks if the call message is valid.
func (c *CallMessage) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("call ID is required")
	}
	return c.Method.Validate()
}
