package common

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/tKV/lib/store"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key   int64  `json:"key,omitempty"`   // Used for: Init, Push, Pull, Validate
	Value []byte `json:"value,omitempty"` // Encoded tensor. Used for: Init, Push (request), Pull (response), Info (response, json)

	// Response only fields
	Generation uint64 `json:"generation,omitempty"` // Used for: Push, Pull responses
	Code       uint64 `json:"code,omitempty"`       // store.RetCode, 0 on success
	Err        string `json:"err,omitempty"`        // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Worker id of the sender (requests)
}

// ResponseError returns the error carried by a response as *store.Error, nil on success
func (m *Message) ResponseError() error {
	if m.Code == uint64(store.RetCSuccess) && m.Err == "" {
		return nil
	}
	code := store.RetCode(m.Code)
	if code == store.RetCSuccess {
		code = store.RetCInternalError
	}
	return store.NewError(code, m.Err)
}

// setError fills Code and Err from err
func (m *Message) setError(err error) *Message {
	if err != nil {
		e := store.AsError(err)
		m.Code = uint64(e.Code)
		m.Err = e.Msg
	}
	return m
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewInitRequest creates a new Init request
func NewInitRequest(key int64, value []byte) *Message {
	return &Message{
		MsgType: MsgTInit,
		Key:     key,
		Value:   value,
	}
}

// NewInitResponse creates a new Init response
func NewInitResponse(err error) *Message {
	return (&Message{MsgType: MsgTInit}).setError(err)
}

// NewPushRequest creates a new Push request
func NewPushRequest(key int64, value []byte) *Message {
	return &Message{
		MsgType: MsgTPush,
		Key:     key,
		Value:   value,
	}
}

// NewPushResponse creates a new Push response
func NewPushResponse(err error) *Message {
	return (&Message{MsgType: MsgTPush}).setError(err)
}

// NewPullRequest creates a new Pull request
func NewPullRequest(key int64) *Message {
	return &Message{
		MsgType: MsgTPull,
		Key:     key,
	}
}

// NewPullResponse creates a new Pull response
func NewPullResponse(value []byte, generation uint64, err error) *Message {
	return (&Message{
		MsgType:    MsgTPull,
		Value:      value,
		Generation: generation,
	}).setError(err)
}

// NewInfoRequest creates a new Info request
func NewInfoRequest() *Message {
	return &Message{
		MsgType: MsgTInfo,
	}
}

// NewInfoResponse creates a new Info response, info is json encoded db.DatabaseInfo
func NewInfoResponse(info []byte, err error) *Message {
	return (&Message{
		MsgType: MsgTInfo,
		Value:   info,
	}).setError(err)
}

// NewValidateRequest creates a new Validate request.
// An empty shape checks that key is still free (init), otherwise key must
// exist and hold a value of that shape (push). The shape is sent as text, e.g. "(2, 3)".
func NewValidateRequest(key int64, shape string) *Message {
	return &Message{
		MsgType: MsgTValidate,
		Key:     key,
		Value:   []byte(shape),
	}
}

// NewValidateResponse creates a new Validate response
func NewValidateResponse(err error) *Message {
	return (&Message{MsgType: MsgTValidate}).setError(err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(code store.RetCode, err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Code:    uint64(code),
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTInit:
		return "init"
	case MsgTPush:
		return "push"
	case MsgTPull:
		return "pull"
	case MsgTInfo:
		return "info"
	case MsgTValidate:
		return "validate"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch s {
	case "init":
		*t = MsgTInit
	case "push":
		*t = MsgTPush
	case "pull":
		*t = MsgTPull
	case "info":
		*t = MsgTInfo
	case "validate":
		*t = MsgTValidate
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	case "unknown":
		*t = MsgTUnknown
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IStore operations

	MsgTInit // Initialize a key
	MsgTPush // Push a value to a key
	MsgTPull // Pull the value of a key
	MsgTInfo     // Table info of a shard
	MsgTValidate // Check that a key could be init-ed or pushed, without mutating it
)
