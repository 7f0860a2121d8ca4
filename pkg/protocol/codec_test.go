package protocol

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cookbridge/cookbridge/pkg/engine"
)

func TestEncoder(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    interface{}
		wantErr bool
	}{
		{
			name:    "encode ready message",
			msgType: MessageTypeReady,
			data: &ReadyMessage{
				Version:  Version,
				Platform: "linux",
				Arch:     "amd64",
				PID:      1234,
				License:  engine.LicenseHoudiniFX,
				Caps:     map[string]bool{"geometry": true},
			},
		},
		{
			name:    "encode call message",
			msgType: MessageTypeCall,
			data:    &CallMessage{ID: "c-1", Method: MethodGetStatus, Args: Args{Status: engine.StatusCookState}},
		},
		{
			name:    "encode reply message",
			msgType: MessageTypeReply,
			data:    &ReplyMessage{CallID: "c-1", Result: engine.ResultSuccess, Value: []byte(`3`), Duration: 0.01},
		},
		{
			name:    "encode error message",
			msgType: MessageTypeError,
			data:    &ErrorMessage{CallID: "c-1", Code: CodeBadArgs, Message: "missing info"},
		},
		{
			name:    "encode exit message",
			msgType: MessageTypeExit,
			data:    &ExitMessage{Reason: "stdin_closed", CallsTotal: 5},
		},
		{
			name:    "invalid message type",
			msgType: MessageType("INVALID"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := NewEncoder(&buf).Encode(tt.msgType, tt.data)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			out := buf.String()
			assert.True(t, strings.HasSuffix(out, "\n"))
			assert.Equal(t, 1, strings.Count(out, "\n"), "one message per line")
			assert.Contains(t, out, string(tt.msgType))
		})
	}
}

func TestEncodeDecodeCall(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	info := engine.AttributeInfo{Exists: true, Owner: engine.OwnerPoint, Count: 3, TupleSize: 3}
	call := &CallMessage{
		ID:     "c-7",
		Method: MethodGetAttributeFloatData,
		Args:   Args{Node: 4, Part: 1, Name: "P", Info: &info, Length: 3},
	}
	require.NoError(t, enc.EncodeCall(call))

	msg, err := NewDecoder(&buf).Decode()
	require.NoError(t, err)
	got, err := DecodeCall(msg)
	require.NoError(t, err)
	assert.Equal(t, call, got)
}

func TestEncodeCallRejectsUnknownMethod(t *testing.T) {
	var buf bytes.Buffer
	err := NewEncoder(&buf).EncodeCall(&CallMessage{ID: "c-1", Method: "Explode"})
	require.Error(t, err)
	assert.Zero(t, buf.Len())

	err = NewEncoder(&buf).EncodeCall(&CallMessage{Method: MethodGetStatus})
	assert.Error(t, err, "missing id")
}

func TestDecoder(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		wantEOF bool
	}{
		{name: "reply", input: `{"type":"REPLY","timestamp":"2026-01-02T03:04:05Z","data":{"call_id":"c-1","result":0}}` + "\n"},
		{name: "empty stream", input: "", wantEOF: true},
		{name: "empty line", input: "\n", wantErr: true},
		{name: "not json", input: "hello\n", wantErr: true},
		{name: "unknown type", input: `{"type":"EVENT","timestamp":"2026-01-02T03:04:05Z"}` + "\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewDecoder(strings.NewReader(tt.input)).Decode()
			switch {
			case tt.wantEOF:
				assert.ErrorIs(t, err, io.EOF)
			case tt.wantErr:
				require.Error(t, err)
				assert.NotErrorIs(t, err, io.EOF)
			default:
				require.NoError(t, err)
				assert.Equal(t, MessageTypeReply, msg.Type)
			}
		})
	}
}

func TestDecodeCallWrongType(t *testing.T) {
	_, err := DecodeCall(&Message{Type: MessageTypeReply})
	assert.Error(t, err)
}

func TestReplyValue(t *testing.T) {
	v, err := MarshalValue(GroupMembership{Membership: []int32{1, 0, 1}})
	require.NoError(t, err)

	var g GroupMembership
	require.NoError(t, ParseData(v, &g))
	assert.Equal(t, []int32{1, 0, 1}, g.Membership)
	assert.False(t, g.AllEqual)

	v, err = MarshalValue(nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestMethodValidate(t *testing.T) {
	seen := map[Method]bool{}
	for _, m := range AllMethods() {
		require.NoError(t, m.Validate())
		assert.False(t, seen[m], "duplicate %s", m)
		seen[m] = true
	}
	assert.Error(t, Method("").Validate())
	assert.Error(t, Method("getstatus").Validate())
}
