package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePacket(t *testing.T) {
	tests := []struct {
		in     string
		engine byte
		socket byte
		data   string
	}{
		{`0{"sid":"x"}`, engineOpen, 0, `{"sid":"x"}`},
		{`2`, enginePing, 0, ``},
		{`40{"sid":"y"}`, engineMessage, socketConnect, `{"sid":"y"}`},
		{`42["task:assigned",{}]`, engineMessage, socketEvent, `["task:assigned",{}]`},
		{`42/admin,["evt"]`, engineMessage, socketEvent, `["evt"]`},
		{`4217["evt"]`, engineMessage, socketEvent, `["evt"]`},
		{`44{"message":"no"}`, engineMessage, socketConnectError, `{"message":"no"}`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := decodePacket([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.engine, p.Engine)
			assert.Equal(t, tt.socket, p.Socket)
			assert.Equal(t, tt.data, string(p.Data))
		})
	}

	_, err := decodePacket(nil)
	assert.Error(t, err)
	_, err = decodePacket([]byte("4"))
	assert.Error(t, err)
}

func TestDecodeOpen(t *testing.T) {
	p, err := decodePacket([]byte(`0{"sid":"abc","pingInterval":25000,"pingTimeout":20000}`))
	require.NoError(t, err)

	open, err := decodeOpen(p)
	require.NoError(t, err)
	assert.Equal(t, "abc", open.SID)
	assert.Equal(t, 45*time.Second, open.readTimeout())

	_, err = decodeOpen(packet{Engine: enginePing})
	assert.Error(t, err)
}

func TestEncodeEvent(t *testing.T) {
	frame, err := encodeEvent("register", "u1")
	require.NoError(t, err)
	assert.Equal(t, `42["register","u1"]`, string(frame))

	p, err := decodePacket(frame)
	require.NoError(t, err)
	name, args, err := decodeEvent(p.Data)
	require.NoError(t, err)
	assert.Equal(t, "register", name)
	require.Len(t, args, 1)
	assert.JSONEq(t, `"u1"`, string(args[0]))
}

func TestConnectError(t *testing.T) {
	assert.EqualError(t, connectError([]byte(`{"message":"bad user"}`)), "bad user")
	assert.Error(t, connectError(nil))
}

func TestDecodeAssigned(t *testing.T) {
	received := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name      string
		payload   string
		wantErr   bool
		wantMsg   string
		wantTask  bool
		wantTitle string
		wantTime  time.Time
	}{
		{
			name:      "full payload",
			payload:   `{"message":"New task","task":{"_id":"t1","title":"Fix bug","description":"now"},"timestamp":"2026-01-01T10:00:00Z"}`,
			wantMsg:   "New task",
			wantTask:  true,
			wantTitle: "Fix bug",
			wantTime:  time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
		},
		{name: "missing task", payload: `{"message":"hi"}`, wantMsg: "hi", wantTime: received},
		{name: "null task", payload: `{"message":"hi","task":null}`, wantMsg: "hi", wantTime: received},
		{name: "task of wrong type", payload: `{"message":"hi","task":"t1"}`, wantMsg: "hi", wantTime: received},
		{name: "epoch millis", payload: `{"message":"hi","timestamp":1767261600000}`, wantMsg: "hi", wantTime: time.UnixMilli(1767261600000)},
		{name: "bad timestamp", payload: `{"message":"hi","timestamp":"yesterday"}`, wantMsg: "hi", wantTime: received},
		{name: "empty object", payload: `{}`, wantTime: received},
		{name: "array payload", payload: `["x"]`, wantErr: true},
		{name: "string payload", payload: `"x"`, wantErr: true},
		{name: "null payload", payload: `null`, wantErr: true},
		{name: "no payload", payload: ``, wantErr: true},
		{name: "numeric message", payload: `{"message":42}`, wantMsg: "42", wantTime: received},
		{name: "object message", payload: `{"message":{"text":"hi"}}`, wantMsg: `{"text":"hi"}`, wantTime: received},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := decodeAssigned(json.RawMessage(tt.payload), received)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedPayload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMsg, ev.Message)
			assert.Equal(t, received, ev.ReceivedAt)
			assert.True(t, tt.wantTime.Equal(ev.Timestamp), "timestamp %v", ev.Timestamp)
			if tt.wantTask {
				require.NotNil(t, ev.Task)
				assert.Equal(t, tt.wantTitle, ev.Task.Title)
			} else {
				assert.Nil(t, ev.Task)
			}
		})
	}
}
