package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	event, data, err := DecodeEnvelope([]byte(`{"event":"move","data":{"x":1}}`))
	require.NoError(t, err)
	assert.Equal(t, "move", event)
	assert.JSONEq(t, `{"x":1}`, string(data))

	_, _, err = DecodeEnvelope([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseJoin(t *testing.T) {
	ev, err := ParseEvent("join", json.RawMessage(`{"name":"Bo","x":1.5,"y":"2","color":"red"}`))
	require.NoError(t, err)
	join := ev.(JoinEvent)
	assert.Equal(t, "Bo", join.Name)
	require.NotNil(t, join.X)
	assert.Equal(t, 1.5, *join.X)
	assert.Nil(t, join.Y)
	require.NotNil(t, join.Color)
	assert.Equal(t, "red", *join.Color)
}

func TestParseJoinRejectsOddColors(t *testing.T) {
	for _, color := range []string{`"!!!red"`, `"#12"`, `"rgb(1,2,3)"`, `17`, `""`} {
		ev, err := ParseEvent("join", json.RawMessage(`{"color":`+color+`}`))
		require.NoError(t, err)
		assert.Nil(t, ev.(JoinEvent).Color, color)
	}
}

func TestParseMove(t *testing.T) {
	ev, err := ParseEvent("MOVE", json.RawMessage(`{"x":3,"angle":true}`))
	require.NoError(t, err)
	move := ev.(MoveEvent)
	require.NotNil(t, move.X)
	assert.Equal(t, 3.0, *move.X)
	assert.Nil(t, move.Y)
	assert.Nil(t, move.Angle)
}

func TestParseCommand(t *testing.T) {
	ev, err := ParseEvent("command", json.RawMessage(`{"type":"Freeze","targetId":"b"}`))
	require.NoError(t, err)
	cmd := ev.(CommandEvent)
	assert.Equal(t, CmdFreeze, cmd.Type)
	require.NotNil(t, cmd.Target)
	assert.Equal(t, PlayerID("b"), *cmd.Target)
}

func TestParseCommandTargetPresence(t *testing.T) {
	ev, _ := ParseEvent("command", json.RawMessage(`{"type":"spin"}`))
	assert.Nil(t, ev.(CommandEvent).Target)

	ev, _ = ParseEvent("command", json.RawMessage(`{"type":"spin","targetId":null}`))
	assert.Nil(t, ev.(CommandEvent).Target)

	ev, _ = ParseEvent("command", json.RawMessage(`{"type":"spin","targetId":5}`))
	require.NotNil(t, ev.(CommandEvent).Target)
	assert.Equal(t, PlayerID(""), *ev.(CommandEvent).Target)
}

func TestParseCommandLegacyShape(t *testing.T) {
	for event, want := range map[string]CommandType{
		`{"action":"bringHere","targetId":"b"}`:  CmdPull,
		`{"action":"teleportTo","targetId":"b"}`: CmdTeleport,
		`{"action":"kick","targetId":"b"}`:       CmdKick,
	} {
		for _, name := range []string{"adminAction", "adminCmd"} {
			ev, err := ParseEvent(name, json.RawMessage(event))
			require.NoError(t, err)
			assert.Equal(t, want, ev.(CommandEvent).Type, event)
		}
	}
}

func TestParseCommandPayload(t *testing.T) {
	ev, _ := ParseEvent("command", json.RawMessage(`{"type":"announce","payload":"hi"}`))
	assert.Equal(t, "hi", ev.(CommandEvent).Payload)

	ev, _ = ParseEvent("command", json.RawMessage(`{"type":"announce","payload":42}`))
	assert.Equal(t, "42", ev.(CommandEvent).Payload)

	ev, _ = ParseEvent("command", json.RawMessage(`{"type":"announce"}`))
	assert.Equal(t, "", ev.(CommandEvent).Payload)
}

func TestParseEventErrors(t *testing.T) {
	_, err := ParseEvent("fly", nil)
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, err = ParseEvent("join", json.RawMessage(`"name"`))
	assert.Error(t, err)
}

func TestCommandTypeIsEffect(t *testing.T) {
	for _, c := range []CommandType{CmdFreeze, CmdSpin, CmdBlind, CmdBoost} {
		assert.True(t, c.IsEffect(), c)
	}
	for _, c := range []CommandType{CmdAnnounce, CmdKick, CmdTeleport, CmdPull, CmdUnknown} {
		assert.False(t, c.IsEffect(), c)
	}
	assert.Equal(t, CmdUnknown, ParseCommandType("explode"))
}
