package msgs

import (
	"testing"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/dali.go/pkg/framework"
)

type notSerializable struct{}

func (m *notSerializable) NewMessage() fx.Message { return &notSerializable{} }

func TestEncodeDecode(t *testing.T) {
	testCases := []struct {
		msg     fx.Message
		command bool
	}{
		{NewForward(0xfe, 0x01), true},
		{&Rule{RulePB: RulePB{Slave: "s1", Address: 0xff, Data: 0x90, Answer: 0x04}}, true},
		{&Frame{FramePB: FramePB{Slave: "s1", Address: 0x01, Tick: 12345}}, false},
		{&Fault{FaultPB: FaultPB{Code: 0x01}}, false},
		{NewCommandErrFromMsg("dali: busy"), true},
	}
	for _, tc := range testCases {
		t.Run(TypeName(tc.msg), func(t *testing.T) {
			pkt, err := Encode(tc.msg)
			require.NoError(t, err)
			msg, typed, err := Decode(pkt)
			require.NoError(t, err)
			require.Equal(t, tc.msg, msg)
			require.Equal(t, tc.command, typed.IsCommand())
			require.Equal(t, !tc.command, typed.IsEvent())
		})
	}
}

func TestDecodeUnknownType(t *testing.T) {
	typed := &Typed{TypedPB: TypedPB{TypeId: GroupCustom | 0x42}}
	pkt, err := typed.Encode()
	require.NoError(t, err)
	_, decoded, err := Decode(pkt)
	require.Equal(t, &UnknownTypeError{TypeID: GroupCustom | 0x42}, err)
	require.ErrorIs(t, err, ErrUnknownType)
	require.True(t, decoded.IsCommand())
	require.False(t, decoded.IsReply())
	require.Equal(t, GroupCustom, decoded.Group())
}

func TestTypedKinds(t *testing.T) {
	for _, tc := range []struct {
		msg            SerializableMessage
		command, reply bool
	}{
		{&StatsQuery{}, true, false},
		{&Stats{}, true, true},
		{NewCommandOK(), true, true},
		{&Transaction{}, false, false},
	} {
		typed, err := TypedFrom(tc.msg)
		require.NoError(t, err)
		require.Equalf(t, tc.command, typed.IsCommand(), TypeName(tc.msg))
		require.Equalf(t, tc.reply, typed.IsReply(), TypeName(tc.msg))
	}
	require.Equal(t, GroupSlave, (&Typed{TypedPB: TypedPB{TypeId: FaultTypeID}}).Group())
}

type customMsg struct{ Frame }

func (m *customMsg) NewMessage() fx.Message { return &customMsg{} }
func (m *customMsg) TypeID() uint32         { return TypeIDKindEvent | GroupCustom | 0x01 }

func TestRegister(t *testing.T) {
	Register("custom-frame", (*customMsg)(nil))
	require.Equal(t, "custom-frame", TypeName(&customMsg{}))
	require.Panics(t, func() { Register("other", (*customMsg)(nil)) })

	msg := &customMsg{Frame{FramePB: FramePB{Slave: "s1", Data: 0x90}}}
	pkt, err := Encode(msg)
	require.NoError(t, err)
	decoded, _, err := Decode(pkt)
	require.NoError(t, err)
	require.Equal(t, msg, decoded)
}

func TestNotSerializable(t *testing.T) {
	_, err := TypedFrom(&notSerializable{})
	require.Equal(t, ErrNotSerializable, err)
}

func TestTypeName(t *testing.T) {
	require.Equal(t, "frame", TypeName(&Frame{}))
	require.Equal(t, "stats", TypeName(&Stats{}))
	require.Equal(t, "*msgs.notSerializable", TypeName(&notSerializable{}))
}

func TestFaultCode(t *testing.T) {
	f := &Fault{FaultPB: FaultPB{Code: 0x11}}
	require.True(t, f.FaultCode().IsFraming())
	require.Equal(t, "missing edge", f.FaultCode().String())
}
