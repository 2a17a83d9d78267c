package payload

import (
	"testing"

	pb "github.com/meshnet-gophers/meshtastic-go/meshtastic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodedPacket(port pb.PortNum, body []byte) *pb.MeshPacket {
	return &pb.MeshPacket{
		From:    0x11223344,
		To:      0xffffffff,
		Id:      7,
		Channel: 2,
		PayloadVariant: &pb.MeshPacket_Decoded{
			Decoded: &pb.Data{Portnum: port, Payload: body},
		},
	}
}

func TestDecodeText(t *testing.T) {
	p, custom, err := Decode(decodedPacket(pb.PortNum_TEXT_MESSAGE_APP, []byte("hello")))
	require.NoError(t, err)
	assert.Nil(t, custom)

	text, ok := p.(TextPayload)
	require.True(t, ok)
	assert.Equal(t, "!11223344", text.Sender)
	assert.Equal(t, "!ffffffff", text.Recipient)
	assert.Equal(t, uint32(2), text.Channel)
	assert.Equal(t, "hello", text.Body)
	assert.Equal(t, KindText, p.Kind())
}

func TestDecodeGroupInvitation(t *testing.T) {
	p, custom, err := Decode(decodedPacket(pb.PortNum_PRIVATE_APP, EncodeGroupInvitation(42)))
	require.NoError(t, err)
	assert.Nil(t, custom)

	inv, ok := p.(GroupInvitationPayload)
	require.True(t, ok)
	assert.Equal(t, uint64(42), inv.GroupGID)
	assert.Equal(t, "!11223344", inv.Sender)
}

func TestDecodeMalformedInvitation(t *testing.T) {
	_, _, err := Decode(decodedPacket(pb.PortNum_PRIVATE_APP, []byte{0x47, 0x01}))
	assert.ErrorIs(t, err, ErrMalformedInvitation)
}

func TestDecodeCustom(t *testing.T) {
	p, custom, err := Decode(decodedPacket(pb.PortNum_PRIVATE_APP, []byte{0x01, 0x02}))
	require.NoError(t, err)
	assert.Nil(t, p)
	require.NotNil(t, custom)
	assert.Equal(t, []byte{0x01, 0x02}, custom.Data)
}

func TestDecodeOther(t *testing.T) {
	p, custom, err := Decode(decodedPacket(pb.PortNum_POSITION_APP, nil))
	require.NoError(t, err)
	assert.Nil(t, custom)
	assert.Equal(t, KindOther, p.Kind())
	assert.Equal(t, int32(pb.PortNum_POSITION_APP), p.(OtherPayload).Port)
}

func TestDecodeEncrypted(t *testing.T) {
	packet := &pb.MeshPacket{
		From:           1,
		PayloadVariant: &pb.MeshPacket_Encrypted{Encrypted: []byte{0xde, 0xad}},
	}
	_, _, err := Decode(packet)
	assert.ErrorIs(t, err, ErrUndecoded)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "text", KindText.String())
	assert.Equal(t, "group_invitation", KindGroupInvitation.String())
	assert.Equal(t, "other", KindOther.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}
