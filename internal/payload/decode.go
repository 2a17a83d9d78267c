package payload

import (
	"encoding/binary"
	"errors"

	pb "github.com/meshnet-gophers/meshtastic-go/meshtastic"
)

const (
	invitationTag      byte = 0x47 // 'G'
	invitationFrameLen      = 9
)

var (
	ErrUndecoded           = errors.New("packet payload is not decoded")
	ErrMalformedInvitation = errors.New("malformed group invitation frame")
)

// Decode classifies a decoded mesh packet. Exactly one of the returned
// Payload and CustomPayload is non-nil when err is nil.
func Decode(packet *pb.MeshPacket) (Payload, *CustomPayload, error) {
	data := packet.GetDecoded()
	if data == nil {
		return nil, nil, ErrUndecoded
	}

	sender := NodeName(packet.GetFrom())

	switch data.GetPortnum() {
	case pb.PortNum_TEXT_MESSAGE_APP:
		return TextPayload{
			Sender:    sender,
			Recipient: NodeName(packet.GetTo()),
			Channel:   packet.GetChannel(),
			Body:      string(data.GetPayload()),
		}, nil, nil
	case pb.PortNum_PRIVATE_APP:
		body := data.GetPayload()
		if len(body) > 0 && body[0] == invitationTag {
			if len(body) != invitationFrameLen {
				return nil, nil, ErrMalformedInvitation
			}
			return GroupInvitationPayload{
				Sender:   sender,
				GroupGID: binary.BigEndian.Uint64(body[1:]),
			}, nil, nil
		}
		return nil, &CustomPayload{Sender: sender, Data: body}, nil
	default:
		return OtherPayload{Sender: sender, Port: int32(data.GetPortnum())}, nil, nil
	}
}

// EncodeGroupInvitation builds the PRIVATE_APP body announcing a group.
func EncodeGroupInvitation(gid uint64) []byte {
	frame := make([]byte, invitationFrameLen)
	frame[0] = invitationTag
	binary.BigEndian.PutUint64(frame[1:], gid)
	return frame
}
