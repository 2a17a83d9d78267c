package hub

import (
	"time"

	"github.com/google/uuid"
	"github.com/kabili207/mesh-inbox/internal/payload"
)

// DisplayMessage is the local record of a received text. It is handed to
// observers by value and never changed after construction.
type DisplayMessage struct {
	ID         uuid.UUID `json:"id"`
	Sender     string    `json:"sender"`
	Recipient  string    `json:"recipient"`
	Channel    uint32    `json:"channel"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

func NewDisplayMessage(p payload.TextPayload, receivedAt time.Time) DisplayMessage {
	return DisplayMessage{
		ID:         uuid.New(),
		Sender:     p.Sender,
		Recipient:  p.Recipient,
		Channel:    p.Channel,
		Body:       p.Body,
		ReceivedAt: receivedAt,
	}
}
