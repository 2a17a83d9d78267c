package observers

import (
	"encoding/json"

	"github.com/kabili207/mesh-inbox/internal/hub"
	"github.com/rs/zerolog"
)

const DefaultNATSSubject = "mesh.inbox.text.incoming"

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ hub.Observer = (*NATSBridge)(nil)

// NATSBridge republishes every received text as JSON.
type NATSBridge struct {
	publisher Publisher
	subject   string
	logger    zerolog.Logger
}

func NewNATSBridge(publisher Publisher, subject string, logger zerolog.Logger) *NATSBridge {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATSBridge{
		publisher: publisher,
		subject:   subject,
		logger:    logger,
	}
}

func (b *NATSBridge) OnIncomingMessage(msg hub.DisplayMessage) {
	j, err := json.Marshal(msg)
	if err != nil {
		b.logger.Err(err).Stringer("message_id", msg.ID).Msg("Error encoding message")
		return
	}

	if err := b.publisher.Publish(b.subject, j); err != nil {
		b.logger.Err(err).
			Str("subject", b.subject).
			Stringer("message_id", msg.ID).
			Msg("Error publishing message")
	}
}
