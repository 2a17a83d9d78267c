package observers

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kabili207/mesh-inbox/internal/hub"
)

const DefaultInboxCapacity = 100

var _ hub.Observer = (*Inbox)(nil)

// Inbox keeps the most recent messages, oldest first, and optionally echoes
// each one to a writer.
type Inbox struct {
	mu       sync.RWMutex
	messages []hub.DisplayMessage
	capacity int
	echo     io.Writer
}

func NewInbox(capacity int, echo io.Writer) *Inbox {
	if capacity <= 0 {
		capacity = DefaultInboxCapacity
	}
	return &Inbox{capacity: capacity, echo: echo}
}

func (in *Inbox) OnIncomingMessage(msg hub.DisplayMessage) {
	in.mu.Lock()
	in.messages = append(in.messages, msg)
	if over := len(in.messages) - in.capacity; over > 0 {
		in.messages = append(in.messages[:0:0], in.messages[over:]...)
	}
	in.mu.Unlock()

	if in.echo != nil {
		_, _ = fmt.Fprintf(in.echo, "[%s] %s -> %s: %s\n",
			msg.ReceivedAt.Format(time.TimeOnly), msg.Sender, msg.Recipient, msg.Body)
	}
}

func (in *Inbox) Messages() []hub.DisplayMessage {
	in.mu.RLock()
	defer in.mu.RUnlock()
	out := make([]hub.DisplayMessage, len(in.messages))
	copy(out, in.messages)
	return out
}

func (in *Inbox) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.messages)
}
