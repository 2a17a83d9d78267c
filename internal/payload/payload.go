package payload

import "fmt"

type Kind int

const (
	KindText Kind = iota
	KindGroupInvitation
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindGroupInvitation:
		return "group_invitation"
	case KindOther:
		return "other"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Payload is an inbound message delivered by the link. The set of
// implementations is closed: only this package can add a variant.
type Payload interface {
	Kind() Kind
	isPayload()
}

type TextPayload struct {
	Sender    string
	Recipient string
	Channel   uint32
	Body      string
}

type GroupInvitationPayload struct {
	Sender   string
	GroupGID uint64
}

// OtherPayload is any decoded packet we have no use for yet.
type OtherPayload struct {
	Sender string
	Port   int32
}

// CustomPayload carries application-defined bytes. It arrives on its own
// listener callback and is never mixed with the typed variants.
type CustomPayload struct {
	Sender string
	Data   []byte
}

func (TextPayload) Kind() Kind            { return KindText }
func (GroupInvitationPayload) Kind() Kind { return KindGroupInvitation }
func (OtherPayload) Kind() Kind           { return KindOther }

func (TextPayload) isPayload()            {}
func (GroupInvitationPayload) isPayload() {}
func (OtherPayload) isPayload()           {}

// NodeName formats a mesh node number the way the rest of the mesh tooling does.
func NodeName(id uint32) string {
	return fmt.Sprintf("!%08x", id)
}
