package connectors

import (
	pb "github.com/meshnet-gophers/meshtastic-go/meshtastic"
)

type MeshPacketHandler func(MeshConnector, *pb.MeshPacket)
type StateEventHandler func(MeshConnector, ListenerEvent)

type ListenerEvent int

const (
	EventStarted ListenerEvent = iota
	EventRestarted
	EventConnectionLost
)

func (e ListenerEvent) String() string {
	switch e {
	case EventStarted:
		return "started"
	case EventRestarted:
		return "restarted"
	case EventConnectionLost:
		return "connection_lost"
	}
	return "unknown"
}

// MeshConnector is a source of inbound mesh packets. Connectors only
// receive; the inbox never transmits on the mesh.
type MeshConnector interface {
	Start() error
	Stop()
	Name() string
	IsConnected() bool
	SetPacketHandler(fn MeshPacketHandler)
	SetStateHandler(fn StateEventHandler)
}
