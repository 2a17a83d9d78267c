package connectors

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	pb "github.com/meshnet-gophers/meshtastic-go/meshtastic"
	"github.com/rs/zerolog"
	"google.golang.org/protobuf/proto"
)

const (
	MulticastIP   = "224.0.0.69"
	MulticastPort = 4403

	maxReconnectDelay = 30 * time.Second
	readBufferSize    = 2048
)

var _ MeshConnector = (*udpMessageHandler)(nil)

type udpMessageHandler struct {
	group        *net.UDPAddr
	conn         *net.UDPConn
	handlerFunc  MeshPacketHandler
	stateFunc    StateEventHandler
	running      atomic.Bool
	listening    atomic.Bool
	stopChan     chan struct{}
	waitGroup    sync.WaitGroup
	reconnectMux sync.Mutex
	logger       zerolog.Logger
	isRestart    bool
}

// NewUDPMessageHandler listens for mesh packets on the Meshtastic LAN
// multicast group.
func NewUDPMessageHandler(logger zerolog.Logger) MeshConnector {
	return &udpMessageHandler{
		group: &net.UDPAddr{
			IP:   net.ParseIP(MulticastIP),
			Port: MulticastPort,
		},
		stopChan: make(chan struct{}),
		logger:   logger.With().Str("connector", "UDP").Logger(),
	}
}

func (h *udpMessageHandler) Name() string {
	return "UDP"
}

func (h *udpMessageHandler) Start() error {
	if h.running.Load() {
		return nil
	}
	h.running.Store(true)
	h.stopChan = make(chan struct{})

	h.waitGroup.Add(1)
	go h.listenWithReconnect()
	return nil
}

// Stop halts the listener. Closing the socket unblocks a pending read.
func (h *udpMessageHandler) Stop() {
	if !h.running.Load() {
		return
	}
	h.running.Store(false)
	h.listening.Store(false)
	close(h.stopChan)
	h.closeConn()
	h.waitGroup.Wait()
}

func (h *udpMessageHandler) IsConnected() bool {
	return h.listening.Load()
}

func (h *udpMessageHandler) SetPacketHandler(fn MeshPacketHandler) {
	h.handlerFunc = fn
}

func (h *udpMessageHandler) SetStateHandler(fn StateEventHandler) {
	h.stateFunc = fn
}

func (h *udpMessageHandler) listenWithReconnect() {
	defer h.waitGroup.Done()
	delay := 1 * time.Second

	for h.running.Load() {
		conn, err := h.setupSocket()
		if err != nil {
			h.logger.Warn().Err(err).Msg("UDP setup failed")
			h.listening.Store(false)
			h.emitStateEvent(EventConnectionLost)
			if !h.sleep(delay) {
				break
			}
			delay = min(delay*2, maxReconnectDelay)
			continue
		}

		if !h.running.Load() {
			h.closeConn()
			break
		}

		h.listening.Store(true)

		eventType := EventStarted
		if h.isRestart {
			eventType = EventRestarted
		}
		h.emitStateEvent(eventType)
		h.isRestart = true
		delay = 1 * time.Second

		h.logger.Info().Str("group", h.group.String()).Msg("Listening for UDP multicast")

		if h.listenLoop(conn) == nil {
			break
		}

		h.logger.Warn().Dur("retry_in", delay).Msg("UDP listener restarting")
		h.closeConn()
		h.listening.Store(false)
		h.emitStateEvent(EventConnectionLost)
		if !h.sleep(delay) {
			break
		}
		delay = min(delay*2, maxReconnectDelay)
	}

	h.listening.Store(false)
}

// sleep waits for d and reports false if the handler was stopped meanwhile.
func (h *udpMessageHandler) sleep(d time.Duration) bool {
	select {
	case <-h.stopChan:
		return false
	case <-time.After(d):
		return true
	}
}

// listenLoop returns nil on shutdown and the read error otherwise.
func (h *udpMessageHandler) listenLoop(conn *net.UDPConn) error {
	buf := make([]byte, readBufferSize)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-h.stopChan:
				return nil
			default:
			}
			h.logger.Error().Err(err).Msg("Read error")
			return err
		}

		packet := &pb.MeshPacket{}
		if err := proto.Unmarshal(buf[:n], packet); err != nil {
			h.logger.Warn().Err(err).Msg("Unmarshal error")
			continue
		}

		if h.handlerFunc != nil {
			h.handlerFunc(h, packet)
		}
	}
}

func (h *udpMessageHandler) setupSocket() (*net.UDPConn, error) {
	h.reconnectMux.Lock()
	defer h.reconnectMux.Unlock()

	conn, err := net.ListenMulticastUDP("udp", nil, h.group)
	if err != nil {
		return nil, err
	}
	if err := conn.SetReadBuffer(readBufferSize); err != nil {
		h.logger.Warn().Err(err).Msg("SetReadBuffer failed")
	}
	h.conn = conn
	return conn, nil
}

func (h *udpMessageHandler) closeConn() {
	h.reconnectMux.Lock()
	defer h.reconnectMux.Unlock()
	if h.conn != nil {
		_ = h.conn.Close()
		h.conn = nil
	}
}

func (h *udpMessageHandler) emitStateEvent(eventType ListenerEvent) {
	if eventType == EventStarted {
		h.logger.Info().Msg("UDP connector started")
	}
	if h.stateFunc != nil {
		h.stateFunc(h, eventType)
	}
}
