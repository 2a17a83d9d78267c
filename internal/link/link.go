// Package link is the command center sitting between mesh packet sources and
// the application. It owns the application token, drops duplicate packets,
// classifies what is left and hands it to the single registered listener.
package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jellydator/ttlcache/v3"
	"github.com/kabili207/mesh-inbox/internal/connectors"
	"github.com/kabili207/mesh-inbox/internal/payload"
	pb "github.com/meshnet-gophers/meshtastic-go/meshtastic"
	"github.com/rs/zerolog"
)

const (
	DefaultDedupTTL = 2 * time.Hour

	tokenRules = "required,min=16,base64"
)

var (
	ErrInvalidCredential = errors.New("invalid application token")
	ErrNotInitialized    = errors.New("application token has not been set")
)

// MessageListener receives everything the link manages to classify.
// Callbacks run on the connector goroutine that received the packet.
type MessageListener interface {
	OnIncomingMessage(p payload.Payload)
	OnIncomingCustom(p payload.CustomPayload)
}

type Options struct {
	DedupTTL      time.Duration
	RevokedTokens []string
}

type Link struct {
	connectors []connectors.MeshConnector
	logger     zerolog.Logger
	validate   *validator.Validate
	revoked    map[string]struct{}

	mu       sync.RWMutex
	token    string
	listener MessageListener

	packetCache     *ttlcache.Cache[uint64, struct{}]
	packetCacheLock sync.Mutex
	cacheRunning    atomic.Bool
}

func New(meshConnectors []connectors.MeshConnector, opts Options, logger zerolog.Logger) *Link {
	ttl := opts.DedupTTL
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}

	revoked := make(map[string]struct{}, len(opts.RevokedTokens))
	for _, t := range opts.RevokedTokens {
		revoked[t] = struct{}{}
	}

	return &Link{
		connectors: meshConnectors,
		logger:     logger,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		revoked:    revoked,
		packetCache: ttlcache.New(
			ttlcache.WithTTL[uint64, struct{}](ttl),
		),
	}
}

// SetApplicationToken initializes the link. Rejected tokens wrap
// ErrInvalidCredential.
func (l *Link) SetApplicationToken(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.validate.Var(token, tokenRules); err != nil {
		return fmt.Errorf("%w: malformed: %v", ErrInvalidCredential, err)
	}
	if _, ok := l.revoked[token]; ok {
		return fmt.Errorf("%w: revoked", ErrInvalidCredential)
	}

	l.mu.Lock()
	l.token = token
	l.mu.Unlock()

	l.logger.Debug().Msg("Application token accepted")
	return nil
}

func (l *Link) Initialized() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.token != ""
}

// SetMessageListener installs the exclusive receiver for inbound payloads,
// replacing any previous one.
func (l *Link) SetMessageListener(listener MessageListener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listener = listener
}

func (l *Link) Start() error {
	if !l.Initialized() {
		return ErrNotInitialized
	}

	if l.cacheRunning.CompareAndSwap(false, true) {
		go l.packetCache.Start()
	}

	for _, c := range l.connectors {
		c.SetPacketHandler(l.HandlePacket)
		c.SetStateHandler(l.handleConnectorStateChange)
	}

	for _, c := range l.connectors {
		if err := c.Start(); err != nil {
			return fmt.Errorf("starting %s connector: %w", c.Name(), err)
		}
	}
	return nil
}

func (l *Link) Stop() {
	for _, c := range l.connectors {
		c.Stop()
	}
	if l.cacheRunning.CompareAndSwap(true, false) {
		l.packetCache.Stop()
	}
}

func packetKey(packet *pb.MeshPacket) uint64 {
	return (uint64(packet.GetFrom()) << 32) | uint64(packet.GetId())
}

// seen reports whether the packet was already handled and records it if not.
// Packets without an id can't be told apart and count as seen.
func (l *Link) seen(packet *pb.MeshPacket) bool {
	if packet.GetId() == 0 {
		return true
	}

	l.packetCacheLock.Lock()
	defer l.packetCacheLock.Unlock()

	key := packetKey(packet)
	if l.packetCache.Has(key) {
		return true
	}
	l.packetCache.Set(key, struct{}{}, ttlcache.DefaultTTL)
	return false
}

// HandlePacket is the packet handler installed on every connector.
func (l *Link) HandlePacket(conn connectors.MeshConnector, packet *pb.MeshPacket) {
	if l.seen(packet) {
		return
	}

	source := "direct"
	if conn != nil {
		source = conn.Name()
	}

	log := l.logger.With().
		Uint32("packet_id", packet.GetId()).
		Str("node_from", payload.NodeName(packet.GetFrom())).
		Str("node_to", payload.NodeName(packet.GetTo())).
		Str("received_via", source).
		Logger()

	p, custom, err := payload.Decode(packet)
	if err != nil {
		log.Debug().Err(err).Msg("Dropping packet")
		return
	}

	l.mu.RLock()
	listener := l.listener
	l.mu.RUnlock()

	if listener == nil {
		log.Debug().Msg("No listener registered")
		return
	}

	if custom != nil {
		log.Debug().Int("size", len(custom.Data)).Msg("Delivering custom payload")
		listener.OnIncomingCustom(*custom)
		return
	}

	log.Debug().Stringer("kind", p.Kind()).Msg("Delivering payload")
	listener.OnIncomingMessage(p)
}

func (l *Link) handleConnectorStateChange(mc connectors.MeshConnector, le connectors.ListenerEvent) {
	l.logger.Debug().Str("connector", mc.Name()).Stringer("event", le).Msg("Connector state changed")

	connectedCount := 0
	for _, c := range l.connectors {
		if c.IsConnected() {
			connectedCount++
		}
	}

	if connectedCount == len(l.connectors) {
		l.logger.Info().Msg("Link fully connected")
	}
}
