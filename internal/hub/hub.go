// Package hub turns classified link payloads into display messages and fans
// them out to registered observers.
//
// Delivery is asynchronous and happens on a single dispatcher goroutine,
// started by StartListening. The observer list is copied under the registry
// lock and the observers are then called without it, so a slow observer
// delays later messages but never blocks AddObserver, RemoveObserver or the
// link's callback. When the queue is full new text messages are dropped.
//
// Observer panics are not recovered unless a handler is installed with
// WithPanicHandler.
package hub

import (
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kabili207/mesh-inbox/internal/link"
	"github.com/kabili207/mesh-inbox/internal/notify"
	"github.com/kabili207/mesh-inbox/internal/payload"
	"github.com/rs/zerolog"
)

const DefaultQueueSize = 64

type State int32

const (
	Unregistered State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "unregistered"
}

// Registrar is the side of the link the hub subscribes to.
type Registrar interface {
	SetMessageListener(listener link.MessageListener)
}

type Observer interface {
	OnIncomingMessage(msg DisplayMessage)
}

type Option func(*Hub)

func WithQueueSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// WithClock replaces time.Now for receipt timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		h.now = now
	}
}

// PanicHandler is called with the value recovered from a panicking observer.
// Delivery of the message continues with the next observer.
type PanicHandler func(o Observer, msg DisplayMessage, recovered any)

func WithPanicHandler(fn PanicHandler) Option {
	return func(h *Hub) {
		h.onPanic = fn
	}
}

var _ link.MessageListener = (*Hub)(nil)

type Hub struct {
	registrar Registrar
	notifier  notify.Notifier
	logger    zerolog.Logger
	now       func() time.Time
	queueSize int
	onPanic   PanicHandler

	state atomic.Int32

	observersMu sync.Mutex
	observers   []Observer

	queue     chan DisplayMessage
	dropped   atomic.Uint64
	running   atomic.Bool
	stopOnce  sync.Once
	stopChan  chan struct{}
	waitGroup sync.WaitGroup
}

func NewHub(registrar Registrar, notifier notify.Notifier, logger zerolog.Logger, opts ...Option) *Hub {
	h := &Hub{
		registrar: registrar,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
		queueSize: DefaultQueueSize,
		stopChan:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.notifier == nil {
		h.notifier = notify.NewLog(logger)
	}
	h.queue = make(chan DisplayMessage, h.queueSize)
	return h
}

// Start launches the dispatcher. StartListening calls it, so it only needs
// to be called directly to deliver without registering on a link. A stopped
// hub cannot be started again.
func (h *Hub) Start() {
	if !h.running.CompareAndSwap(false, true) {
		return
	}
	h.waitGroup.Add(1)
	go h.dispatch()
}

// Stop delivers whatever is already queued and waits for the dispatcher
// to exit. Payloads arriving afterwards are dropped.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
	h.waitGroup.Wait()
}

// StartListening starts delivery and registers the hub as the link's message
// listener. Calling it again just re-registers the same listener.
func (h *Hub) StartListening() {
	h.Start()
	h.registrar.SetMessageListener(h)
	if h.state.Swap(int32(Listening)) != int32(Listening) {
		h.logger.Info().Msg("Hub listening for incoming messages")
	}
}

func (h *Hub) State() State {
	return State(h.state.Load())
}

// AddObserver appends observer to the notification order. An observer that
// is already registered moves to the end.
func (h *Hub) AddObserver(observer Observer) {
	if observer == nil {
		return
	}
	if !reflect.TypeOf(observer).Comparable() {
		h.logger.Warn().Type("observer", observer).Msg("Ignoring observer that cannot be compared by identity")
		return
	}

	h.observersMu.Lock()
	defer h.observersMu.Unlock()
	h.observers = slices.DeleteFunc(h.observers, func(o Observer) bool { return o == observer })
	h.observers = append(h.observers, observer)
}

func (h *Hub) RemoveObserver(observer Observer) {
	if observer == nil || !reflect.TypeOf(observer).Comparable() {
		return
	}

	h.observersMu.Lock()
	defer h.observersMu.Unlock()
	h.observers = slices.DeleteFunc(h.observers, func(o Observer) bool { return o == observer })
}

// Observers returns the registered observers in notification order.
func (h *Hub) Observers() []Observer {
	h.observersMu.Lock()
	defer h.observersMu.Unlock()
	return slices.Clone(h.observers)
}

// Dropped returns how many text messages were discarded because the delivery
// queue was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// OnIncomingMessage classifies p. Text messages are queued and the call
// returns before any observer has seen them. It never blocks on observers.
func (h *Hub) OnIncomingMessage(p payload.Payload) {
	switch msg := p.(type) {
	case payload.TextPayload:
		h.enqueue(NewDisplayMessage(msg, h.now()))
	case payload.GroupInvitationPayload:
		h.logger.Info().Uint64("group_gid", msg.GroupGID).Str("node_from", msg.Sender).Msg("Group invitation received")
		h.notifier.Notify(notify.GroupInvitationText(msg.GroupGID))
	case payload.OtherPayload:
	default:
		h.logger.Warn().Type("payload", p).Msg("Unhandled payload variant")
	}
}

// OnIncomingCustom receives application-defined payloads. This app does not
// define any, so they are ignored.
func (h *Hub) OnIncomingCustom(payload.CustomPayload) {}

func (h *Hub) enqueue(msg DisplayMessage) {
	select {
	case <-h.stopChan:
		h.logger.Debug().Stringer("message_id", msg.ID).Msg("Hub stopped, dropping message")
		return
	default:
	}

	select {
	case h.queue <- msg:
	default:
		h.dropped.Add(1)
		h.logger.Warn().
			Stringer("message_id", msg.ID).
			Str("node_from", msg.Sender).
			Int("queue_size", h.queueSize).
			Msg("Delivery queue full, dropping message")
	}
}

func (h *Hub) dispatch() {
	defer h.waitGroup.Done()

	for {
		select {
		case msg := <-h.queue:
			h.deliver(msg)
		case <-h.stopChan:
			for {
				select {
				case msg := <-h.queue:
					h.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (h *Hub) deliver(msg DisplayMessage) {
	for _, o := range h.Observers() {
		h.notifyObserver(o, msg)
	}
}

func (h *Hub) notifyObserver(o Observer, msg DisplayMessage) {
	if h.onPanic != nil {
		defer func() {
			if r := recover(); r != nil {
				h.onPanic(o, msg, r)
			}
		}()
	}
	o.OnIncomingMessage(msg)
}
