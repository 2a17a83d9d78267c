package connectors

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	pb "github.com/meshnet-gophers/meshtastic-go/meshtastic"
	"github.com/rs/zerolog"
	slogzerolog "github.com/samber/slog-zerolog"
	"google.golang.org/protobuf/proto"
)

var _ MeshConnector = (*MqttConnector)(nil)

type MqttOptions struct {
	Broker    string
	Username  string
	Password  string
	RootTopic string
}

type MqttConnector struct {
	opts     MqttOptions
	clientID string
	client   mqtt.Client
	log      *slog.Logger
	sync.RWMutex
	packetHandler       MeshPacketHandler
	stateFunc           StateEventHandler
	previouslyConnected bool
}

func NewMqttConnector(opts MqttOptions, logger zerolog.Logger) *MqttConnector {
	slogger := slog.New(slogzerolog.Option{Level: slog.LevelInfo, Logger: &logger}.NewZerologHandler())

	return &MqttConnector{
		opts: opts,
		log:  slogger.With("connector", "MQTT"),
	}
}

func randomString(n int, letters []rune) string {
	b := make([]rune, n)
	for i := range b {
		b[i] = letters[rand.IntN(len(letters))]
	}
	return string(b)
}

func (c *MqttConnector) Name() string {
	return "MQTT"
}

func (c *MqttConnector) subscriptionTopic() string {
	return c.opts.RootTopic + "/+"
}

func (c *MqttConnector) Start() error {
	var alphabet = []rune("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789")
	c.clientID = fmt.Sprintf("%s-inbox-%s", c.opts.Username, randomString(6, alphabet))

	handler := c.log.Handler()

	mqtt.DEBUG = slog.NewLogLogger(handler, slog.LevelDebug)
	mqtt.WARN = slog.NewLogLogger(handler, slog.LevelWarn)
	mqtt.ERROR = slog.NewLogLogger(handler, slog.LevelError)
	mqtt.CRITICAL = slog.NewLogLogger(handler, slog.LevelError+4)

	opts := mqtt.NewClientOptions().
		AddBroker(c.opts.Broker).
		SetUsername(c.opts.Username).
		SetPassword(c.opts.Password).
		SetClientID(c.clientID).
		SetOrderMatters(true).
		SetCleanSession(false)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetResumeSubs(true)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)
	opts.SetOnConnectHandler(c.onConnected)
	opts.SetTLSConfig(&tls.Config{
		InsecureSkipVerify: true,
	})
	c.client = mqtt.NewClient(opts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	if token := c.client.Subscribe(c.subscriptionTopic(), 0, c.handleBrokerMessage); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribing to %s: %w", c.subscriptionTopic(), token.Error())
	}
	return nil
}

func (c *MqttConnector) Stop() {
	if c.client != nil {
		c.client.Disconnect(1000)
	}
}

func (c *MqttConnector) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

func (c *MqttConnector) SetPacketHandler(h MeshPacketHandler) {
	c.Lock()
	defer c.Unlock()
	c.packetHandler = h
}

func (c *MqttConnector) SetStateHandler(fn StateEventHandler) {
	c.Lock()
	defer c.Unlock()
	c.stateFunc = fn
}

// handleBrokerMessage runs on paho's router goroutine. Ordered delivery is
// enabled, so packets reach the handler in broker order.
func (c *MqttConnector) handleBrokerMessage(_ mqtt.Client, message mqtt.Message) {
	var packet pb.MeshPacket
	if err := proto.Unmarshal(message.Payload(), &packet); err != nil {
		c.log.Warn("Error unmarshalling packet", "topic", message.Topic(), "error", err)
		return
	}

	c.RLock()
	handler := c.packetHandler
	c.RUnlock()

	if handler != nil {
		handler(c, &packet)
	}
}

func (c *MqttConnector) emitState(event ListenerEvent) {
	c.RLock()
	fn := c.stateFunc
	c.RUnlock()
	if fn != nil {
		fn(c, event)
	}
}

func (c *MqttConnector) onConnected(_ mqtt.Client) {
	if c.previouslyConnected {
		c.emitState(EventRestarted)
		return
	}
	c.log.Info("MQTT connector started", "client_id", c.clientID, "topic", c.subscriptionTopic())
	c.previouslyConnected = true
	c.emitState(EventStarted)
}

func (c *MqttConnector) onConnectionLost(_ mqtt.Client, err error) {
	c.log.Warn("MQTT connection lost", "error", err)
	c.emitState(EventConnectionLost)
}

func (c *MqttConnector) onReconnecting(_ mqtt.Client, _ *mqtt.ClientOptions) {
	c.log.Info("mqtt reconnecting")
}
