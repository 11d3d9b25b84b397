// Package mqtt mirrors streamed telemetry frames to an MQTT broker.
package mqtt

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mqttLib "github.com/eclipse/paho.mqtt.golang"

	"codeberg.org/mutker/wvasim/internal/errors"
	"codeberg.org/mutker/wvasim/internal/logger"
	"codeberg.org/mutker/wvasim/internal/stream"
)

const (
	disconnectQuiesce = 250 // milliseconds
	defaultQueueSize  = 256
)

type Config struct {
	Broker         string
	Username       string
	Password       string
	ClientID       string // generated when empty
	Topic          string // frames go to <Topic>/<session>/<Field>
	QoS            byte
	KeepAlive      int // seconds
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	AutoReconnect  bool
	QueueSize      int // frames waiting for the publisher; overflow is dropped
}

func generateClientID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("wvasim-%d", time.Now().UnixNano())
	}
	return "wvasim-" + hex.EncodeToString(b)
}

func DefaultConfig() Config {
	return Config{
		Broker:         "tcp://localhost:1883",
		ClientID:       generateClientID(),
		Topic:          "wva/telemetry",
		KeepAlive:      60,
		ConnectTimeout: 10 * time.Second,
		PublishTimeout: 2 * time.Second,
		AutoReconnect:  true,
		QueueSize:      defaultQueueSize,
	}
}

// Mirror republishes every streamed frame to an MQTT broker. Frames are
// queued for a single publisher goroutine and dropped when the queue is
// full. Publish failures are logged and never end a session.
type Mirror struct {
	cfg    Config
	client mqttLib.Client
	log    logger.Logger

	queue    chan message
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	dropped  atomic.Uint64
}

type message struct {
	topic   string
	payload []byte
}

var _ stream.Observer = (*Mirror)(nil)

func newMirror(cfg Config, log logger.Logger) *Mirror {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	return &Mirror{
		cfg:   cfg,
		log:   log.With("mqtt"),
		queue: make(chan message, cfg.QueueSize),
		quit:  make(chan struct{}),
	}
}

// New builds a Mirror with a paho client for cfg. Call Start to connect.
func New(cfg Config, log logger.Logger) *Mirror {
	if cfg.ClientID == "" {
		cfg.ClientID = generateClientID()
	}
	m := newMirror(cfg, log)

	opts := mqttLib.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetKeepAlive(time.Duration(cfg.KeepAlive) * time.Second)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetAutoReconnect(cfg.AutoReconnect)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetOnConnectHandler(func(mqttLib.Client) {
		m.log.Info().Str("broker", cfg.Broker).Msg("Connected to MQTT broker")
	})
	opts.SetConnectionLostHandler(func(_ mqttLib.Client, err error) {
		m.log.Warn().Err(err).Msg("MQTT connection lost")
	})

	m.client = mqttLib.NewClient(opts)
	return m
}

// NewWithClient wraps an existing client.
func NewWithClient(cfg Config, client mqttLib.Client, log logger.Logger) *Mirror {
	m := newMirror(cfg, log)
	m.client = client
	return m
}

// Start connects to the broker, giving up after ConnectTimeout, and starts
// the publisher.
func (m *Mirror) Start() error {
	errFactory := errors.New()

	token := m.client.Connect()
	if !token.WaitTimeout(m.cfg.ConnectTimeout) {
		return errFactory.WithData(ErrConnect, fmt.Sprintf("timed out after %s connecting to %s", m.cfg.ConnectTimeout, m.cfg.Broker))
	}
	if err := token.Error(); err != nil {
		return errFactory.Wrap(ErrConnect, err)
	}

	m.wg.Add(1)
	go m.publishLoop()

	m.log.Debug().
		Str("broker", m.cfg.Broker).
		Str("client_id", m.cfg.ClientID).
		Str("topic", m.cfg.Topic).
		Msg("MQTT mirror started")
	return nil
}

// Stop ends the publisher and disconnects. Frames still queued are
// dropped. It is safe to call more than once.
func (m *Mirror) Stop() {
	m.stopOnce.Do(func() {
		close(m.quit)
		m.wg.Wait()

		if m.client.IsConnected() {
			m.client.Disconnect(disconnectQuiesce)
			m.log.Debug().Uint64("dropped", m.dropped.Load()).Msg("MQTT mirror disconnected")
		}
	})
}

// Dropped is the number of frames discarded because the queue was full.
func (m *Mirror) Dropped() uint64 {
	return m.dropped.Load()
}

func (m *Mirror) publishLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.quit:
			return
		case msg := <-m.queue:
			if err := m.publish(msg.topic, msg.payload); err != nil {
				m.log.Debug().Err(err).Str("topic", msg.topic).Msg("Failed to mirror frame")
			}
		}
	}
}

// Topic returns the topic a frame of session is published to.
func (m *Mirror) Topic(session string, frame stream.Frame) string {
	return fmt.Sprintf("%s/%s/%s", m.cfg.Topic, session, frame.Field)
}

func (m *Mirror) publish(topic string, payload []byte) error {
	errFactory := errors.New()

	if !m.client.IsConnected() {
		return errFactory.WithMessage(ErrPublish, "not connected")
	}

	token := m.client.Publish(topic, m.cfg.QoS, false, payload)
	if !token.WaitTimeout(m.cfg.PublishTimeout) {
		return errFactory.WithMessage(ErrPublish, "publish timed out")
	}
	if err := token.Error(); err != nil {
		return errFactory.Wrap(ErrPublish, err)
	}
	return nil
}

func (*Mirror) SessionStarted(stream.SessionInfo) {}

func (m *Mirror) FrameSent(info stream.SessionInfo, frame stream.Frame) {
	payload, err := frame.MarshalJSON()
	if err != nil {
		m.log.Warn().Err(err).Msg("Failed to encode frame for MQTT")
		return
	}

	msg := message{topic: m.Topic(info.ID, frame), payload: payload}
	select {
	case <-m.quit:
	case m.queue <- msg:
	default:
		m.dropped.Add(1)
		m.log.Debug().
			Err(errors.New().New(ErrQueueFull)).
			Str("topic", msg.topic).
			Msg("Dropped frame")
	}
}

func (*Mirror) CycleCompleted(stream.SessionInfo, int, stream.ConnectionState) {}

func (*Mirror) SessionEnded(stream.SessionInfo, stream.Summary) {}
