package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	mqttLib "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appErrors "codeberg.org/mutker/wvasim/internal/errors"
	"codeberg.org/mutker/wvasim/internal/logger"
	"codeberg.org/mutker/wvasim/internal/stream"
)

type MockMQTTClient struct {
	mock.Mock
}

func (m *MockMQTTClient) Connect() mqttLib.Token {
	args := m.Called()
	return args.Get(0).(mqttLib.Token)
}

func (m *MockMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqttLib.Token {
	args := m.Called(topic, qos, retained, payload)
	return args.Get(0).(mqttLib.Token)
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, callback mqttLib.MessageHandler) mqttLib.Token {
	args := m.Called(topic, qos, callback)
	return args.Get(0).(mqttLib.Token)
}

func (m *MockMQTTClient) SubscribeMultiple(filters map[string]byte, callback mqttLib.MessageHandler) mqttLib.Token {
	args := m.Called(filters, callback)
	return args.Get(0).(mqttLib.Token)
}

func (m *MockMQTTClient) Unsubscribe(topics ...string) mqttLib.Token {
	args := m.Called(topics)
	return args.Get(0).(mqttLib.Token)
}

func (m *MockMQTTClient) AddRoute(topic string, callback mqttLib.MessageHandler) {
	m.Called(topic, callback)
}

func (m *MockMQTTClient) IsConnected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockMQTTClient) IsConnectionOpen() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockMQTTClient) Disconnect(quiesce uint) {
	m.Called(quiesce)
}

func (m *MockMQTTClient) OptionsReader() mqttLib.ClientOptionsReader {
	args := m.Called()
	return args.Get(0).(mqttLib.ClientOptionsReader)
}

type mockToken struct {
	mock.Mock
}

func (m *mockToken) Wait() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *mockToken) WaitTimeout(timeout time.Duration) bool {
	args := m.Called(timeout)
	return args.Bool(0)
}

func (m *mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (m *mockToken) Error() error {
	args := m.Called()
	return args.Error(0)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Topic = "wva/telemetry"
	cfg.QoS = 1
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotEmpty(t, cfg.Broker)
	assert.NotEmpty(t, cfg.Topic)
	assert.Regexp(t, `^wvasim-[0-9a-f]{8}$`, cfg.ClientID)
	assert.LessOrEqual(t, cfg.QoS, byte(2))
	assert.Positive(t, cfg.PublishTimeout)
}

func TestGenerateClientID(t *testing.T) {
	assert.NotEqual(t, generateClientID(), generateClientID())
}

func TestStart(t *testing.T) {
	client := new(MockMQTTClient)
	token := new(mockToken)
	cfg := testConfig()

	client.On("Connect").Return(token)
	token.On("WaitTimeout", cfg.ConnectTimeout).Return(true)
	token.On("Error").Return(nil)

	m := NewWithClient(cfg, client, logger.Default())
	require.NoError(t, m.Start())

	client.AssertExpectations(t)
	token.AssertExpectations(t)
}

func TestStartFailures(t *testing.T) {
	cfg := testConfig()

	t.Run("timeout", func(t *testing.T) {
		client := new(MockMQTTClient)
		token := new(mockToken)
		client.On("Connect").Return(token)
		token.On("WaitTimeout", cfg.ConnectTimeout).Return(false)

		err := NewWithClient(cfg, client, logger.Default()).Start()
		require.Error(t, err)
		assert.Equal(t, ErrConnect, appErrors.CodeOf(err))
	})

	t.Run("refused", func(t *testing.T) {
		client := new(MockMQTTClient)
		token := new(mockToken)
		client.On("Connect").Return(token)
		token.On("WaitTimeout", cfg.ConnectTimeout).Return(true)
		token.On("Error").Return(errors.New("connection refused"))

		err := NewWithClient(cfg, client, logger.Default()).Start()
		assert.ErrorContains(t, err, "connection refused")
	})
}

// startMirror connects m through a mocked client whose connect succeeds.
func startMirror(t *testing.T, cfg Config, client *MockMQTTClient) *Mirror {
	t.Helper()
	connectToken := new(mockToken)
	client.On("Connect").Return(connectToken)
	connectToken.On("WaitTimeout", cfg.ConnectTimeout).Return(true)
	connectToken.On("Error").Return(nil)

	m := NewWithClient(cfg, client, logger.Default())
	require.NoError(t, m.Start())
	return m
}

func TestFrameSentPublishes(t *testing.T) {
	client := new(MockMQTTClient)
	token := new(mockToken)
	cfg := testConfig()

	frame := stream.Frame{
		Field:     stream.FieldEngineRPM,
		URI:       "vehicle/EngineRPM",
		Timestamp: "2024-01-02T03:04:05Z",
		Value:     "3",
	}
	payload, err := frame.MarshalJSON()
	require.NoError(t, err)

	published := make(chan struct{}, 1)
	client.On("IsConnected").Return(true)
	client.On("Disconnect", uint(disconnectQuiesce)).Return()
	client.On("Publish", "wva/telemetry/abc/EngineRPM", byte(1), false, payload).
		Run(func(mock.Arguments) { published <- struct{}{} }).
		Return(token)
	token.On("WaitTimeout", cfg.PublishTimeout).Return(true)
	token.On("Error").Return(nil)

	m := startMirror(t, cfg, client)
	m.FrameSent(stream.SessionInfo{ID: "abc"}, frame)

	select {
	case <-published:
	case <-time.After(5 * time.Second):
		t.Fatal("frame was not published")
	}
	m.Stop()

	client.AssertExpectations(t)
	assert.Zero(t, m.Dropped())
}

func TestFrameSentSkipsWhenDisconnected(t *testing.T) {
	client := new(MockMQTTClient)
	cfg := testConfig()
	client.On("IsConnected").Return(false)

	m := startMirror(t, cfg, client)
	assert.NotPanics(t, func() {
		m.FrameSent(stream.SessionInfo{ID: "abc"}, stream.Frame{Field: stream.FieldVehicleSpeed})
	})
	assert.Eventually(t, func() bool { return len(m.queue) == 0 }, 5*time.Second, time.Millisecond)
	m.Stop()

	client.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "Disconnect", mock.Anything)
}

// mirrorSink hands every written frame to the mirror the way a session's
// observer fan-out does.
type mirrorSink struct {
	m *Mirror
}

func (s mirrorSink) WriteFrame(f stream.Frame) error {
	s.m.FrameSent(stream.SessionInfo{ID: "slow"}, f)
	return nil
}

func TestSlowBrokerDoesNotStretchCycle(t *testing.T) {
	client := new(MockMQTTClient)
	token := new(mockToken)
	cfg := testConfig()
	cfg.PublishTimeout = 300 * time.Millisecond
	cfg.QueueSize = 2

	client.On("IsConnected").Return(true)
	client.On("Disconnect", uint(disconnectQuiesce)).Return()
	client.On("Publish", mock.Anything, byte(1), false, mock.Anything).Return(token)
	token.On("WaitTimeout", cfg.PublishTimeout).
		Run(func(args mock.Arguments) { time.Sleep(args.Get(0).(time.Duration)) }).
		Return(false)

	m := startMirror(t, cfg, client)
	defer m.Stop()

	timing := stream.Timing{SampleDelay: 10 * time.Millisecond, CycleDelay: 10 * time.Millisecond}
	machine := stream.NewMachine(timing, nil, nil, nil)

	start := time.Now()
	require.NoError(t, machine.RunCycle(context.Background(), mirrorSink{m}))
	require.NoError(t, machine.RunCycle(context.Background(), mirrorSink{m}))
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 250*time.Millisecond, "publishing must not pace the session")
	assert.Positive(t, m.Dropped(), "frames beyond the queue are dropped")
}

func TestFrameSentAfterStop(t *testing.T) {
	client := new(MockMQTTClient)
	client.On("IsConnected").Return(false)

	m := startMirror(t, testConfig(), client)
	m.Stop()
	m.Stop()

	assert.NotPanics(t, func() {
		m.FrameSent(stream.SessionInfo{ID: "abc"}, stream.Frame{Field: stream.FieldElapsedTime})
	})
	client.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishTimeout(t *testing.T) {
	client := new(MockMQTTClient)
	token := new(mockToken)
	cfg := testConfig()

	client.On("IsConnected").Return(true)
	client.On("Publish", mock.Anything, mock.Anything, false, mock.Anything).Return(token)
	token.On("WaitTimeout", cfg.PublishTimeout).Return(false)

	m := NewWithClient(cfg, client, logger.Default())
	err := m.publish("t", []byte("x"))
	assert.Error(t, err)
	token.AssertNotCalled(t, "Error")
}

func TestStop(t *testing.T) {
	client := new(MockMQTTClient)
	client.On("IsConnected").Return(true)
	client.On("Disconnect", uint(disconnectQuiesce)).Return()

	NewWithClient(testConfig(), client, logger.Default()).Stop()
	client.AssertExpectations(t)
}

func TestNewGeneratesClientID(t *testing.T) {
	cfg := testConfig()
	cfg.ClientID = ""

	m := New(cfg, logger.Default())
	assert.NotEmpty(t, m.cfg.ClientID)
	assert.NotNil(t, m.client)
}
