package mqtt

import (
	"context"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkarvo/gammalyze/internal/conf"
	"github.com/tkarvo/gammalyze/internal/errors"
)

type fakeToken struct {
	err      error
	timedOut bool
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timedOut }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// fakeBroker satisfies the paho client interface without any network.
type fakeBroker struct {
	connected    bool
	topic        string
	payload      string
	retained     bool
	publishToken *fakeToken
}

func (f *fakeBroker) IsConnected() bool      { return f.connected }
func (f *fakeBroker) IsConnectionOpen() bool { return f.connected }
func (f *fakeBroker) Connect() mqtt.Token    { return &fakeToken{} }
func (f *fakeBroker) Disconnect(uint)        { f.connected = false }

func (f *fakeBroker) Publish(topic string, _ byte, retained bool, payload any) mqtt.Token {
	f.topic = topic
	f.retained = retained
	f.payload, _ = payload.(string)
	if f.publishToken != nil {
		return f.publishToken
	}
	return &fakeToken{}
}

func (f *fakeBroker) Subscribe(string, byte, mqtt.MessageHandler) mqtt.Token {
	return &fakeToken{}
}

func (f *fakeBroker) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	return &fakeToken{}
}

func (f *fakeBroker) Unsubscribe(...string) mqtt.Token        { return &fakeToken{} }
func (f *fakeBroker) AddRoute(string, mqtt.MessageHandler)    {}
func (f *fakeBroker) OptionsReader() mqtt.ClientOptionsReader { return mqtt.ClientOptionsReader{} }

func testMQTTSettings() *conf.Settings {
	return &conf.Settings{
		Main: conf.MainSettings{Name: "gammalyze-test"},
		MQTT: conf.MQTTSettings{
			Enabled: true,
			Broker:  "tcp://localhost:1883",
			Topic:   "gammalyze/results",
			Retain:  true,
		},
	}
}

func TestNewClientAppliesSettings(t *testing.T) {
	t.Parallel()

	cl := NewClient(testMQTTSettings(), nil)
	c, ok := cl.(*client)
	require.True(t, ok)

	assert.Equal(t, "tcp://localhost:1883", c.config.Broker)
	assert.Equal(t, "gammalyze-test", c.config.ClientID)
	assert.Equal(t, "gammalyze/results", c.config.Topic)
	assert.True(t, c.config.Retain)
	assert.Equal(t, 30*time.Second, c.config.ConnectTimeout)
	assert.Equal(t, 10*time.Second, c.config.PublishTimeout)
}

func TestPublishUsesDefaultTopicAndRetain(t *testing.T) {
	t.Parallel()

	fake := &fakeBroker{connected: true}
	c := NewClient(testMQTTSettings(), nil).(*client)
	c.internalClient = fake

	err := c.Publish(context.Background(), "", `{"id":"abc"}`)
	require.NoError(t, err)
	assert.Equal(t, "gammalyze/results", fake.topic)
	assert.Equal(t, `{"id":"abc"}`, fake.payload)
	assert.True(t, fake.retained)

	err = c.Publish(context.Background(), "gammalyze/alerts", "x")
	require.NoError(t, err)
	assert.Equal(t, "gammalyze/alerts", fake.topic)
}

func TestPublishNotConnected(t *testing.T) {
	t.Parallel()

	c := NewClient(testMQTTSettings(), nil).(*client)
	err := c.Publish(context.Background(), "", "payload")
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTConnection))
}

func TestPublishTimeout(t *testing.T) {
	t.Parallel()

	fake := &fakeBroker{connected: true, publishToken: &fakeToken{timedOut: true}}
	c := NewClient(testMQTTSettings(), nil).(*client)
	c.internalClient = fake
	c.config.PublishTimeout = 10 * time.Millisecond

	err := c.Publish(context.Background(), "", "payload")
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTPublish))
}

func TestPublishBrokerError(t *testing.T) {
	t.Parallel()

	fake := &fakeBroker{connected: true, publishToken: &fakeToken{err: assert.AnError}}
	c := NewClient(testMQTTSettings(), nil).(*client)
	c.internalClient = fake

	err := c.Publish(context.Background(), "", "payload")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTPublish))
}

func TestConnectRejectsInvalidBrokerURL(t *testing.T) {
	t.Parallel()

	settings := testMQTTSettings()
	settings.MQTT.Broker = "://not-a-url"
	c := NewClient(settings, nil).(*client)

	err := c.Connect(context.Background())
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestConnectCooldown(t *testing.T) {
	t.Parallel()

	c := NewClient(testMQTTSettings(), nil).(*client)
	c.lastConnAttempt = time.Now()

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTConnection))
	assert.Contains(t, err.Error(), "too recent")
}

func TestDisconnectIsIdempotent(t *testing.T) {
	t.Parallel()

	c := NewClient(testMQTTSettings(), nil).(*client)
	c.Disconnect()
	c.Disconnect()
}
