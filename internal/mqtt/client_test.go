package mqtt

import (
	"testing"

	"sunnyisland2mqtt/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestSwitchCommandParse(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/switch/my_device/command"
	r := switchCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(matches[0][1], "my_device", "device extract")
}

func TestSwitchCommandParseFail(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/switch/my_device/state"
	r := switchCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(len(matches), 0, "no matches")
}

func TestInputNumberCommandParse(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/number/number_name/set"
	r := inputNumberCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(matches[0][1], "number_name", "number_id extract")
}

func TestInputNumberCommandParseFail(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/switch/number_name/command"
	r := inputNumberCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(len(matches), 0, "no matches")
}

func TestCommandExtractorIsAnchored(t *testing.T) {

	assert := assert.New(t)

	r := switchCommandExtractor("sunnyisland")
	assert.Empty(r.FindAllStringSubmatch("other/sunnyisland/switch/charge_enable/command", 1))
	assert.Empty(r.FindAllStringSubmatch("sunnyisland/switch/charge_enable/command/extra", 1))
	assert.Len(r.FindAllStringSubmatch("sunnyisland/switch/charge_enable/command", 1), 1)
}

func TestParseMQTTCommand(t *testing.T) {

	assert := assert.New(t)

	cfg := config.Config{MQTT: config.MQTTConfig{BaseTopic: "sunnyisland"}}
	client := CreateMQTTClient(&cfg, OptsFromConfig(&cfg), nil, nil)

	cmd, err := client.ParseMQTTCommand(fakeMessage{topic: "sunnyisland/switch/charge_enable/command", payload: "off"})
	assert.NoError(err)
	assert.Equal("charge_enable", cmd.DeviceId)
	assert.Equal("switch", cmd.Command)
	assert.Equal("off", cmd.Payload)

	cmd, err = client.ParseMQTTCommand(fakeMessage{topic: "sunnyisland/number/charge_current_limit/set", payload: "42"})
	assert.NoError(err)
	assert.Equal("charge_current_limit", cmd.DeviceId)
	assert.Equal("number", cmd.Command)

	_, err = client.ParseMQTTCommand(fakeMessage{topic: "sunnyisland/number/charge_current_limit/set", payload: "lots"})
	assert.Error(err)

	_, err = client.ParseMQTTCommand(fakeMessage{topic: "sunnyisland/sensor/charge_current/state", payload: "42"})
	assert.Error(err)
}

func TestTopics(t *testing.T) {

	assert := assert.New(t)

	cfg := config.Config{MQTT: config.MQTTConfig{BaseTopic: "si"}}
	client := CreateMQTTClient(&cfg, OptsFromConfig(&cfg), nil, nil)

	assert.Equal("si/bridge/state", client.BridgeStateTopic())
	assert.Equal("si/sensor/charge_state/state", client.SensorStateTopic("charge_state"))
	assert.Equal("si/binary_sensor/can_bus/state", client.BinarySensorStateTopic("can_bus"))
	assert.Equal("si/switch/charge_enable/command", client.SwitchCommandTopic("charge_enable"))
	assert.Equal("si/number/charge_current_limit/set", client.InputNumberCommandTopic("charge_current_limit"))
	assert.Equal("homeassistant", client.DiscoveryTopic())
	assert.Len(client.commandTopics(), 2)
}

type fakeMessage struct {
	topic   string
	payload string
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return []byte(m.payload) }
func (m fakeMessage) Ack()              {}
