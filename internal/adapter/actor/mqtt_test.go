package actor

import (
	"fmt"
	"testing"
	"time"

	"sunnyisland2mqtt/internal/core/domain"
	"sunnyisland2mqtt/internal/core/events"
	"sunnyisland2mqtt/internal/util"
	"sunnyisland2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMQTTActor(t *testing.T) {

	require := require.New(t)

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	es := eventstream.EventStream{}

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, &es, logger) })
	pid := context.Spawn(props)

	time.Sleep(200 * time.Millisecond)

	result, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(err)
	resp, ok := result.(domain.ActorHealthResponse)
	require.True(ok)
	require.True(resp.Healthy)

	for _, ev := range events.ChargeStatusToUpdateEvents(domain.ChargeStatus{
		State:         domain.ChargeStateBulk,
		ChargeCurrent: 160,
		BulkCurrent:   160,
	}) {
		es.Publish(ev)
	}
	es.Publish(events.CanBusUpdateEvent(true))
	// not a sensor event, ignored
	es.Publish("lorem ipsum")

	time.Sleep(500 * time.Millisecond)

	result, err = context.RequestFuture(pid, TestMQTTStatsRequest{}, 2*time.Second).Result()
	require.NoError(err)
	stats := result.(TestMQTTStatsResponse)
	fmt.Printf("Rendered topics: %v\n", stats.Topics)
	require.Equal(uint(6), stats.Published)
	require.Contains(stats.Topics, "sunnyisland/sensor/charge_state/state")
	require.Contains(stats.Topics, "sunnyisland/binary_sensor/can_bus/state")

	context.Stop(pid)

	time.Sleep(200 * time.Millisecond)

	as.Shutdown()
}

func TestEvent2MQTTMessage(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	logger := zap.NewNop()
	act := NewTestMQTTActor(&cfg, nil, logger)

	as := actor.NewActorSystem()
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return act }))
	_, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	assert.NoError(err)

	msg := act.event2MQTTMessage(domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_BATTERY_VOLTAGE},
		Value:                  53.456,
		Decimals:               2,
	})
	assert.Equal("sunnyisland/sensor/battery_voltage/state", msg.topic)
	assert.Equal("53.46", msg.message)
	assert.False(msg.retain)

	msg = act.event2MQTTMessage(domain.IntSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_CHARGE_STATE_CODE},
		Value:                  4,
	})
	assert.Equal("4", msg.message)

	msg = act.event2MQTTMessage(events.ChargeEnableSwitchUpdateEvent(true))
	assert.Equal("sunnyisland/switch/charge_enable/state", msg.topic)
	assert.Equal("on", msg.message)
	assert.True(msg.retain)

	msg = act.event2MQTTMessage(events.CurrentLimitUpdateEvent(45))
	assert.Equal("sunnyisland/number/charge_current_limit/state", msg.topic)
	assert.Equal("45", msg.message)

	msg = act.event2MQTTMessage(domain.BridgeStateUpdateEvent{Value: false})
	assert.Equal("sunnyisland/bridge/state", msg.topic)
	assert.Equal("offline", msg.message)

	assert.Nil(act.event2MQTTMessage(42))

	as.Root.Stop(pid)
	as.Shutdown()
}
