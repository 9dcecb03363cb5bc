package actor

import (
	"testing"
	"time"

	adactor "sunnyisland2mqtt/internal/adapter/actor"
	"sunnyisland2mqtt/internal/core/domain"
	"sunnyisland2mqtt/internal/util"
	"sunnyisland2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDiscoveryEntities(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	sensors, switches, inputNumbers := DiscoveryEntities(&cfg)

	// bridge state, 5 charge sensors, 4 battery sensors
	assert.Len(sensors, 10)
	assert.Len(switches, 1)
	assert.Len(inputNumbers, 1)
	assert.Equal(cfg.Charge.BulkCurrent, inputNumbers[0].Max)

	cfg.CAN.Enable = true
	sensors, _, _ = DiscoveryEntities(&cfg)
	assert.Len(sensors, 11)

	// only the first entity of a device carries the full description
	full := map[string]int{}
	for _, s := range sensors {
		if s.Device.Manufacturer != "" {
			full[s.Device.Id]++
		}
	}
	for id, n := range full {
		assert.Equal(1, n, "device %s described more than once", id)
	}
}

func TestHADiscoveryActor(t *testing.T) {

	require := require.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	cfg := util.LoadTestConfig()
	mqttPID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewTestMQTTActor(&cfg, nil, logger)
	}))
	pid := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&cfg, mqttPID, logger)
	}))

	require.Eventually(func() bool {
		hc, err := healthCheck(context, pid)
		return err == nil && hc.State == "done"
	}, 2*time.Second, 20*time.Millisecond)

	require.Eventually(func() bool {
		res, err := context.RequestFuture(mqttPID, adactor.TestMQTTStatsRequest{}, time.Second).Result()
		return err == nil && res.(adactor.TestMQTTStatsResponse).Published == 12
	}, 2*time.Second, 20*time.Millisecond)

	hc, err := healthCheck(context, pid)
	require.NoError(err)
	require.Equal(domain.ACTOR_ID_HA_DISCOVERY, hc.Id)

	context.Stop(pid)
	as.Shutdown()
}
