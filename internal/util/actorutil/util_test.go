package actorutil

import (
	"errors"
	"testing"
	"time"

	"sunnyisland2mqtt/internal/core/domain"
	"sunnyisland2mqtt/internal/mqtt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChargeEnableCommand(t *testing.T) {

	require := require.New(t)

	cmd, err := ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		DeviceId: domain.SWITCH_ID_CHARGE_ENABLE,
		Command:  "switch",
		Payload:  "on",
	})
	require.NoError(err)
	require.Equal(domain.ChargeControlEnableRequest{Enable: true}, cmd)

	cmd, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		DeviceId: domain.SWITCH_ID_CHARGE_ENABLE,
		Command:  "switch",
		Payload:  "off",
	})
	require.NoError(err)
	require.Equal(domain.ChargeControlEnableRequest{Enable: false}, cmd)

	_, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		DeviceId: domain.SWITCH_ID_CHARGE_ENABLE,
		Payload:  "maybe",
	})
	require.Error(err)
}

func TestParseCurrentLimitCommand(t *testing.T) {

	require := require.New(t)

	cmd, err := ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		DeviceId: domain.INPUT_NUMBER_ID_CURRENT_LIMIT,
		Command:  "number",
		Payload:  "45.5",
	})
	require.NoError(err)
	require.Equal(domain.ChargeControlSetCurrentLimitRequest{Amps: 45.5}, cmd)

	for _, payload := range []string{"-1", "abc", "NaN", "+Inf"} {
		_, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
			DeviceId: domain.INPUT_NUMBER_ID_CURRENT_LIMIT,
			Payload:  payload,
		})
		require.Error(err, payload)
	}
}

func TestParseUnknownCommand(t *testing.T) {

	cmd, err := ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{DeviceId: "lorem", Payload: "on"})
	assert.NoError(t, err)
	assert.Nil(t, cmd)
}

func TestBackgroundTaskRecover(t *testing.T) {

	require := require.New(t)

	var got string
	NewBackgroundTask(nil, func() (*string, error) {
		return nil, errors.New("read failed")
	}).Recover(func(err error) string {
		return "recovered: " + err.Error()
	}).OnSuccess(func(s string) {
		got = s
	}).Run()
	require.Equal("recovered: read failed", got)

	NewBackgroundTaskNoError(nil, func() *string {
		s := "ok"
		return &s
	}).OnSuccess(func(s string) {
		got = s
	}).Run()
	require.Equal("ok", got)
}

func TestBackgroundTaskTimeout(t *testing.T) {

	require := require.New(t)

	var taskErr error
	NewBackgroundTask(nil, func() (*int, error) {
		time.Sleep(500 * time.Millisecond)
		v := 1
		return &v, nil
	}).WithTimeout(50 * time.Millisecond).OnError(func(err error) {
		taskErr = err
	}).OnSuccess(func(int) {
		require.Fail("should time out")
	}).Run()
	require.Error(taskErr)
}
