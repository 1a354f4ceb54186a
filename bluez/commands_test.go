package bluez

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usenocturne/btmanager/bluetooth"
	"github.com/usenocturne/btmanager/ws"
)

func TestRegisterCommands(t *testing.T) {
	m, _ := newTestManager()
	router := ws.NewRouter()
	RegisterCommands(router, m)

	assert.ElementsMatch(t, []string{
		bluetooth.CMD_LIST_ADAPTERS,
		bluetooth.CMD_SET_ADAPTER_POWERED,
		bluetooth.CMD_GET_ADAPTER_STATE,
		bluetooth.CMD_START_SCAN,
		bluetooth.CMD_STOP_SCAN,
		bluetooth.CMD_LIST_DEVICES,
		bluetooth.CMD_GET_DEVICE_INFO,
		bluetooth.CMD_LIST_PAIRED_DEVICES,
		bluetooth.CMD_CONNECT_DEVICE,
		bluetooth.CMD_DISCONNECT_DEVICE,
		bluetooth.CMD_PLUGIN_STATUS,
		bluetooth.CMD_PING,
		bluetooth.CMD_CONNECT_NETWORK,
	}, router.Commands())
}

func TestCommandsBeforeInit(t *testing.T) {
	m, _ := newTestManager()
	router := ws.NewRouter()
	RegisterCommands(router, m)
	ctx := context.Background()

	status, err := router.Dispatch(ctx, bluetooth.CMD_PLUGIN_STATUS, nil)
	require.NoError(t, err)
	assert.Equal(t, false, status)

	_, err = router.Dispatch(ctx, bluetooth.CMD_LIST_ADAPTERS, nil)
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = router.Dispatch(ctx, bluetooth.CMD_SET_ADAPTER_POWERED, json.RawMessage(`{"adapterPath":"/org/bluez/hci0","powered":true}`))
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = router.Dispatch(ctx, bluetooth.CMD_GET_DEVICE_INFO, json.RawMessage(`{"devicePath":"/org/bluez/hci0/dev_AA"}`))
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = router.Dispatch(ctx, bluetooth.CMD_CONNECT_NETWORK, json.RawMessage(`{"devicePath":"/org/bluez/hci0/dev_AA"}`))
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestCommandsRejectBadArguments(t *testing.T) {
	m, _ := newTestManager()
	router := ws.NewRouter()
	RegisterCommands(router, m)
	ctx := context.Background()

	_, err := router.Dispatch(ctx, bluetooth.CMD_START_SCAN, nil)
	assert.Error(t, err)

	_, err = router.Dispatch(ctx, bluetooth.CMD_CONNECT_DEVICE, json.RawMessage(`{"devicePath":42}`))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotInitialized)
}

func TestPingCommand(t *testing.T) {
	m, _ := newTestManager()
	router := ws.NewRouter()
	RegisterCommands(router, m)

	result, err := router.Dispatch(context.Background(), bluetooth.CMD_PING, json.RawMessage(`{"value":"hello"}`))
	require.NoError(t, err)
	pong := result.(bluetooth.PingResponse)
	require.NotNil(t, pong.Value)
	assert.Equal(t, "hello", *pong.Value)

	result, err = router.Dispatch(context.Background(), bluetooth.CMD_PING, nil)
	require.NoError(t, err)
	assert.Nil(t, result.(bluetooth.PingResponse).Value)
}
