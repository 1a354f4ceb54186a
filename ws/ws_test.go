package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usenocturne/btmanager/bluetooth"
)

func newTestBridge(t *testing.T, router *Router) (*WebSocketHub, *Client) {
	t.Helper()
	logger, _ := test.NewNullLogger()

	hub := NewWebSocketHub(logger)
	srv := httptest.NewServer(NewServer(router, hub, logger))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	return hub, client
}

func TestInvokeRoundTrip(t *testing.T) {
	router := NewRouter()
	router.Handle(bluetooth.CMD_GET_ADAPTER_STATE, func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var args bluetooth.AdapterArgs
		if err := DecodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return bluetooth.AdapterInfo{Path: args.AdapterPath, Powered: true, UUIDs: []string{}}, nil
	})
	router.Handle(bluetooth.CMD_STOP_SCAN, func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		return nil, nil
	})
	_, client := newTestBridge(t, router)
	ctx := context.Background()

	var adapter bluetooth.AdapterInfo
	err := client.Invoke(ctx, bluetooth.CMD_GET_ADAPTER_STATE, bluetooth.AdapterArgs{AdapterPath: "/org/bluez/hci0"}, &adapter)
	require.NoError(t, err)
	assert.Equal(t, "/org/bluez/hci0", adapter.Path)
	assert.True(t, adapter.Powered)

	assert.NoError(t, client.Invoke(ctx, bluetooth.CMD_STOP_SCAN, bluetooth.AdapterArgs{AdapterPath: "/org/bluez/hci0"}, nil))
}

func TestInvokeRemoteError(t *testing.T) {
	router := NewRouter()
	router.Handle(bluetooth.CMD_START_SCAN, func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		return nil, errors.New("org.bluez.Error.NotReady: Resource Not Ready")
	})
	_, client := newTestBridge(t, router)

	err := client.Invoke(context.Background(), bluetooth.CMD_START_SCAN, bluetooth.AdapterArgs{AdapterPath: "/org/bluez/hci0"}, nil)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, bluetooth.CMD_START_SCAN, remote.Command)
	assert.Equal(t, "org.bluez.Error.NotReady: Resource Not Ready", remote.Message)

	err = client.Invoke(context.Background(), "plugin:bluetooth-manager|self_destruct", nil, nil)
	require.ErrorAs(t, err, &remote)
	assert.Contains(t, remote.Message, ErrUnknownCommand.Error())
}

func TestInvokeConcurrent(t *testing.T) {
	router := NewRouter()
	router.Handle(bluetooth.CMD_GET_DEVICE_INFO, func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var args bluetooth.DeviceArgs
		if err := DecodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return bluetooth.DeviceInfo{Path: args.DevicePath}, nil
	})
	_, client := newTestBridge(t, router)

	var wg sync.WaitGroup
	paths := []string{"/org/bluez/hci0/dev_A", "/org/bluez/hci0/dev_B", "/org/bluez/hci0/dev_C", "/org/bluez/hci0/dev_D"}
	results := make([]string, len(paths))
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			var device bluetooth.DeviceInfo
			if err := client.Invoke(context.Background(), bluetooth.CMD_GET_DEVICE_INFO, bluetooth.DeviceArgs{DevicePath: path}, &device); err == nil {
				results[i] = device.Path
			}
		}(i, path)
	}
	wg.Wait()

	assert.Equal(t, paths, results)
}

func TestInvokeContextCanceled(t *testing.T) {
	release := make(chan struct{})
	router := NewRouter()
	router.Handle(bluetooth.CMD_LIST_DEVICES, func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		<-release
		return []bluetooth.DeviceInfo{}, nil
	})
	_, client := newTestBridge(t, router)
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := client.Invoke(ctx, bluetooth.CMD_LIST_DEVICES, bluetooth.AdapterArgs{AdapterPath: "/org/bluez/hci0"}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInvokeAfterClose(t *testing.T) {
	_, client := newTestBridge(t, NewRouter())
	require.NoError(t, client.Close())

	err := client.Invoke(context.Background(), bluetooth.CMD_LIST_ADAPTERS, nil, nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBroadcastReachesClient(t *testing.T) {
	hub, client := newTestBridge(t, NewRouter())

	change, err := bluetooth.NewChange(bluetooth.ChangeDeviceDisconnected, "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF")
	require.NoError(t, err)
	hub.Broadcast(change)

	select {
	case got := <-client.Events():
		assert.Equal(t, bluetooth.ChangeDeviceDisconnected, got.ChangeType)
		var path string
		require.NoError(t, json.Unmarshal(got.Data, &path))
		assert.Equal(t, "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF", path)
	case <-time.After(2 * time.Second):
		t.Fatal("no change received")
	}
}

func TestRouterCommands(t *testing.T) {
	router := NewRouter()
	noop := func(ctx context.Context, raw json.RawMessage) (interface{}, error) { return nil, nil }
	router.Handle(bluetooth.CMD_STOP_SCAN, noop)
	router.Handle(bluetooth.CMD_LIST_ADAPTERS, noop)

	assert.Equal(t, []string{bluetooth.CMD_LIST_ADAPTERS, bluetooth.CMD_STOP_SCAN}, router.Commands())

	_, err := router.Dispatch(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestDecodeArgs(t *testing.T) {
	var args bluetooth.SetPoweredArgs
	require.NoError(t, DecodeArgs(json.RawMessage(`{"adapterPath":"/org/bluez/hci0","powered":true}`), &args))
	assert.Equal(t, bluetooth.SetPoweredArgs{AdapterPath: "/org/bluez/hci0", Powered: true}, args)

	assert.Error(t, DecodeArgs(nil, &args))
	assert.Error(t, DecodeArgs(json.RawMessage(`{"powered":"yes"}`), &args))
}

func TestServerCommandTimeout(t *testing.T) {
	logger, _ := test.NewNullLogger()
	router := NewRouter()
	router.Handle(bluetooth.CMD_START_SCAN, func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	server := NewServer(router, NewWebSocketHub(logger), logger)
	server.CommandTimeout = 50 * time.Millisecond
	srv := httptest.NewServer(server)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), logger)
	require.NoError(t, err)
	defer client.Close()

	err = client.Invoke(ctx, bluetooth.CMD_START_SCAN, bluetooth.AdapterArgs{AdapterPath: "/org/bluez/hci0"}, nil)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, bluetooth.CMD_START_SCAN, remote.Command)
	assert.Contains(t, remote.Message, context.DeadlineExceeded.Error())
}
