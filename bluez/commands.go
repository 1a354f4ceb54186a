package bluez

import (
	"context"
	"encoding/json"

	"github.com/usenocturne/btmanager/bluetooth"
	"github.com/usenocturne/btmanager/ws"
)

func adapterCommand(fn func(ctx context.Context, adapter string) (interface{}, error)) ws.HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var args bluetooth.AdapterArgs
		if err := ws.DecodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return fn(ctx, args.AdapterPath)
	}
}

func deviceCommand(fn func(ctx context.Context, device string) (interface{}, error)) ws.HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var args bluetooth.DeviceArgs
		if err := ws.DecodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return fn(ctx, args.DevicePath)
	}
}

// RegisterCommands exposes every plugin command of m on router.
func RegisterCommands(router *ws.Router, m *BluetoothManager) {
	router.Handle(bluetooth.CMD_LIST_ADAPTERS, func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		return m.ListAdapters(ctx)
	})

	router.Handle(bluetooth.CMD_SET_ADAPTER_POWERED, func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var args bluetooth.SetPoweredArgs
		if err := ws.DecodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return nil, m.SetAdapterPowered(ctx, args.AdapterPath, args.Powered)
	})

	router.Handle(bluetooth.CMD_GET_ADAPTER_STATE, adapterCommand(func(ctx context.Context, adapter string) (interface{}, error) {
		return m.GetAdapterState(ctx, adapter)
	}))
	router.Handle(bluetooth.CMD_START_SCAN, adapterCommand(func(ctx context.Context, adapter string) (interface{}, error) {
		return nil, m.StartScan(ctx, adapter)
	}))
	router.Handle(bluetooth.CMD_STOP_SCAN, adapterCommand(func(ctx context.Context, adapter string) (interface{}, error) {
		return nil, m.StopScan(ctx, adapter)
	}))
	router.Handle(bluetooth.CMD_LIST_DEVICES, adapterCommand(func(ctx context.Context, adapter string) (interface{}, error) {
		return m.ListDevices(ctx, adapter)
	}))
	router.Handle(bluetooth.CMD_LIST_PAIRED_DEVICES, adapterCommand(func(ctx context.Context, adapter string) (interface{}, error) {
		return m.ListPairedDevices(ctx, adapter)
	}))

	router.Handle(bluetooth.CMD_GET_DEVICE_INFO, deviceCommand(func(ctx context.Context, device string) (interface{}, error) {
		return m.GetDeviceInfo(ctx, device)
	}))
	router.Handle(bluetooth.CMD_CONNECT_DEVICE, deviceCommand(func(ctx context.Context, device string) (interface{}, error) {
		return nil, m.ConnectDevice(ctx, device)
	}))
	router.Handle(bluetooth.CMD_DISCONNECT_DEVICE, deviceCommand(func(ctx context.Context, device string) (interface{}, error) {
		return nil, m.DisconnectDevice(ctx, device)
	}))
	router.Handle(bluetooth.CMD_CONNECT_NETWORK, deviceCommand(func(ctx context.Context, device string) (interface{}, error) {
		return m.ConnectNetwork(ctx, device)
	}))

	router.Handle(bluetooth.CMD_PLUGIN_STATUS, func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		return m.Status(), nil
	})

	router.Handle(bluetooth.CMD_PING, func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var req bluetooth.PingRequest
		if len(raw) > 0 {
			if err := ws.DecodeArgs(raw, &req); err != nil {
				return nil, err
			}
		}
		return m.Ping(req), nil
	})
}
