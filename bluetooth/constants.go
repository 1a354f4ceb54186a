package bluetooth

import "time"

const PLUGIN_NAME = "bluetooth-manager"

// Commands understood by the native plugin. The names and their argument
// keys are fixed by the plugin side.
const (
	CMD_LIST_ADAPTERS       = "plugin:" + PLUGIN_NAME + "|list_adapters"
	CMD_SET_ADAPTER_POWERED = "plugin:" + PLUGIN_NAME + "|set_adapter_powered"
	CMD_GET_ADAPTER_STATE   = "plugin:" + PLUGIN_NAME + "|get_adapter_state"
	CMD_START_SCAN          = "plugin:" + PLUGIN_NAME + "|start_scan"
	CMD_STOP_SCAN           = "plugin:" + PLUGIN_NAME + "|stop_scan"
	CMD_LIST_DEVICES        = "plugin:" + PLUGIN_NAME + "|list_devices"
	CMD_GET_DEVICE_INFO     = "plugin:" + PLUGIN_NAME + "|get_device_info"
	CMD_LIST_PAIRED_DEVICES = "plugin:" + PLUGIN_NAME + "|list_paired_devices"
	CMD_CONNECT_DEVICE      = "plugin:" + PLUGIN_NAME + "|connect_device"
	CMD_DISCONNECT_DEVICE   = "plugin:" + PLUGIN_NAME + "|disconnect_device"
	CMD_PLUGIN_STATUS       = "plugin:" + PLUGIN_NAME + "|bluetooth_plugin_status"
	CMD_PING                = "plugin:" + PLUGIN_NAME + "|ping"
	CMD_CONNECT_NETWORK     = "plugin:" + PLUGIN_NAME + "|connect_network"
)

const DefaultScanTimeout = 10 * time.Second
