package bluetooth

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Invoker issues one named command to the native plugin and decodes its
// result into result. args and result may be nil.
type Invoker interface {
	Invoke(ctx context.Context, cmd string, args interface{}, result interface{}) error
}

// Client forwards typed calls to the native plugin. It keeps no state
// between calls and is safe for concurrent use.
type Client struct {
	invoker Invoker
	log     logrus.FieldLogger
	wait    func(ctx context.Context, d time.Duration) error
}

func NewClient(invoker Invoker, logger logrus.FieldLogger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		invoker: invoker,
		log:     logger,
		wait:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) ListAdapters(ctx context.Context) ([]AdapterInfo, error) {
	var adapters []AdapterInfo
	if err := c.invoker.Invoke(ctx, CMD_LIST_ADAPTERS, nil, &adapters); err != nil {
		return nil, err
	}
	return adapters, nil
}

func (c *Client) SetAdapterPowered(ctx context.Context, adapterPath string, powered bool) error {
	return c.invoker.Invoke(ctx, CMD_SET_ADAPTER_POWERED, SetPoweredArgs{
		AdapterPath: adapterPath,
		Powered:     powered,
	}, nil)
}

func (c *Client) GetAdapterState(ctx context.Context, adapterPath string) (*AdapterInfo, error) {
	var adapter AdapterInfo
	if err := c.invoker.Invoke(ctx, CMD_GET_ADAPTER_STATE, AdapterArgs{AdapterPath: adapterPath}, &adapter); err != nil {
		return nil, err
	}
	return &adapter, nil
}

func (c *Client) StartScan(ctx context.Context, adapterPath string) error {
	return c.invoker.Invoke(ctx, CMD_START_SCAN, AdapterArgs{AdapterPath: adapterPath}, nil)
}

func (c *Client) StopScan(ctx context.Context, adapterPath string) error {
	return c.invoker.Invoke(ctx, CMD_STOP_SCAN, AdapterArgs{AdapterPath: adapterPath}, nil)
}

// ListDevices returns every device the adapter knows about, paired or not.
func (c *Client) ListDevices(ctx context.Context, adapterPath string) ([]DeviceInfo, error) {
	var devices []DeviceInfo
	if err := c.invoker.Invoke(ctx, CMD_LIST_DEVICES, AdapterArgs{AdapterPath: adapterPath}, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

func (c *Client) GetDeviceInfo(ctx context.Context, devicePath string) (*DeviceInfo, error) {
	var device DeviceInfo
	if err := c.invoker.Invoke(ctx, CMD_GET_DEVICE_INFO, DeviceArgs{DevicePath: devicePath}, &device); err != nil {
		return nil, err
	}
	return &device, nil
}

// ListPairedDevices leaves the filtering to the plugin.
func (c *Client) ListPairedDevices(ctx context.Context, adapterPath string) ([]DeviceInfo, error) {
	var devices []DeviceInfo
	if err := c.invoker.Invoke(ctx, CMD_LIST_PAIRED_DEVICES, AdapterArgs{AdapterPath: adapterPath}, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

func (c *Client) ConnectDevice(ctx context.Context, devicePath string) error {
	return c.invoker.Invoke(ctx, CMD_CONNECT_DEVICE, DeviceArgs{DevicePath: devicePath}, nil)
}

func (c *Client) DisconnectDevice(ctx context.Context, devicePath string) error {
	return c.invoker.Invoke(ctx, CMD_DISCONNECT_DEVICE, DeviceArgs{DevicePath: devicePath}, nil)
}

// IsBluetoothPluginInitialized reports whether the native side came up.
func (c *Client) IsBluetoothPluginInitialized(ctx context.Context) (bool, error) {
	var initialized bool
	if err := c.invoker.Invoke(ctx, CMD_PLUGIN_STATUS, nil, &initialized); err != nil {
		return false, err
	}
	return initialized, nil
}

func (c *Client) Ping(ctx context.Context, req PingRequest) (*PingResponse, error) {
	var resp PingResponse
	if err := c.invoker.Invoke(ctx, CMD_PING, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ConnectNetwork joins the device's PAN network access point and returns the
// name of the network interface the plugin brought up.
func (c *Client) ConnectNetwork(ctx context.Context, devicePath string) (string, error) {
	var iface string
	if err := c.invoker.Invoke(ctx, CMD_CONNECT_NETWORK, DeviceArgs{DevicePath: devicePath}, &iface); err != nil {
		return "", err
	}
	return iface, nil
}
