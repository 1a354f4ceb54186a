package bluetooth

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNoAdapter = errors.New("no bluetooth adapter found")

// The read-only helpers below never fail: errors are logged and a zero
// value is returned instead.

func (c *Client) IsBluetoothAvailable(ctx context.Context) bool {
	adapters, err := c.ListAdapters(ctx)
	if err != nil {
		c.log.WithError(err).Error("Error checking bluetooth availability")
		return false
	}
	return len(adapters) > 0
}

// GetDefaultAdapter returns the first adapter reported by the plugin, or nil.
func (c *Client) GetDefaultAdapter(ctx context.Context) *AdapterInfo {
	adapters, err := c.ListAdapters(ctx)
	if err != nil {
		c.log.WithError(err).Error("Error getting default adapter")
		return nil
	}
	if len(adapters) == 0 {
		return nil
	}
	return &adapters[0]
}

func (c *Client) IsBluetoothEnabled(ctx context.Context) bool {
	adapter := c.GetDefaultAdapter(ctx)
	if adapter == nil {
		return false
	}
	return adapter.Powered
}

// ToggleBluetooth flips the powered state of the default adapter and returns
// the new state. The read and the write are not atomic.
func (c *Client) ToggleBluetooth(ctx context.Context) (bool, error) {
	adapters, err := c.ListAdapters(ctx)
	if err != nil {
		c.log.WithError(err).Error("Error toggling bluetooth")
		return false, err
	}
	if len(adapters) == 0 {
		c.log.WithError(ErrNoAdapter).Error("Error toggling bluetooth")
		return false, ErrNoAdapter
	}

	adapter := adapters[0]
	powered := !adapter.Powered
	if err := c.SetAdapterPowered(ctx, adapter.Path, powered); err != nil {
		c.log.WithError(err).WithField("adapter", adapter.Path).Error("Error toggling bluetooth")
		return false, err
	}
	return powered, nil
}

func (c *Client) GetConnectedDevicesCount(ctx context.Context, adapterPath string) int {
	devices, err := c.ListDevices(ctx, adapterPath)
	if err != nil {
		c.log.WithError(err).WithField("adapter", adapterPath).Error("Error getting connected devices count")
		return 0
	}
	return len(filterConnected(devices, true))
}

func (c *Client) GetConnectedDevices(ctx context.Context, adapterPath string) []DeviceInfo {
	devices, err := c.ListDevices(ctx, adapterPath)
	if err != nil {
		c.log.WithError(err).WithField("adapter", adapterPath).Error("Error getting connected devices")
		return []DeviceInfo{}
	}
	return filterConnected(devices, true)
}

// GetAvailableDevices returns the devices that are known but not connected.
func (c *Client) GetAvailableDevices(ctx context.Context, adapterPath string) []DeviceInfo {
	devices, err := c.ListDevices(ctx, adapterPath)
	if err != nil {
		c.log.WithError(err).WithField("adapter", adapterPath).Error("Error getting available devices")
		return []DeviceInfo{}
	}
	return filterConnected(devices, false)
}

func filterConnected(devices []DeviceInfo, connected bool) []DeviceInfo {
	filtered := []DeviceInfo{}
	for _, device := range devices {
		if device.Connected == connected {
			filtered = append(filtered, device)
		}
	}
	return filtered
}

// FindDeviceByAddress compares addresses case-insensitively.
func (c *Client) FindDeviceByAddress(ctx context.Context, adapterPath string, address string) *DeviceInfo {
	devices, err := c.ListDevices(ctx, adapterPath)
	if err != nil {
		c.log.WithError(err).WithField("adapter", adapterPath).Error("Error finding device by address")
		return nil
	}

	for i := range devices {
		if strings.EqualFold(devices[i].Address, address) {
			return &devices[i]
		}
	}
	return nil
}

// ScanForDevices runs discovery for the given duration and returns the
// devices known afterwards. A negative duration means DefaultScanTimeout.
// On failure a stop-scan is still attempted and the first error is
// returned.
func (c *Client) ScanForDevices(ctx context.Context, adapterPath string, timeout time.Duration) ([]DeviceInfo, error) {
	if timeout < 0 {
		timeout = DefaultScanTimeout
	}

	devices, err := c.scan(ctx, adapterPath, timeout)
	if err != nil {
		logger := c.log.WithField("adapter", adapterPath)
		logger.WithError(err).Error("Error during device scan")

		if stopErr := c.StopScan(context.WithoutCancel(ctx), adapterPath); stopErr != nil {
			logger.WithError(stopErr).Error("Error stopping scan")
		}
		return nil, err
	}
	return devices, nil
}

func (c *Client) scan(ctx context.Context, adapterPath string, timeout time.Duration) ([]DeviceInfo, error) {
	if err := c.StartScan(ctx, adapterPath); err != nil {
		return nil, err
	}

	if err := c.wait(ctx, timeout); err != nil {
		return nil, err
	}

	if err := c.StopScan(ctx, adapterPath); err != nil {
		return nil, err
	}

	return c.ListDevices(ctx, adapterPath)
}
