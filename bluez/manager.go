package bluez

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"

	"github.com/usenocturne/btmanager/bluetooth"
)

var ErrNotInitialized = errors.New("bluetooth service not available")

// Broadcaster receives every change observed on the bus.
type Broadcaster interface {
	Broadcast(change bluetooth.BluetoothChange)
}

// BluetoothManager implements the plugin commands against BlueZ on the
// system bus.
type BluetoothManager struct {
	conn        *dbus.Conn
	mu          sync.Mutex
	initialized bool
	hub         Broadcaster
	log         logrus.FieldLogger

	// linkByName is swapped out in tests.
	linkByName func(name string) (netlink.Link, error)
}

func NewBluetoothManager(hub Broadcaster, logger logrus.FieldLogger) *BluetoothManager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BluetoothManager{
		hub:        hub,
		log:        logger,
		linkByName: netlink.LinkByName,
	}
}

// Init connects to the system bus and starts forwarding BlueZ signals. A
// failed Init leaves the manager usable: Status reports false and every
// other command returns ErrNotInitialized.
func (m *BluetoothManager) Init() error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}
	m.log.Info("Connected to system bus")

	var owner string
	obj := conn.Object("org.freedesktop.DBus", "/org/freedesktop/DBus")
	if err := obj.Call("org.freedesktop.DBus.GetNameOwner", 0, BLUEZ_BUS_NAME).Store(&owner); err != nil {
		return fmt.Errorf("failed to get bluez owner: %w", err)
	}
	m.log.WithField("owner", owner).Info("Found bluez")

	if err := m.monitorChanges(conn); err != nil {
		return err
	}

	m.mu.Lock()
	m.conn = conn
	m.initialized = true
	m.mu.Unlock()

	return nil
}

func (m *BluetoothManager) Status() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

func (m *BluetoothManager) bus() (*dbus.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return nil, ErrNotInitialized
	}
	return m.conn, nil
}

func (m *BluetoothManager) getManagedObjects(ctx context.Context) (managedObjects, error) {
	conn, err := m.bus()
	if err != nil {
		return nil, err
	}

	objects := make(managedObjects)
	obj := conn.Object(BLUEZ_BUS_NAME, "/")
	if err := obj.CallWithContext(ctx, DBUS_OBJECT_MANAGER+".GetManagedObjects", 0).Store(&objects); err != nil {
		return nil, fmt.Errorf("failed to get managed objects: %w", err)
	}
	return objects, nil
}

func (m *BluetoothManager) getAll(ctx context.Context, path dbus.ObjectPath, iface string) (map[string]dbus.Variant, error) {
	conn, err := m.bus()
	if err != nil {
		return nil, err
	}
	if !path.IsValid() {
		return nil, fmt.Errorf("invalid object path %q", path)
	}

	props := make(map[string]dbus.Variant)
	obj := conn.Object(BLUEZ_BUS_NAME, path)
	if err := obj.CallWithContext(ctx, DBUS_PROPERTIES+".GetAll", 0, iface).Store(&props); err != nil {
		return nil, fmt.Errorf("failed to get %s properties of %s: %w", iface, path, err)
	}
	return props, nil
}

func (m *BluetoothManager) call(ctx context.Context, path dbus.ObjectPath, method string, args ...interface{}) error {
	conn, err := m.bus()
	if err != nil {
		return err
	}
	if !path.IsValid() {
		return fmt.Errorf("invalid object path %q", path)
	}
	return conn.Object(BLUEZ_BUS_NAME, path).CallWithContext(ctx, method, 0, args...).Err
}

func (m *BluetoothManager) ListAdapters(ctx context.Context) ([]bluetooth.AdapterInfo, error) {
	objects, err := m.getManagedObjects(ctx)
	if err != nil {
		return nil, err
	}
	return adaptersFromObjects(objects), nil
}

func (m *BluetoothManager) SetAdapterPowered(ctx context.Context, adapter string, powered bool) error {
	err := m.call(ctx, dbus.ObjectPath(adapter), DBUS_PROPERTIES+".Set",
		BLUEZ_ADAPTER_INTERFACE, "Powered", dbus.MakeVariant(powered))
	if err != nil {
		return fmt.Errorf("failed to set powered on %s: %w", adapter, err)
	}
	return nil
}

func (m *BluetoothManager) GetAdapterState(ctx context.Context, adapter string) (bluetooth.AdapterInfo, error) {
	props, err := m.getAll(ctx, dbus.ObjectPath(adapter), BLUEZ_ADAPTER_INTERFACE)
	if err != nil {
		return bluetooth.AdapterInfo{}, err
	}
	return adapterInfoFromProps(dbus.ObjectPath(adapter), props), nil
}

func (m *BluetoothManager) StartScan(ctx context.Context, adapter string) error {
	if err := m.call(ctx, dbus.ObjectPath(adapter), BLUEZ_ADAPTER_INTERFACE+".StartDiscovery"); err != nil {
		return fmt.Errorf("failed to start discovery on %s: %w", adapter, err)
	}
	return nil
}

func (m *BluetoothManager) StopScan(ctx context.Context, adapter string) error {
	if err := m.call(ctx, dbus.ObjectPath(adapter), BLUEZ_ADAPTER_INTERFACE+".StopDiscovery"); err != nil {
		return fmt.Errorf("failed to stop discovery on %s: %w", adapter, err)
	}
	return nil
}

func (m *BluetoothManager) ListDevices(ctx context.Context, adapter string) ([]bluetooth.DeviceInfo, error) {
	objects, err := m.getManagedObjects(ctx)
	if err != nil {
		return nil, err
	}
	return devicesFromObjects(objects, adapter, false), nil
}

func (m *BluetoothManager) ListPairedDevices(ctx context.Context, adapter string) ([]bluetooth.DeviceInfo, error) {
	objects, err := m.getManagedObjects(ctx)
	if err != nil {
		return nil, err
	}
	return devicesFromObjects(objects, adapter, true), nil
}

func (m *BluetoothManager) GetDeviceInfo(ctx context.Context, device string) (bluetooth.DeviceInfo, error) {
	props, err := m.getAll(ctx, dbus.ObjectPath(device), BLUEZ_DEVICE_INTERFACE)
	if err != nil {
		return bluetooth.DeviceInfo{}, err
	}
	return deviceInfoFromProps(dbus.ObjectPath(device), props), nil
}

func (m *BluetoothManager) ConnectDevice(ctx context.Context, device string) error {
	if err := m.call(ctx, dbus.ObjectPath(device), BLUEZ_DEVICE_INTERFACE+".Connect"); err != nil {
		return fmt.Errorf("failed to connect to device: %w", err)
	}
	m.log.WithField("device", device).Info("Device connected")
	return nil
}

func (m *BluetoothManager) DisconnectDevice(ctx context.Context, device string) error {
	if err := m.call(ctx, dbus.ObjectPath(device), BLUEZ_DEVICE_INTERFACE+".Disconnect"); err != nil {
		return fmt.Errorf("failed to disconnect device: %w", err)
	}
	m.log.WithField("device", device).Info("Device disconnected")
	return nil
}

// ConnectNetwork joins the device's network access point and returns the
// PAN interface BlueZ created for it.
func (m *BluetoothManager) ConnectNetwork(ctx context.Context, device string) (string, error) {
	conn, err := m.bus()
	if err != nil {
		return "", err
	}
	path := dbus.ObjectPath(device)
	if !path.IsValid() {
		return "", fmt.Errorf("invalid object path %q", device)
	}

	var iface string
	obj := conn.Object(BLUEZ_BUS_NAME, path)
	if err := obj.CallWithContext(ctx, BLUEZ_NETWORK_INTERFACE+".Connect", 0, NAP_SERVICE).Store(&iface); err != nil {
		return "", fmt.Errorf("failed to connect network: %w", err)
	}

	if err := m.checkLinkUp(iface); err != nil {
		return "", err
	}

	m.log.WithFields(logrus.Fields{"device": device, "interface": iface}).Info("Network connected")
	return iface, nil
}

func (m *BluetoothManager) checkLinkUp(iface string) error {
	link, err := m.linkByName(iface)
	if err != nil {
		return fmt.Errorf("%s interface not found: %w", iface, err)
	}
	if link.Attrs().Flags&net.FlagUp == 0 {
		return fmt.Errorf("%s interface is not up", iface)
	}
	return nil
}

func (m *BluetoothManager) Ping(req bluetooth.PingRequest) bluetooth.PingResponse {
	return bluetooth.PingResponse{Value: req.Value}
}
