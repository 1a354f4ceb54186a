package bluez

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/usenocturne/btmanager/bluetooth"
)

const refreshTimeout = 5 * time.Second

func (m *BluetoothManager) monitorChanges(conn *dbus.Conn) error {
	if err := conn.AddMatchSignal(
		dbus.WithMatchSender(BLUEZ_BUS_NAME),
		dbus.WithMatchInterface(DBUS_OBJECT_MANAGER),
	); err != nil {
		return fmt.Errorf("failed to add object manager match: %w", err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(DBUS_PROPERTIES),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchPathNamespace(BLUEZ_OBJECT_PATH),
	); err != nil {
		return fmt.Errorf("failed to add properties match: %w", err)
	}

	signals := make(chan *dbus.Signal, 10)
	conn.Signal(signals)

	go func() {
		for signal := range signals {
			m.handleSignal(signal)
		}
		m.log.Warn("D-Bus signal listener terminated")
		m.emit(bluetooth.ChangeDBusError, "D-Bus signal stream closed")
	}()

	return nil
}

func (m *BluetoothManager) broadcast(change bluetooth.BluetoothChange) {
	if m.hub != nil {
		m.hub.Broadcast(change)
	}
}

func (m *BluetoothManager) emit(changeType bluetooth.ChangeType, data interface{}) {
	change, err := bluetooth.NewChange(changeType, data)
	if err != nil {
		m.log.WithError(err).Error("Failed to build bluetooth change")
		return
	}
	m.broadcast(change)
}

func (m *BluetoothManager) emitError(err error) {
	m.log.WithError(err).Error("Bluetooth signal error")
	m.emit(bluetooth.ChangeError, err.Error())
}

func (m *BluetoothManager) handleSignal(signal *dbus.Signal) {
	switch signal.Name {
	case SIGNAL_INTERFACES_ADDED:
		changes, err := interfacesAddedChanges(signal)
		if err != nil {
			m.emitError(err)
			return
		}
		for _, change := range changes {
			m.broadcast(change)
		}

	case SIGNAL_INTERFACES_REMOVED:
		changes, err := interfacesRemovedChanges(signal)
		if err != nil {
			m.emitError(err)
			return
		}
		for _, change := range changes {
			m.broadcast(change)
		}

	case SIGNAL_PROPERTIES_CHANGED:
		if !strings.HasPrefix(string(signal.Path), BLUEZ_OBJECT_PATH) {
			return
		}
		iface, changed, err := parsePropertiesChanged(signal)
		if err != nil {
			m.emitError(err)
			return
		}
		m.handlePropertiesChanged(signal.Path, iface, changed)
	}
}

func (m *BluetoothManager) handlePropertiesChanged(path dbus.ObjectPath, iface string, changed map[string]dbus.Variant) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	switch iface {
	case BLUEZ_ADAPTER_INTERFACE:
		info, err := m.GetAdapterState(ctx, string(path))
		if err != nil {
			m.emitError(fmt.Errorf("error getting adapter state for %s: %w", path, err))
			return
		}
		m.emit(bluetooth.ChangeAdapterPropertyChanged, info)

	case BLUEZ_DEVICE_INTERFACE:
		if changeType, ok := connectionChange(changed); ok {
			m.log.WithField("device", path).Infof("Device %s", changeType)
			m.emit(changeType, string(path))
		}

		info, err := m.GetDeviceInfo(ctx, string(path))
		if err != nil {
			m.emitError(fmt.Errorf("error getting device info for %s: %w", path, err))
			return
		}
		m.emit(bluetooth.ChangeDevicePropertyChanged, info)
	}
}

func connectionChange(changed map[string]dbus.Variant) (bluetooth.ChangeType, bool) {
	v, ok := changed["Connected"]
	if !ok {
		return 0, false
	}
	connected, ok := v.Value().(bool)
	if !ok {
		return 0, false
	}
	if connected {
		return bluetooth.ChangeDeviceConnected, true
	}
	return bluetooth.ChangeDeviceDisconnected, true
}

func interfacesAddedChanges(signal *dbus.Signal) ([]bluetooth.BluetoothChange, error) {
	if len(signal.Body) < 2 {
		return nil, fmt.Errorf("error decoding InterfacesAdded body: %d fields", len(signal.Body))
	}
	path, ok := signal.Body[0].(dbus.ObjectPath)
	if !ok {
		return nil, fmt.Errorf("error decoding InterfacesAdded body: unexpected path %T", signal.Body[0])
	}
	interfaces, ok := signal.Body[1].(map[string]map[string]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("error decoding InterfacesAdded body: unexpected interfaces %T", signal.Body[1])
	}

	var changes []bluetooth.BluetoothChange
	if props, ok := interfaces[BLUEZ_ADAPTER_INTERFACE]; ok {
		change, err := bluetooth.NewChange(bluetooth.ChangeAdapterAdded, adapterInfoFromProps(path, props))
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}
	if props, ok := interfaces[BLUEZ_DEVICE_INTERFACE]; ok {
		change, err := bluetooth.NewChange(bluetooth.ChangeDeviceAdded, deviceInfoFromProps(path, props))
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}
	return changes, nil
}

func interfacesRemovedChanges(signal *dbus.Signal) ([]bluetooth.BluetoothChange, error) {
	if len(signal.Body) < 2 {
		return nil, fmt.Errorf("error decoding InterfacesRemoved body: %d fields", len(signal.Body))
	}
	path, ok := signal.Body[0].(dbus.ObjectPath)
	if !ok {
		return nil, fmt.Errorf("error decoding InterfacesRemoved body: unexpected path %T", signal.Body[0])
	}
	removed, ok := signal.Body[1].([]string)
	if !ok {
		return nil, fmt.Errorf("error decoding InterfacesRemoved body: unexpected interfaces %T", signal.Body[1])
	}

	var changes []bluetooth.BluetoothChange
	for _, iface := range removed {
		var changeType bluetooth.ChangeType
		switch iface {
		case BLUEZ_ADAPTER_INTERFACE:
			changeType = bluetooth.ChangeAdapterRemoved
		case BLUEZ_DEVICE_INTERFACE:
			changeType = bluetooth.ChangeDeviceRemoved
		default:
			continue
		}
		change, err := bluetooth.NewChange(changeType, string(path))
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}
	return changes, nil
}

func parsePropertiesChanged(signal *dbus.Signal) (string, map[string]dbus.Variant, error) {
	if len(signal.Body) < 3 {
		return "", nil, fmt.Errorf("error decoding PropertiesChanged body: %d fields", len(signal.Body))
	}
	iface, ok := signal.Body[0].(string)
	if !ok {
		return "", nil, fmt.Errorf("error decoding PropertiesChanged body: unexpected interface %T", signal.Body[0])
	}
	changed, ok := signal.Body[1].(map[string]dbus.Variant)
	if !ok {
		return "", nil, fmt.Errorf("error decoding PropertiesChanged body: unexpected properties %T", signal.Body[1])
	}
	return iface, changed, nil
}
