package bluez

import (
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/usenocturne/btmanager/bluetooth"
)

type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

func propString(props map[string]dbus.Variant, key string) (string, bool) {
	v, ok := props[key]
	if !ok {
		return "", false
	}
	s, ok := v.Value().(string)
	return s, ok
}

func propBool(props map[string]dbus.Variant, key string) bool {
	if v, ok := props[key]; ok {
		if b, ok := v.Value().(bool); ok {
			return b
		}
	}
	return false
}

func propUint32(props map[string]dbus.Variant, key string) (uint32, bool) {
	v, ok := props[key]
	if !ok {
		return 0, false
	}
	n, ok := v.Value().(uint32)
	return n, ok
}

func propUint16(props map[string]dbus.Variant, key string) (uint16, bool) {
	v, ok := props[key]
	if !ok {
		return 0, false
	}
	n, ok := v.Value().(uint16)
	return n, ok
}

func propInt16(props map[string]dbus.Variant, key string) (int16, bool) {
	v, ok := props[key]
	if !ok {
		return 0, false
	}
	n, ok := v.Value().(int16)
	return n, ok
}

func propStrings(props map[string]dbus.Variant, key string) []string {
	if v, ok := props[key]; ok {
		if s, ok := v.Value().([]string); ok {
			return s
		}
	}
	return []string{}
}

func optString(props map[string]dbus.Variant, key string) *string {
	if s, ok := propString(props, key); ok {
		return &s
	}
	return nil
}

func adapterInfoFromProps(path dbus.ObjectPath, props map[string]dbus.Variant) bluetooth.AdapterInfo {
	info := bluetooth.AdapterInfo{
		Path:         string(path),
		Powered:      propBool(props, "Powered"),
		Discoverable: propBool(props, "Discoverable"),
		Pairable:     propBool(props, "Pairable"),
		Discovering:  propBool(props, "Discovering"),
		UUIDs:        propStrings(props, "UUIDs"),
		Modalias:     optString(props, "Modalias"),
	}
	info.Address, _ = propString(props, "Address")
	info.Name, _ = propString(props, "Name")
	info.Alias, _ = propString(props, "Alias")
	info.Class, _ = propUint32(props, "Class")
	info.DiscoverableTimeout, _ = propUint32(props, "DiscoverableTimeout")
	info.PairableTimeout, _ = propUint32(props, "PairableTimeout")
	return info
}

func deviceInfoFromProps(path dbus.ObjectPath, props map[string]dbus.Variant) bluetooth.DeviceInfo {
	info := bluetooth.DeviceInfo{
		Path:             string(path),
		Name:             optString(props, "Name"),
		Alias:            optString(props, "Alias"),
		Icon:             optString(props, "Icon"),
		Paired:           propBool(props, "Paired"),
		Trusted:          propBool(props, "Trusted"),
		Blocked:          propBool(props, "Blocked"),
		LegacyPairing:    propBool(props, "LegacyPairing"),
		Connected:        propBool(props, "Connected"),
		UUIDs:            propStrings(props, "UUIDs"),
		ServicesResolved: propBool(props, "ServicesResolved"),
	}
	info.Address, _ = propString(props, "Address")

	if v, ok := propUint32(props, "Class"); ok {
		info.Class = &v
	}
	if v, ok := propUint16(props, "Appearance"); ok {
		info.Appearance = &v
	}
	if v, ok := propInt16(props, "RSSI"); ok {
		info.RSSI = &v
	}
	if v, ok := propInt16(props, "TxPower"); ok {
		info.TxPower = &v
	}
	if v, ok := props["Adapter"]; ok {
		if p, ok := v.Value().(dbus.ObjectPath); ok {
			info.Adapter = string(p)
		}
	}
	return info
}

func adaptersFromObjects(objects managedObjects) []bluetooth.AdapterInfo {
	adapters := []bluetooth.AdapterInfo{}
	for path, interfaces := range objects {
		if props, ok := interfaces[BLUEZ_ADAPTER_INTERFACE]; ok {
			adapters = append(adapters, adapterInfoFromProps(path, props))
		}
	}
	sort.Slice(adapters, func(i, j int) bool { return adapters[i].Path < adapters[j].Path })
	return adapters
}

// devicesFromObjects returns the devices owned by adapter. Ownership comes
// from the Adapter property, or the object path when BlueZ omits it.
func devicesFromObjects(objects managedObjects, adapter string, pairedOnly bool) []bluetooth.DeviceInfo {
	devices := []bluetooth.DeviceInfo{}
	for path, interfaces := range objects {
		props, ok := interfaces[BLUEZ_DEVICE_INTERFACE]
		if !ok {
			continue
		}
		info := deviceInfoFromProps(path, props)
		owned := info.Adapter == adapter
		if info.Adapter == "" {
			owned = strings.HasPrefix(string(path), adapter+"/")
		}
		if !owned || (pairedOnly && !info.Paired) {
			continue
		}
		devices = append(devices, info)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })
	return devices
}
