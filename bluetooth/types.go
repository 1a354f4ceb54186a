package bluetooth

import (
	"encoding/json"
	"fmt"
)

// AdapterInfo is a point-in-time snapshot of a local Bluetooth radio.
type AdapterInfo struct {
	Path                string   `json:"path"`
	Address             string   `json:"address"`
	Name                string   `json:"name"`
	Alias               string   `json:"alias"`
	Class               uint32   `json:"class"`
	Powered             bool     `json:"powered"`
	Discoverable        bool     `json:"discoverable"`
	DiscoverableTimeout uint32   `json:"discoverableTimeout"`
	Pairable            bool     `json:"pairable"`
	PairableTimeout     uint32   `json:"pairableTimeout"`
	Discovering         bool     `json:"discovering"`
	UUIDs               []string `json:"uuids"`
	Modalias            *string  `json:"modalias,omitempty"`
}

// DeviceInfo is a point-in-time snapshot of a remote device known to an
// adapter. RSSI and TxPower are only set while the device is observed
// during a scan.
type DeviceInfo struct {
	Path             string   `json:"path"`
	Address          string   `json:"address"`
	Name             *string  `json:"name,omitempty"`
	Alias            *string  `json:"alias,omitempty"`
	Class            *uint32  `json:"class,omitempty"`
	Appearance       *uint16  `json:"appearance,omitempty"`
	Icon             *string  `json:"icon,omitempty"`
	Paired           bool     `json:"paired"`
	Trusted          bool     `json:"trusted"`
	Blocked          bool     `json:"blocked"`
	LegacyPairing    bool     `json:"legacyPairing"`
	RSSI             *int16   `json:"rssi,omitempty"`
	TxPower          *int16   `json:"txPower,omitempty"`
	Connected        bool     `json:"connected"`
	UUIDs            []string `json:"uuids"`
	Adapter          string   `json:"adapter"`
	ServicesResolved bool     `json:"servicesResolved"`
}

type PingRequest struct {
	Value *string `json:"value,omitempty"`
}

type PingResponse struct {
	Value *string `json:"value,omitempty"`
}

// Argument records sent with each command.

type AdapterArgs struct {
	AdapterPath string `json:"adapterPath"`
}

type SetPoweredArgs struct {
	AdapterPath string `json:"adapterPath"`
	Powered     bool   `json:"powered"`
}

type DeviceArgs struct {
	DevicePath string `json:"devicePath"`
}

type ChangeType int

const (
	ChangeAdapterAdded ChangeType = iota + 1
	ChangeAdapterRemoved
	ChangeAdapterPropertyChanged
	ChangeDeviceAdded
	ChangeDeviceRemoved
	ChangeDeviceConnected
	ChangeDeviceDisconnected
	ChangeDevicePropertyChanged
	ChangeError
	ChangeDBusError
)

var changeTypeNames = map[ChangeType]string{
	ChangeAdapterAdded:           "adapter-added",
	ChangeAdapterRemoved:         "adapter-removed",
	ChangeAdapterPropertyChanged: "adapter-property-changed",
	ChangeDeviceAdded:            "device-added",
	ChangeDeviceRemoved:          "device-removed",
	ChangeDeviceConnected:        "device-connected",
	ChangeDeviceDisconnected:     "device-disconnected",
	ChangeDevicePropertyChanged:  "device-property-changed",
	ChangeError:                  "error",
	ChangeDBusError:              "dbus-error",
}

func (t ChangeType) String() string {
	if name, ok := changeTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ChangeType(%d)", int(t))
}

// ParseChangeType maps a wire name back to its ChangeType.
func ParseChangeType(name string) (ChangeType, error) {
	for t, n := range changeTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown change type %q", name)
}

func (t ChangeType) MarshalJSON() ([]byte, error) {
	name, ok := changeTypeNames[t]
	if !ok {
		return nil, fmt.Errorf("unknown change type %d", int(t))
	}
	return json.Marshal(name)
}

func (t *ChangeType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseChangeType(name)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// BluetoothChange is an event emitted by the native side. The shape of Data
// depends on ChangeType: an AdapterInfo or DeviceInfo for added and
// property-changed events, an object path for removals and connection
// changes, and a message string for errors.
type BluetoothChange struct {
	ChangeType ChangeType      `json:"changeType"`
	Data       json.RawMessage `json:"data"`
}

func NewChange(changeType ChangeType, data interface{}) (BluetoothChange, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return BluetoothChange{}, fmt.Errorf("failed to encode %s payload: %w", changeType, err)
	}
	return BluetoothChange{ChangeType: changeType, Data: raw}, nil
}
