package bluez

const (
	BLUEZ_BUS_NAME            = "org.bluez"
	BLUEZ_ADAPTER_INTERFACE   = "org.bluez.Adapter1"
	BLUEZ_DEVICE_INTERFACE    = "org.bluez.Device1"
	BLUEZ_NETWORK_INTERFACE   = "org.bluez.Network1"
	BLUEZ_OBJECT_PATH         = "/org/bluez"
	DBUS_OBJECT_MANAGER       = "org.freedesktop.DBus.ObjectManager"
	DBUS_PROPERTIES           = "org.freedesktop.DBus.Properties"
	SIGNAL_INTERFACES_ADDED   = DBUS_OBJECT_MANAGER + ".InterfacesAdded"
	SIGNAL_INTERFACES_REMOVED = DBUS_OBJECT_MANAGER + ".InterfacesRemoved"
	SIGNAL_PROPERTIES_CHANGED = DBUS_PROPERTIES + ".PropertiesChanged"
	NAP_SERVICE               = "nap"
)
