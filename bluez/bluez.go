// Package bluez implements the bridge's Bluetooth adapter on top of BlueZ,
// reached over the system D-Bus.
package bluez

import (
	"context"
	"net"
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"github.com/ka2n/printbridge"
	"github.com/pkg/errors"
)

const (
	busName       = "org.bluez"
	adapterIface  = "org.bluez.Adapter1"
	deviceIface   = "org.bluez.Device1"
	propsIface    = "org.freedesktop.DBus.Properties"
	objectManager = "org.freedesktop.DBus.ObjectManager"
	accessDenied  = "org.freedesktop.DBus.Error.AccessDenied"
)

type managedObjects = map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// adapterObjectPath converts an adapter name like "hci0" to "/org/bluez/hci0".
func adapterObjectPath(name string) dbus.ObjectPath {
	return dbus.ObjectPath("/org/bluez/" + name)
}

// deviceObjectPath converts a MAC address like "AA:BB:CC:DD:EE:FF" to
// "<adapter>/dev_AA_BB_CC_DD_EE_FF".
func deviceObjectPath(adapter dbus.ObjectPath, addr string) dbus.ObjectPath {
	escaped := strings.ReplaceAll(strings.ToUpper(addr), ":", "_")
	return dbus.ObjectPath(string(adapter) + "/dev_" + escaped)
}

// Adapter is one BlueZ adapter.
type Adapter struct {
	conn *dbus.Conn
	path dbus.ObjectPath
}

// New connects to the system bus and checks that BlueZ exposes the named
// adapter.
func New(name string) (*Adapter, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, errors.Wrap(err, "connect to system bus")
	}
	a, err := newAdapter(conn, name)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return a, nil
}

func newAdapter(conn *dbus.Conn, name string) (*Adapter, error) {
	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return nil, errors.Wrap(err, "list bus names")
	}
	found := false
	for _, n := range names {
		if n == busName {
			found = true
			break
		}
	}
	if !found {
		return nil, errors.New("org.bluez not found on system bus, is bluetooth.service running?")
	}

	a := &Adapter{conn: conn, path: adapterObjectPath(name)}
	if _, err := a.getProp(context.Background(), a.path, adapterIface, "Address"); err != nil {
		return nil, errors.Wrapf(err, "adapter %s", name)
	}
	return a, nil
}

// Close closes the bus connection.
func (a *Adapter) Close() error {
	return a.conn.Close()
}

// Permitted reports false when the bus policy denies this process access to
// BlueZ objects.
func (a *Adapter) Permitted(ctx context.Context) bool {
	_, err := a.managedObjects(ctx)
	return !isAccessDenied(err)
}

func isAccessDenied(err error) bool {
	var valErr dbus.Error
	if errors.As(err, &valErr) {
		return valErr.Name == accessDenied
	}
	var ptrErr *dbus.Error
	if errors.As(err, &ptrErr) {
		return ptrErr.Name == accessDenied
	}
	return false
}

// Powered reports the adapter's Powered property.
func (a *Adapter) Powered(ctx context.Context) (bool, error) {
	v, err := a.getProp(ctx, a.path, adapterIface, "Powered")
	if err != nil {
		return false, err
	}
	powered, ok := v.Value().(bool)
	if !ok {
		return false, errors.New("property Powered is not bool")
	}
	return powered, nil
}

// BondedDevices lists paired devices of this adapter ordered by object path.
func (a *Adapter) BondedDevices(ctx context.Context) ([]printbridge.BluetoothDevice, error) {
	objs, err := a.managedObjects(ctx)
	if err != nil {
		return nil, err
	}
	return bondedDevices(objs, a.path), nil
}

// RemoteDevice normalizes address. The device does not have to be known to
// BlueZ or in range.
func (a *Adapter) RemoteDevice(ctx context.Context, address string) (printbridge.BluetoothDevice, error) {
	hw, err := net.ParseMAC(address)
	if err != nil || len(hw) != 6 {
		return printbridge.BluetoothDevice{}, errors.Errorf("%q is not a valid Bluetooth address", address)
	}
	dev := printbridge.BluetoothDevice{Address: strings.ToUpper(hw.String())}
	if v, err := a.getProp(ctx, deviceObjectPath(a.path, dev.Address), deviceIface, "Name"); err == nil {
		dev.Name, _ = v.Value().(string)
	}
	return dev, nil
}

// Advertises reports whether BlueZ has seen service in the device's SDP
// records. It is false for devices BlueZ has never resolved.
func (a *Adapter) Advertises(ctx context.Context, address string, service uuid.UUID) bool {
	v, err := a.getProp(ctx, deviceObjectPath(a.path, address), deviceIface, "UUIDs")
	if err != nil {
		return false
	}
	uuids, _ := v.Value().([]string)
	return hasService(uuids, service)
}

func (a *Adapter) getProp(ctx context.Context, path dbus.ObjectPath, iface, prop string) (dbus.Variant, error) {
	obj := a.conn.Object(busName, path)
	var v dbus.Variant
	err := obj.CallWithContext(ctx, propsIface+".Get", 0, iface, prop).Store(&v)
	return v, err
}

func (a *Adapter) managedObjects(ctx context.Context) (managedObjects, error) {
	var objs managedObjects
	obj := a.conn.Object(busName, "/")
	if err := obj.CallWithContext(ctx, objectManager+".GetManagedObjects", 0).Store(&objs); err != nil {
		return nil, errors.Wrap(err, "get managed objects")
	}
	return objs, nil
}

func bondedDevices(objs managedObjects, adapter dbus.ObjectPath) []printbridge.BluetoothDevice {
	paths := make([]string, 0, len(objs))
	for path := range objs {
		paths = append(paths, string(path))
	}
	sort.Strings(paths)

	devices := []printbridge.BluetoothDevice{}
	for _, path := range paths {
		props, ok := objs[dbus.ObjectPath(path)][deviceIface]
		if !ok {
			continue
		}
		if owner, _ := props["Adapter"].Value().(dbus.ObjectPath); owner != adapter {
			continue
		}
		paired, _ := props["Paired"].Value().(bool)
		bonded, _ := props["Bonded"].Value().(bool)
		if !paired && !bonded {
			continue
		}
		address, _ := props["Address"].Value().(string)
		name, _ := props["Name"].Value().(string)
		devices = append(devices, printbridge.BluetoothDevice{Name: name, Address: address})
	}
	return devices
}

func hasService(uuids []string, service uuid.UUID) bool {
	for _, s := range uuids {
		u, err := uuid.Parse(s)
		if err == nil && u == service {
			return true
		}
	}
	return false
}
