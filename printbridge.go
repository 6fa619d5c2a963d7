// Package printbridge drives a receipt or label printer over one of two
// transports, a Bluetooth serial (RFCOMM) stream or a USB bulk endpoint, on
// behalf of an application that talks to it through named commands.
//
// A Manager owns at most one active connection. A Dispatcher maps named
// commands with loosely typed arguments onto the Manager.
package printbridge

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// SerialPortUUID is the Bluetooth Serial Port Profile service class.
var SerialPortUUID = uuid.MustParse("00001101-0000-1000-8000-00805F9B34FB")

// UnknownDeviceName replaces a missing Bluetooth display name.
const UnknownDeviceName = "Unknown"

// DefaultUSBTimeout bounds a single bulk transfer.
const DefaultUSBTimeout = 1000 * time.Millisecond

// BluetoothDevice describes a paired device.
type BluetoothDevice struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Adapter is the local Bluetooth controller.
type Adapter interface {
	// Permitted reports whether this process may talk to the adapter at all.
	Permitted(ctx context.Context) bool
	Powered(ctx context.Context) (bool, error)
	// BondedDevices lists previously paired devices in platform order.
	BondedDevices(ctx context.Context) ([]BluetoothDevice, error)
	// RemoteDevice resolves an address to a device. It validates the address
	// syntax only, never reachability.
	RemoteDevice(ctx context.Context, address string) (BluetoothDevice, error)
}

// Dialer opens a serial-profile stream to a remote device. DialSerial blocks
// until the transport handshake completes or fails.
type Dialer interface {
	DialSerial(ctx context.Context, device BluetoothDevice, service uuid.UUID) (io.WriteCloser, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, device BluetoothDevice, service uuid.UUID) (io.WriteCloser, error)

// DialSerial calls f.
func (f DialerFunc) DialSerial(ctx context.Context, device BluetoothDevice, service uuid.UUID) (io.WriteCloser, error) {
	return f(ctx, device, service)
}

// USBEndpoint is an endpoint descriptor of an attached device.
type USBEndpoint struct {
	Interface int
	Address   uint8
	Number    int
	In        bool
	Transfer  string
}

// USBInterface is an interface descriptor with its endpoints in descriptor order.
type USBInterface struct {
	Number    int
	Endpoints []USBEndpoint
}

// USBDevice is an attached device as enumerated by the host.
type USBDevice struct {
	Bus        int
	Address    int
	Vendor     uint16
	Product    uint16
	Config     int
	Interfaces []USBInterface
}

// USBHost enumerates attached devices and opens handles to them.
type USBHost interface {
	Devices(ctx context.Context) ([]USBDevice, error)
	Open(ctx context.Context, dev USBDevice) (USBHandle, error)
}

// USBHandle is an open device.
type USBHandle interface {
	// BulkTransfer sends data to ep and returns the number of bytes
	// transferred, or a negative value on failure.
	BulkTransfer(ep USBEndpoint, data []byte, timeout time.Duration) int
	Close() error
}
