package printbridge

import (
	"io"

	"github.com/pkg/errors"
)

// Transport identifies which variant of Connection is active.
type Transport int

const (
	TransportNone Transport = iota
	TransportBluetooth
	TransportUSB
)

func (t Transport) String() string {
	switch t {
	case TransportBluetooth:
		return "bluetooth"
	case TransportUSB:
		return "usb"
	}
	return "none"
}

// Connection is the active connection slot of a Manager. It is one of
// Closed, *BluetoothConnection or *USBConnection.
type Connection interface {
	Transport() Transport
	release() error
}

// Closed is the Connection of a Manager with nothing open.
type Closed struct{}

func (Closed) Transport() Transport { return TransportNone }
func (Closed) release() error       { return nil }

// BluetoothConnection is an open serial-profile stream.
type BluetoothConnection struct {
	Address string
	Sink    io.WriteCloser
}

func (*BluetoothConnection) Transport() Transport { return TransportBluetooth }

func (c *BluetoothConnection) release() error {
	if c.Sink == nil {
		return nil
	}
	return errors.Wrapf(c.Sink.Close(), "close bluetooth %s", c.Address)
}

// USBConnection is an open device handle with the endpoint writes go to.
type USBConnection struct {
	Device   USBDevice
	Endpoint USBEndpoint
	Handle   USBHandle
}

func (*USBConnection) Transport() Transport { return TransportUSB }

func (c *USBConnection) release() error {
	if c.Handle == nil {
		return nil
	}
	return errors.Wrapf(c.Handle.Close(), "close usb %03d:%03d", c.Device.Bus, c.Device.Address)
}
