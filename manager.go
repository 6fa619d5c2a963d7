package printbridge

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrNotConnected is the cause of a print attempt with nothing open.
var ErrNotConnected = errors.New("printer not connected")

// Options configure a Manager. A nil Adapter means the host has no
// Bluetooth adapter; a nil USBHost means it has no USB stack.
type Options struct {
	Adapter    Adapter
	Dialer     Dialer
	USBHost    USBHost
	USBPolicy  USBPolicy
	USBTimeout time.Duration
	Logger     *logrus.Entry
}

// Manager owns the single active printer connection.
//
// A Manager is not safe for concurrent use. Commands are expected to arrive
// one at a time, as channel.Server delivers them.
type Manager struct {
	adapter Adapter
	dialer  Dialer
	usb     USBHost
	policy  USBPolicy
	timeout time.Duration
	log     *logrus.Entry

	conn Connection
	// parked holds connections displaced by a later connect. They stay open
	// until CloseConnection.
	parked []Connection
}

// NewManager returns a Manager with nothing open.
func NewManager(opts Options) *Manager {
	m := &Manager{
		adapter: opts.Adapter,
		dialer:  opts.Dialer,
		usb:     opts.USBHost,
		policy:  opts.USBPolicy,
		timeout: opts.USBTimeout,
		log:     opts.Logger,
		conn:    Closed{},
	}
	if m.policy == nil {
		m.policy = FirstMatch
	}
	if m.timeout <= 0 {
		m.timeout = DefaultUSBTimeout
	}
	if m.log == nil {
		m.log = logrus.WithField("component", "manager")
	}
	return m
}

// Active returns the current connection.
func (m *Manager) Active() Connection {
	return m.conn
}

// PairedBluetoothDevices lists bonded devices. It never returns nil; without
// permission or adapter the list is empty.
func (m *Manager) PairedBluetoothDevices(ctx context.Context) ([]BluetoothDevice, Outcome) {
	devices := []BluetoothDevice{}
	if m.adapter == nil {
		return devices, failed(ReasonNoAdapter, nil)
	}
	if !m.adapter.Permitted(ctx) {
		return devices, failed(ReasonPermissionDenied, nil)
	}
	bonded, err := m.adapter.BondedDevices(ctx)
	if err != nil {
		m.log.WithError(err).Warn("list bonded devices")
		return devices, failed(ReasonNoAdapter, err)
	}
	for _, d := range bonded {
		if d.Name == "" {
			d.Name = UnknownDeviceName
		}
		devices = append(devices, d)
	}
	return devices, succeeded()
}

// ConnectBluetooth opens a serial-profile stream to address and makes it the
// active connection. It blocks for the duration of the handshake. A failed
// handshake closes everything, including connections opened earlier.
func (m *Manager) ConnectBluetooth(ctx context.Context, address string) Outcome {
	if m.adapter == nil {
		return failed(ReasonNoAdapter, nil)
	}
	powered, err := m.adapter.Powered(ctx)
	if err != nil || !powered {
		return failed(ReasonAdapterDisabled, err)
	}
	device, err := m.adapter.RemoteDevice(ctx, address)
	if err != nil {
		m.log.WithError(err).WithField("address", address).Warn("resolve bluetooth device")
		return failed(ReasonInvalidAddress, err)
	}
	if m.dialer == nil {
		return failed(ReasonConnectFailed, errors.New("no bluetooth dialer"))
	}

	sink, err := m.dialer.DialSerial(ctx, device, SerialPortUUID)
	if err != nil {
		err = errors.Wrapf(err, "connect %s", device.Address)
		m.log.WithError(err).Warn("bluetooth connect failed")
		m.CloseConnection()
		return failed(ReasonConnectFailed, err)
	}

	m.activate(&BluetoothConnection{Address: device.Address, Sink: sink})
	m.log.WithField("address", device.Address).Info("bluetooth printer connected")
	return succeeded()
}

// ConnectUSB opens the device chosen by the USB policy and makes it the
// active connection. The endpoint is taken as is; a wrong direction or
// transfer type only shows up when printing.
func (m *Manager) ConnectUSB(ctx context.Context) Outcome {
	if m.usb == nil {
		return failed(ReasonNoUSBDevice, nil)
	}
	devices, err := m.usb.Devices(ctx)
	if err != nil {
		m.log.WithError(err).Warn("enumerate usb devices")
		return failed(ReasonNoUSBDevice, err)
	}
	if len(devices) == 0 {
		return failed(ReasonNoUSBDevice, nil)
	}

	sel, err := m.policy(devices)
	if err != nil {
		m.log.WithError(err).Warn("select usb endpoint")
		return failed(ReasonNoEndpoint, err)
	}

	handle, err := m.usb.Open(ctx, sel.Device)
	if err != nil || handle == nil {
		m.log.WithError(err).Warn("open usb device")
		return failed(ReasonOpenFailed, err)
	}

	m.activate(&USBConnection{Device: sel.Device, Endpoint: sel.Endpoint, Handle: handle})
	m.log.WithFields(logrus.Fields{
		"vendor":   sel.Device.Vendor,
		"product":  sel.Device.Product,
		"endpoint": sel.Endpoint.Address,
	}).Info("usb printer connected")
	return succeeded()
}

// PrintText writes text to the active connection. Bluetooth gets a trailing
// line feed, USB does not.
func (m *Manager) PrintText(ctx context.Context, text string) Outcome {
	switch c := m.conn.(type) {
	case *BluetoothConnection:
		if _, err := c.Sink.Write([]byte(text)); err != nil {
			m.log.WithError(err).Warn("bluetooth write failed")
			return failed(ReasonWriteFailed, err)
		}
		if _, err := c.Sink.Write([]byte{'\n'}); err != nil {
			m.log.WithError(err).Warn("bluetooth write failed")
			return failed(ReasonWriteFailed, err)
		}
		return succeeded()

	case *USBConnection:
		n := c.Handle.BulkTransfer(c.Endpoint, []byte(text), m.timeout)
		if n < 0 {
			err := errors.Errorf("bulk transfer to endpoint %#02x returned %d", c.Endpoint.Address, n)
			m.log.WithError(err).Warn("usb write failed")
			return failed(ReasonTransferFailed, err)
		}
		return succeeded()
	}
	return failed(ReasonNotConnected, ErrNotConnected)
}

// CloseConnection releases the active connection and any displaced ones.
// Release failures are logged and do not stop the rest. It is safe to call
// with nothing open.
func (m *Manager) CloseConnection() Outcome {
	var errs []error
	for _, c := range append([]Connection{m.conn}, m.parked...) {
		if err := c.release(); err != nil {
			m.log.WithError(err).Warn("release connection")
			errs = append(errs, err)
		}
	}
	m.conn = Closed{}
	m.parked = nil
	if len(errs) > 0 {
		return failed(ReasonReleaseFailed, errs[0])
	}
	return succeeded()
}

func (m *Manager) activate(c Connection) {
	if m.conn.Transport() != TransportNone {
		m.parked = append(m.parked, m.conn)
	}
	m.conn = c
}
