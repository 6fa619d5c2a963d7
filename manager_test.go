package printbridge

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const printerMAC = "00:11:22:33:44:55"

func newTestManager(a Adapter, d Dialer, h USBHost) *Manager {
	return NewManager(Options{Adapter: a, Dialer: d, USBHost: h, Logger: nullLog()})
}

func connectedBluetooth(t *testing.T) (*Manager, *fakeSink) {
	t.Helper()
	sink := &fakeSink{}
	m := newTestManager(&fakeAdapter{powered: true}, &fakeDialer{sink: sink}, nil)
	require.True(t, m.ConnectBluetooth(context.Background(), printerMAC).OK())
	return m, sink
}

func connectedUSB(t *testing.T, result int) (*Manager, *fakeHandle) {
	t.Helper()
	handle := &fakeHandle{result: result}
	m := newTestManager(nil, nil, &fakeHost{devices: []USBDevice{printerDevice(1)}, handle: handle})
	require.True(t, m.ConnectUSB(context.Background()).OK())
	return m, handle
}

func TestPairedBluetoothDevices(t *testing.T) {
	a := &fakeAdapter{bonded: []BluetoothDevice{
		{Name: "RPP02N", Address: "AA:AA:AA:AA:AA:AA"},
		{Name: "", Address: "BB:BB:BB:BB:BB:BB"},
	}}
	m := newTestManager(a, nil, nil)

	devices, out := m.PairedBluetoothDevices(context.Background())
	assert.True(t, out.OK())
	assert.Equal(t, []BluetoothDevice{
		{Name: "RPP02N", Address: "AA:AA:AA:AA:AA:AA"},
		{Name: UnknownDeviceName, Address: "BB:BB:BB:BB:BB:BB"},
	}, devices)
	for _, d := range devices {
		assert.NotEmpty(t, d.Name)
	}
}

func TestPairedBluetoothDevicesEmpty(t *testing.T) {
	tests := []struct {
		name    string
		adapter Adapter
		reason  Reason
	}{
		{"no adapter", nil, ReasonNoAdapter},
		{"permission denied", &fakeAdapter{denied: true, bonded: []BluetoothDevice{{Name: "x", Address: "y"}}}, ReasonPermissionDenied},
		{"enumeration fails", &fakeAdapter{bondedErr: errIO}, ReasonNoAdapter},
		{"nothing paired", &fakeAdapter{}, ReasonOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(tt.adapter, nil, nil)
			devices, out := m.PairedBluetoothDevices(context.Background())
			assert.NotNil(t, devices)
			assert.Empty(t, devices)
			assert.Equal(t, tt.reason, out.Reason)
		})
	}
}

func TestConnectBluetoothWithoutAdapter(t *testing.T) {
	tests := []struct {
		name    string
		adapter *fakeAdapter
		reason  Reason
	}{
		{"no adapter", nil, ReasonNoAdapter},
		{"adapter off", &fakeAdapter{powered: false}, ReasonAdapterDisabled},
		{"adapter error", &fakeAdapter{powered: true, poweredErr: errIO}, ReasonAdapterDisabled},
	}
	for _, tt := range tests {
		for _, address := range []string{printerMAC, "garbage", ""} {
			t.Run(tt.name+"/"+address, func(t *testing.T) {
				dialer := &fakeDialer{sink: &fakeSink{}}
				var a Adapter
				if tt.adapter != nil {
					a = tt.adapter
				}
				m := newTestManager(a, dialer, nil)

				out := m.ConnectBluetooth(context.Background(), address)
				assert.False(t, out.OK())
				assert.Equal(t, tt.reason, out.Reason)
				assert.Empty(t, dialer.dialed)
				if tt.adapter != nil {
					assert.Empty(t, tt.adapter.resolved)
				}
				assert.Equal(t, TransportNone, m.Active().Transport())
			})
		}
	}
}

func TestConnectBluetooth(t *testing.T) {
	sink := &fakeSink{}
	dialer := &fakeDialer{sink: sink}
	m := newTestManager(&fakeAdapter{powered: true}, dialer, nil)

	out := m.ConnectBluetooth(context.Background(), "aa:bb:cc:dd:ee:ff")
	require.True(t, out.OK())
	require.Len(t, dialer.dialed, 1)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", dialer.dialed[0].Address)
	assert.Equal(t, SerialPortUUID, dialer.service)
	assert.Equal(t, "00001101-0000-1000-8000-00805f9b34fb", SerialPortUUID.String())

	c, ok := m.Active().(*BluetoothConnection)
	require.True(t, ok)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", c.Address)
}

func TestConnectBluetoothInvalidAddress(t *testing.T) {
	dialer := &fakeDialer{sink: &fakeSink{}}
	m := newTestManager(&fakeAdapter{powered: true}, dialer, nil)

	out := m.ConnectBluetooth(context.Background(), "not-a-mac")
	assert.Equal(t, ReasonInvalidAddress, out.Reason)
	assert.Empty(t, dialer.dialed)
}

func TestConnectBluetoothFailureClosesEverything(t *testing.T) {
	handle := &fakeHandle{}
	dialer := &fakeDialer{err: errIO}
	m := newTestManager(&fakeAdapter{powered: true}, dialer, &fakeHost{devices: []USBDevice{printerDevice(1)}, handle: handle})
	require.True(t, m.ConnectUSB(context.Background()).OK())

	out := m.ConnectBluetooth(context.Background(), printerMAC)
	assert.Equal(t, ReasonConnectFailed, out.Reason)
	assert.True(t, errors.Is(out.Err, errIO))
	assert.Equal(t, 1, handle.closed)
	assert.Equal(t, TransportNone, m.Active().Transport())
}

func TestConnectUSBNoDevices(t *testing.T) {
	tests := []struct {
		name string
		host USBHost
	}{
		{"no host", nil},
		{"empty", &fakeHost{}},
		{"enumeration fails", &fakeHost{listErr: errIO, devices: []USBDevice{printerDevice(1)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(nil, nil, tt.host)
			out := m.ConnectUSB(context.Background())
			assert.Equal(t, ReasonNoUSBDevice, out.Reason)
			assert.Equal(t, TransportNone, m.Active().Transport())
		})
	}
}

func TestConnectUSBPicksFirstDevice(t *testing.T) {
	host := &fakeHost{devices: []USBDevice{printerDevice(3), printerDevice(1)}, handle: &fakeHandle{}}
	m := newTestManager(nil, nil, host)

	require.True(t, m.ConnectUSB(context.Background()).OK())
	require.Len(t, host.opened, 1)
	assert.Equal(t, 3, host.opened[0].Bus)

	c, ok := m.Active().(*USBConnection)
	require.True(t, ok)
	assert.Equal(t, uint8(0x01), c.Endpoint.Address)
}

func TestConnectUSBOpenFails(t *testing.T) {
	m := newTestManager(nil, nil, &fakeHost{devices: []USBDevice{printerDevice(1)}, openErr: errIO})
	out := m.ConnectUSB(context.Background())
	assert.Equal(t, ReasonOpenFailed, out.Reason)
	assert.Equal(t, TransportNone, m.Active().Transport())
}

func TestConnectUSBNoEndpoint(t *testing.T) {
	dev := printerDevice(1)
	dev.Interfaces = nil
	host := &fakeHost{devices: []USBDevice{dev}, handle: &fakeHandle{}}
	m := newTestManager(nil, nil, host)

	out := m.ConnectUSB(context.Background())
	assert.Equal(t, ReasonNoEndpoint, out.Reason)
	assert.Empty(t, host.opened)
}

func TestConnectUSBCustomPolicy(t *testing.T) {
	host := &fakeHost{devices: []USBDevice{printerDevice(1)}, handle: &fakeHandle{}}
	m := NewManager(Options{
		USBHost: host,
		Logger:  nullLog(),
		USBPolicy: func(devices []USBDevice) (USBSelection, error) {
			d := devices[0]
			return USBSelection{Device: d, Interface: d.Interfaces[0], Endpoint: d.Interfaces[0].Endpoints[1]}, nil
		},
	})
	require.True(t, m.ConnectUSB(context.Background()).OK())
	assert.Equal(t, uint8(0x82), m.Active().(*USBConnection).Endpoint.Address)
}

func TestPrintTextNotConnected(t *testing.T) {
	m := newTestManager(nil, nil, nil)
	for i := 0; i < 2; i++ {
		out := m.PrintText(context.Background(), "A")
		assert.False(t, out.OK())
		assert.Equal(t, ReasonNotConnected, out.Reason)
		assert.True(t, errors.Is(out.Err, ErrNotConnected))
	}
}

func TestPrintTextBluetooth(t *testing.T) {
	m, sink := connectedBluetooth(t)

	require.True(t, m.PrintText(context.Background(), "A").OK())
	assert.Equal(t, []byte{0x41, 0x0A}, sink.Bytes())
}

func TestPrintTextBluetoothWriteFails(t *testing.T) {
	m, sink := connectedBluetooth(t)
	sink.writeErr = errIO

	out := m.PrintText(context.Background(), "A")
	assert.Equal(t, ReasonWriteFailed, out.Reason)
	assert.Equal(t, TransportBluetooth, m.Active().Transport())
}

func TestPrintTextUSB(t *testing.T) {
	tests := []struct {
		result int
		ok     bool
	}{
		{-1, false},
		{0, true},
		{1, true},
	}
	for _, tt := range tests {
		m, handle := connectedUSB(t, tt.result)

		out := m.PrintText(context.Background(), "A")
		assert.Equal(t, tt.ok, out.OK(), "result %d", tt.result)
		require.Len(t, handle.transfers, 1)
		assert.Equal(t, []byte{0x41}, handle.transfers[0].data)
		assert.Equal(t, DefaultUSBTimeout, handle.transfers[0].timeout)
		assert.Equal(t, uint8(0x01), handle.transfers[0].ep.Address)
	}
}

func TestLastConnectWins(t *testing.T) {
	sink := &fakeSink{}
	handle := &fakeHandle{}
	m := newTestManager(
		&fakeAdapter{powered: true},
		&fakeDialer{sink: sink},
		&fakeHost{devices: []USBDevice{printerDevice(1)}, handle: handle},
	)

	require.True(t, m.ConnectBluetooth(context.Background(), printerMAC).OK())
	require.True(t, m.ConnectUSB(context.Background()).OK())
	assert.Equal(t, TransportUSB, m.Active().Transport())
	assert.Zero(t, sink.closed, "displaced connection is not closed on connect")

	require.True(t, m.PrintText(context.Background(), "A").OK())
	assert.Empty(t, sink.Bytes())
	assert.Len(t, handle.transfers, 1)

	assert.True(t, m.CloseConnection().OK())
	assert.Equal(t, 1, sink.closed)
	assert.Equal(t, 1, handle.closed)
}

func TestCloseConnection(t *testing.T) {
	m, sink := connectedBluetooth(t)

	for i := 0; i < 3; i++ {
		assert.True(t, m.CloseConnection().OK())
	}
	assert.Equal(t, 1, sink.closed)
	assert.Equal(t, TransportNone, m.Active().Transport())
	assert.False(t, m.PrintText(context.Background(), "A").OK())
}

func TestCloseConnectionContinuesPastFailures(t *testing.T) {
	sink := &fakeSink{closeErr: errIO}
	handle := &fakeHandle{}
	m := newTestManager(
		&fakeAdapter{powered: true},
		&fakeDialer{sink: sink},
		&fakeHost{devices: []USBDevice{printerDevice(1)}, handle: handle},
	)
	require.True(t, m.ConnectBluetooth(context.Background(), printerMAC).OK())
	require.True(t, m.ConnectUSB(context.Background()).OK())

	out := m.CloseConnection()
	assert.Equal(t, ReasonReleaseFailed, out.Reason)
	assert.True(t, errors.Is(out.Err, errIO))
	assert.Equal(t, 1, sink.closed)
	assert.Equal(t, 1, handle.closed)
	assert.Equal(t, TransportNone, m.Active().Transport())
}

func TestNewManagerDefaults(t *testing.T) {
	m := NewManager(Options{})
	assert.Equal(t, DefaultUSBTimeout, m.timeout)
	assert.NotNil(t, m.policy)
	assert.NotNil(t, m.log)
	assert.Equal(t, Closed{}, m.Active())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "ok", succeeded().String())
	assert.Equal(t, "connect failed: broken pipe", failed(ReasonConnectFailed, errIO).String())
	assert.Equal(t, "Reason: 99", Reason(99).String())
	assert.Equal(t, "usb", TransportUSB.String())
}
