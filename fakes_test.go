package printbridge

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func nullLog() *logrus.Entry {
	logger, _ := test.NewNullLogger()
	return logrus.NewEntry(logger)
}

type fakeAdapter struct {
	denied     bool
	powered    bool
	poweredErr error
	bonded     []BluetoothDevice
	bondedErr  error
	resolved   []string
}

func (a *fakeAdapter) Permitted(context.Context) bool { return !a.denied }

func (a *fakeAdapter) Powered(context.Context) (bool, error) { return a.powered, a.poweredErr }

func (a *fakeAdapter) BondedDevices(context.Context) ([]BluetoothDevice, error) {
	return a.bonded, a.bondedErr
}

func (a *fakeAdapter) RemoteDevice(_ context.Context, address string) (BluetoothDevice, error) {
	a.resolved = append(a.resolved, address)
	if _, err := net.ParseMAC(address); err != nil {
		return BluetoothDevice{}, err
	}
	return BluetoothDevice{Address: strings.ToUpper(address)}, nil
}

type fakeSink struct {
	bytes.Buffer
	writes   int
	writeErr error
	closed   int
	closeErr error
}

func (s *fakeSink) Write(p []byte) (int, error) {
	s.writes++
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	return s.Buffer.Write(p)
}

func (s *fakeSink) Close() error {
	s.closed++
	return s.closeErr
}

type fakeDialer struct {
	sink    *fakeSink
	err     error
	dialed  []BluetoothDevice
	service uuid.UUID
}

func (d *fakeDialer) DialSerial(_ context.Context, dev BluetoothDevice, service uuid.UUID) (io.WriteCloser, error) {
	d.dialed = append(d.dialed, dev)
	d.service = service
	if d.err != nil {
		return nil, d.err
	}
	return d.sink, nil
}

type transfer struct {
	ep      USBEndpoint
	data    []byte
	timeout time.Duration
}

type fakeHandle struct {
	result    int
	transfers []transfer
	closed    int
	closeErr  error
}

func (h *fakeHandle) BulkTransfer(ep USBEndpoint, data []byte, timeout time.Duration) int {
	h.transfers = append(h.transfers, transfer{ep: ep, data: append([]byte(nil), data...), timeout: timeout})
	return h.result
}

func (h *fakeHandle) Close() error {
	h.closed++
	return h.closeErr
}

type fakeHost struct {
	devices []USBDevice
	listErr error
	handle  *fakeHandle
	openErr error
	opened  []USBDevice
}

func (h *fakeHost) Devices(context.Context) ([]USBDevice, error) { return h.devices, h.listErr }

func (h *fakeHost) Open(_ context.Context, dev USBDevice) (USBHandle, error) {
	h.opened = append(h.opened, dev)
	if h.openErr != nil {
		return nil, h.openErr
	}
	return h.handle, nil
}

var errIO = errors.New("broken pipe")

func printerDevice(bus int) USBDevice {
	return USBDevice{
		Bus:     bus,
		Address: 4,
		Vendor:  0x0416,
		Product: 0x5011,
		Interfaces: []USBInterface{{
			Number: 0,
			Endpoints: []USBEndpoint{
				{Interface: 0, Address: 0x01, Number: 1, Transfer: "bulk"},
				{Interface: 0, Address: 0x82, Number: 2, In: true, Transfer: "bulk"},
			},
		}},
	}
}
