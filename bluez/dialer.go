package bluez

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/ka2n/printbridge"
	"github.com/ka2n/printbridge/conn"
	"github.com/ka2n/printbridge/conn/rfcomm"
	"github.com/sirupsen/logrus"
)

// Dialer opens serial-profile streams. A device with an entry in Ports is
// opened as that serial node, or through the named driver when the entry
// has the form driver://address (tcp://host:9100 for a networked bridge).
// Anything else is opened over a raw RFCOMM socket on Channel.
type Dialer struct {
	Channel int
	Ports   map[string]string
	// Adapter, when set, is asked whether the device advertises the service.
	// A device that does not is still dialed.
	Adapter *Adapter
	Log     *logrus.Entry
}

// DialSerial implements printbridge.Dialer.
func (d *Dialer) DialSerial(ctx context.Context, device printbridge.BluetoothDevice, service uuid.UUID) (io.WriteCloser, error) {
	log := d.Log
	if log == nil {
		log = logrus.WithField("component", "dialer")
	}
	log = log.WithField("address", device.Address)

	if port, ok := d.port(device.Address); ok {
		driver, addr := route(port)
		log.WithField("port", port).Debugf("opening %s port", driver)
		return conn.Open(driver, addr)
	}

	if d.Adapter != nil && !d.Adapter.Advertises(ctx, device.Address, service) {
		log.WithField("service", service).Warn("device does not advertise service")
	}
	log.WithField("channel", d.Channel).Debug("opening rfcomm socket")
	return conn.Open("rfcomm", rfcomm.Address(device.Address, d.Channel))
}

func (d *Dialer) port(address string) (string, bool) {
	for mac, port := range d.Ports {
		if strings.EqualFold(mac, address) {
			return port, true
		}
	}
	return "", false
}

func route(port string) (driver, address string) {
	if i := strings.Index(port, "://"); i > 0 {
		return port[:i], port[i+3:]
	}
	return "serial", port
}
