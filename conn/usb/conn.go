// Package usb is the libusb backed USB host of the bridge.
package usb

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/gousb"
	"github.com/ka2n/printbridge"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Host enumerates and opens devices through one libusb context.
type Host struct {
	ctx *gousb.Context
	Log *logrus.Entry
}

// NewHost initializes libusb. debug is the libusb log level, 0 to 4.
func NewHost(debug int) *Host {
	ctx := gousb.NewContext()
	ctx.Debug(debug)
	return &Host{ctx: ctx}
}

// Close releases the libusb context. Open handles must be closed first.
func (h *Host) Close() error {
	return h.ctx.Close()
}

// Devices lists attached devices in libusb enumeration order without
// opening any of them. Hubs are left out.
func (h *Host) Devices(ctx context.Context) ([]printbridge.USBDevice, error) {
	var devices []printbridge.USBDevice
	_, err := h.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if attached(desc) {
			devices = append(devices, describe(desc))
		}
		return false
	})
	if err != nil {
		return nil, errors.Wrap(err, "enumerate usb devices")
	}
	return devices, nil
}

// attached reports whether desc is a device rather than a hub, including
// the root hubs of host controllers.
func attached(desc *gousb.DeviceDesc) bool {
	return desc.Class != gousb.ClassHub
}

// Open opens dev. The device's kernel driver is detached while an interface
// is claimed.
func (h *Host) Open(ctx context.Context, dev printbridge.USBDevice) (printbridge.USBHandle, error) {
	devs, err := h.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Bus == dev.Bus && desc.Address == dev.Address
	})
	if len(devs) == 0 {
		if err == nil {
			err = errors.New("USB device not found")
		}
		return nil, errors.Wrapf(err, "open usb %03d:%03d", dev.Bus, dev.Address)
	}
	for _, extra := range devs[1:] {
		extra.Close()
	}
	d := devs[0]

	if err := d.SetAutoDetach(true); err != nil {
		d.Close()
		return nil, errors.Wrap(err, "set auto detach kernel driver")
	}

	log := h.Log
	if log == nil {
		log = logrus.WithField("component", "usb")
	}
	return &Handle{
		dev:   d,
		claim: claimOut(d, dev.Config),
		log:   log.WithField("device", fmt.Sprintf("%03d:%03d", dev.Bus, dev.Address)),
	}, nil
}

type outEndpoint interface {
	WriteContext(ctx context.Context, buf []byte) (int, error)
}

// claimFunc claims interface intf and returns its OUT endpoint epNum with a
// func that releases the claim.
type claimFunc func(intf, epNum int) (outEndpoint, func(), error)

func claimOut(d *gousb.Device, config int) claimFunc {
	return func(number, epNum int) (outEndpoint, func(), error) {
		cfg, err := d.Config(config)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "set config %d", config)
		}
		intf, err := cfg.Interface(number, 0)
		if err != nil {
			cfg.Close()
			return nil, nil, errors.Wrapf(err, "claim interface %d", number)
		}
		release := func() {
			intf.Close()
			cfg.Close()
		}
		out, err := intf.OutEndpoint(epNum)
		if err != nil {
			release()
			return nil, nil, errors.Wrapf(err, "out endpoint %d", epNum)
		}
		return out, release, nil
	}
}

// Handle is an open device. The interface holding the endpoint is claimed
// only for the duration of a transfer, so another handle to the same device
// can write once this one is idle.
type Handle struct {
	mu    sync.Mutex
	dev   *gousb.Device
	claim claimFunc
	log   *logrus.Entry
}

// BulkTransfer writes data to ep within timeout. It returns the number of
// bytes written, or -1 if the endpoint cannot be used or the write fails.
func (h *Handle) BulkTransfer(ep printbridge.USBEndpoint, data []byte, timeout time.Duration) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.claim == nil {
		h.fail(errors.New("usb handle closed"))
		return -1
	}
	out, release, err := h.claim(ep.Interface, ep.Number)
	if err != nil {
		h.fail(err)
		return -1
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	n, err := out.WriteContext(ctx, data)
	if err != nil {
		h.fail(errors.Wrapf(err, "bulk write to endpoint %#02x", ep.Address))
		return -1
	}
	return n
}

func (h *Handle) fail(err error) {
	log := h.log
	if log == nil {
		log = logrus.WithField("component", "usb")
	}
	log.WithError(err).Debug("bulk transfer failed")
}

// Close releases the device.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.claim == nil {
		return nil
	}
	h.claim = nil
	if h.dev == nil {
		return nil
	}
	err := h.dev.Close()
	h.dev = nil
	return errors.Wrap(err, "close usb device")
}

// describe flattens the lowest numbered configuration of desc. Endpoints of
// the first alternate setting are ordered by address.
func describe(desc *gousb.DeviceDesc) printbridge.USBDevice {
	dev := printbridge.USBDevice{
		Bus:     desc.Bus,
		Address: desc.Address,
		Vendor:  uint16(desc.Vendor),
		Product: uint16(desc.Product),
	}

	cfgNums := make([]int, 0, len(desc.Configs))
	for n := range desc.Configs {
		cfgNums = append(cfgNums, n)
	}
	if len(cfgNums) == 0 {
		return dev
	}
	sort.Ints(cfgNums)
	cfg := desc.Configs[cfgNums[0]]
	dev.Config = cfg.Number

	for _, id := range cfg.Interfaces {
		intf := printbridge.USBInterface{Number: id.Number}
		if len(id.AltSettings) > 0 {
			intf.Endpoints = endpoints(id.Number, id.AltSettings[0])
		}
		dev.Interfaces = append(dev.Interfaces, intf)
	}
	return dev
}

func endpoints(intfNum int, s gousb.InterfaceSetting) []printbridge.USBEndpoint {
	addrs := make([]int, 0, len(s.Endpoints))
	for addr := range s.Endpoints {
		addrs = append(addrs, int(addr))
	}
	sort.Ints(addrs)

	eps := make([]printbridge.USBEndpoint, 0, len(addrs))
	for _, addr := range addrs {
		ed := s.Endpoints[gousb.EndpointAddress(addr)]
		eps = append(eps, printbridge.USBEndpoint{
			Interface: intfNum,
			Address:   uint8(ed.Address),
			Number:    ed.Number,
			In:        ed.Direction == gousb.EndpointDirectionIn,
			Transfer:  ed.TransferType.String(),
		})
	}
	return eps
}
