package printbridge

import "github.com/pkg/errors"

// USBSelection is the device, interface and endpoint a USB connection uses.
type USBSelection struct {
	Device    USBDevice
	Interface USBInterface
	Endpoint  USBEndpoint
}

// USBPolicy chooses what to connect to among the attached devices. devices
// is never empty.
type USBPolicy func(devices []USBDevice) (USBSelection, error)

// FirstMatch takes the first device in enumeration order, its first
// interface and that interface's first endpoint. It does not look at vendor
// or product IDs and does not check that the endpoint is bulk OUT.
func FirstMatch(devices []USBDevice) (USBSelection, error) {
	dev := devices[0]
	if len(dev.Interfaces) == 0 {
		return USBSelection{}, errors.Errorf("usb %04x:%04x has no interfaces", dev.Vendor, dev.Product)
	}
	intf := dev.Interfaces[0]
	if len(intf.Endpoints) == 0 {
		return USBSelection{}, errors.Errorf("usb %04x:%04x interface %d has no endpoints", dev.Vendor, dev.Product, intf.Number)
	}
	return USBSelection{Device: dev, Interface: intf, Endpoint: intf.Endpoints[0]}, nil
}
