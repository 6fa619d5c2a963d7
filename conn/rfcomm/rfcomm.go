// Package rfcomm registers the "rfcomm" conn driver, a raw Bluetooth RFCOMM
// stream socket.
//
// Addresses have the form "AA:BB:CC:DD:EE:FF" or "AA:BB:CC:DD:EE:FF/3", the
// suffix selecting the RFCOMM channel. Channel 1 is used when it is omitted;
// most serial-profile printers listen there.
package rfcomm

import (
	"net"
	"strconv"
	"strings"

	"github.com/ka2n/printbridge/conn"
	"github.com/pkg/errors"
)

// DefaultChannel is the RFCOMM channel used when the address has none.
const DefaultChannel = 1

func init() {
	conn.Register("rfcomm", conn.DriverFunc(Open))
}

// Address formats a driver address for mac and channel.
func Address(mac string, channel int) string {
	if channel <= 0 {
		return mac
	}
	return mac + "/" + strconv.Itoa(channel)
}

// ParseAddress splits a driver address into the kernel byte order of the
// device address and the channel.
func ParseAddress(address string) ([6]byte, uint8, error) {
	var ba [6]byte
	mac, ch, hasChannel := strings.Cut(address, "/")

	hw, err := net.ParseMAC(mac)
	if err != nil {
		return ba, 0, errors.Wrapf(err, "rfcomm address %q", address)
	}
	if len(hw) != 6 {
		return ba, 0, errors.Errorf("rfcomm address %q: not a 48-bit address", address)
	}
	// BD_ADDR is stored little endian.
	for i := 0; i < 6; i++ {
		ba[i] = hw[5-i]
	}

	channel := DefaultChannel
	if hasChannel {
		channel, err = strconv.Atoi(ch)
		if err != nil || channel < 1 || channel > 30 {
			return ba, 0, errors.Errorf("rfcomm address %q: channel must be 1-30", address)
		}
	}
	return ba, uint8(channel), nil
}
