package conn

import (
	"io"
	"net"

	"github.com/goburrow/serial"
	"github.com/pkg/errors"
)

// SerialBaudRate is used for every tty opened by the serial driver. Bound
// RFCOMM ttys ignore it, USB-serial bridges on receipt printers expect it.
const SerialBaudRate = 115200

// openSerial for generic serial connection, including /dev/rfcommN nodes
// bound with `rfcomm bind`.
func openSerial(address string) (io.ReadWriteCloser, error) {
	port, err := serial.Open(&serial.Config{
		Address:  address,
		BaudRate: SerialBaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open serial %s", address)
	}
	return port, nil
}

func openTCP(address string) (io.ReadWriteCloser, error) {
	c, err := net.Dial("tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "dial tcp %s", address)
	}
	return c, nil
}
