package conn

import (
	"io"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// ErrUnknownDriver is returned when no driver is registered under a name.
var ErrUnknownDriver = errors.New("conn: unknown driver")

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

func init() {
	Register("serial", DriverFunc(openSerial))
	Register("tcp", DriverFunc(openTCP))
}

// Driver opens a byte stream to a printer. The meaning of address depends on
// the driver: a tty path for "serial", host:port for "tcp", a Bluetooth MAC
// for "rfcomm".
type Driver interface {
	Open(address string) (io.ReadWriteCloser, error)
}

// Register makes a driver available under name. It panics on a nil driver or
// a duplicate name.
func Register(name string, driver Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if driver == nil {
		panic("conn: Register driver is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("conn: Register called twice for driver " + name)
	}
	drivers[name] = driver
}

// Lookup returns the driver registered under name.
func Lookup(name string) (Driver, error) {
	driversMu.RLock()
	driver, ok := drivers[name]
	driversMu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownDriver, "%q", name)
	}
	return driver, nil
}

// Drivers lists registered driver names in sorted order.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open connection with specific driver backend and address
func Open(name, address string) (io.ReadWriteCloser, error) {
	driver, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return driver.Open(address)
}

// DriverFunc convert function into Driver like http.HandlerFunc
type DriverFunc func(address string) (io.ReadWriteCloser, error)

// Open call itsself as function
func (f DriverFunc) Open(address string) (io.ReadWriteCloser, error) {
	return f(address)
}
