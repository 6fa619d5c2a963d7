package printbridge

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Command names understood by Dispatcher.
const (
	MethodGetPairedBluetoothDevices = "getPairedBluetoothDevices"
	MethodConnectBluetoothPrinter   = "connectBluetoothPrinter"
	MethodConnectUSBPrinter         = "connectUsbPrinter"
	MethodPrintText                 = "printText"
	MethodCloseConnection           = "closeConnection"
)

// CodeInvalidArgument marks a command with a missing required argument.
const CodeInvalidArgument = "INVALID_ARGUMENT"

// ErrNotImplemented is returned for a command name Dispatcher does not know.
var ErrNotImplemented = errors.New("not implemented")

// CallError is a structured error returned to the caller of a command.
type CallError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Dispatcher turns named commands into Manager calls.
type Dispatcher struct {
	Manager *Manager
	Logger  *logrus.Entry
}

// NewDispatcher returns a Dispatcher bound to m.
func NewDispatcher(m *Manager, log *logrus.Entry) *Dispatcher {
	if log == nil {
		log = logrus.WithField("component", "dispatcher")
	}
	return &Dispatcher{Manager: m, Logger: log}
}

// Dispatch runs one command. The payload is a bool or a []BluetoothDevice.
// The error is a *CallError or ErrNotImplemented.
func (d *Dispatcher) Dispatch(ctx context.Context, method string, args map[string]any) (any, error) {
	d.Logger.WithField("method", method).Debug("dispatch")

	switch method {
	case MethodGetPairedBluetoothDevices:
		devices, _ := d.Manager.PairedBluetoothDevices(ctx)
		return devices, nil

	case MethodConnectBluetoothPrinter:
		address, ok := stringArg(args, "address")
		if !ok {
			return nil, &CallError{Code: CodeInvalidArgument, Message: "Address required"}
		}
		return d.Manager.ConnectBluetooth(ctx, address).OK(), nil

	case MethodConnectUSBPrinter:
		return d.Manager.ConnectUSB(ctx).OK(), nil

	case MethodPrintText:
		text, ok := stringArg(args, "text")
		if !ok {
			return nil, &CallError{Code: CodeInvalidArgument, Message: "Text required"}
		}
		return d.Manager.PrintText(ctx, text).OK(), nil

	case MethodCloseConnection:
		d.Manager.CloseConnection()
		return true, nil
	}
	return nil, ErrNotImplemented
}

// stringArg treats a present non-string value like a missing one.
func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
