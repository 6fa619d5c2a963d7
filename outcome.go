package printbridge

import "fmt"

// Reason names why a Manager operation ended the way it did.
type Reason int

const (
	ReasonOK Reason = iota
	ReasonNoAdapter
	ReasonAdapterDisabled
	ReasonPermissionDenied
	ReasonInvalidAddress
	ReasonConnectFailed
	ReasonNoUSBDevice
	ReasonNoEndpoint
	ReasonOpenFailed
	ReasonNotConnected
	ReasonWriteFailed
	ReasonTransferFailed
	ReasonReleaseFailed
)

func (r Reason) String() string {
	switch r {
	case ReasonOK:
		return "ok"
	case ReasonNoAdapter:
		return "no bluetooth adapter"
	case ReasonAdapterDisabled:
		return "bluetooth adapter disabled"
	case ReasonPermissionDenied:
		return "bluetooth permission denied"
	case ReasonInvalidAddress:
		return "invalid device address"
	case ReasonConnectFailed:
		return "connect failed"
	case ReasonNoUSBDevice:
		return "no usb device"
	case ReasonNoEndpoint:
		return "no usb endpoint"
	case ReasonOpenFailed:
		return "usb open failed"
	case ReasonNotConnected:
		return "not connected"
	case ReasonWriteFailed:
		return "write failed"
	case ReasonTransferFailed:
		return "bulk transfer failed"
	case ReasonReleaseFailed:
		return "release failed"
	}
	return fmt.Sprintf("Reason: %d", int(r))
}

// Outcome is the result of a Manager operation. Callers on the command
// channel only see OK(); Reason and Err stay available to Go callers.
type Outcome struct {
	Reason Reason
	Err    error
}

// OK reports success.
func (o Outcome) OK() bool {
	return o.Reason == ReasonOK
}

func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s: %v", o.Reason, o.Err)
	}
	return o.Reason.String()
}

func succeeded() Outcome {
	return Outcome{Reason: ReasonOK}
}

func failed(r Reason, err error) Outcome {
	return Outcome{Reason: r, Err: err}
}
