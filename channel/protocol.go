// Package channel carries commands between an application and a
// printbridge.Dispatcher: one JSON request and one JSON response per unix
// socket connection.
package channel

import (
	"encoding/json"

	"github.com/ka2n/printbridge"
)

// CodeBadRequest marks a request that could not be decoded.
const CodeBadRequest = "BAD_REQUEST"

// Request is sent from the application to the bridge.
type Request struct {
	Method    string         `json:"method"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Response is sent back. Exactly one of Result, Error and NotImplemented is
// set.
type Response struct {
	Result         json.RawMessage        `json:"result,omitempty"`
	Error          *printbridge.CallError `json:"error,omitempty"`
	NotImplemented bool                   `json:"notImplemented,omitempty"`
}
