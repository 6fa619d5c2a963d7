package channel

import (
	"context"
	"encoding/json"
	"net"

	"github.com/ka2n/printbridge"
	"github.com/pkg/errors"
)

// Call sends one command to the bridge listening on path. A structured
// error comes back as *printbridge.CallError, an unknown method as
// printbridge.ErrNotImplemented.
func Call(ctx context.Context, path, method string, args map[string]any) (json.RawMessage, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, errors.Wrap(err, "connect to bridge (is `printbridge serve` running?)")
	}
	defer c.Close()
	if deadline, ok := ctx.Deadline(); ok {
		c.SetDeadline(deadline)
	}

	if err := json.NewEncoder(c).Encode(Request{Method: method, Arguments: args}); err != nil {
		return nil, errors.Wrap(err, "send request")
	}

	var resp Response
	if err := json.NewDecoder(c).Decode(&resp); err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	switch {
	case resp.NotImplemented:
		return nil, printbridge.ErrNotImplemented
	case resp.Error != nil:
		return nil, resp.Error
	}
	return resp.Result, nil
}
