// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package jsonrelay

import (
	"fmt"
)

// DecodeError indicates that a connection sent bytes the active receive codec
// could not turn into a message. The connection that produced it is closed
// rather than letting malformed input flow through the relay.
type DecodeError struct {
	Format Format
	Reason string
	Cause  error
}

func (err *DecodeError) Error() string {
	if err.Cause != nil {
		return fmt.Sprintf("decoding %s data: %s: %s", err.Format, err.Reason, err.Cause.Error())
	}
	return fmt.Sprintf("decoding %s data: %s", err.Format, err.Reason)
}

func (err *DecodeError) Unwrap() error {
	return err.Cause
}

// EncodeError indicates that a message violated the active send codec's
// assumptions. It is fatal to the connection, which is closed rather than
// emitting corrupt bytes.
type EncodeError struct {
	Format Format
	Reason string
}

func (err *EncodeError) Error() string {
	return fmt.Sprintf("encoding %s data: %s", err.Format, err.Reason)
}
