package terrapipe

import (
	"errors"
	"fmt"
)

// ProtocolError indicates a malformed frame: a bad classifier byte, an
// unparseable or negative declared integer, a sum of field lengths that
// doesn't match the declared payload length, or a zero group/field count
// on a request. The connection must be closed after sending a
// PacketError response if one can still be sent.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("terrapipe: protocol error: %s", e.Reason)
}

// ShouldCloseConnection reports that protocol errors always end the
// connection: framing state is undefined once a frame fails to parse.
func (e *ProtocolError) ShouldCloseConnection() bool { return true }

// ErrConnectionReset indicates the peer closed the connection in the
// middle of a frame (as opposed to cleanly between frames).
var ErrConnectionReset = errors.New("terrapipe: connection reset mid-frame")

// ErrClosed indicates the stream ended cleanly between frames: not an
// error condition, just "no more requests".
var ErrClosed = errors.New("terrapipe: stream closed")
