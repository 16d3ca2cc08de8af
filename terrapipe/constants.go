package terrapipe

// Kind identifies which side of the protocol produced a frame.
type Kind byte

const (
	// KindRequest marks a frame sent by a client.
	KindRequest Kind = '*'

	// KindResponse marks a frame sent by the server.
	KindResponse Kind = '!'
)

// LF is the line terminator used by both meta lines. Unlike the legacy
// memcached text protocol, Terrapipe does not use CRLF: lengths are
// explicit, so there is no ambiguity to guard against with a second byte.
const LF = "\n"

// GroupSep separates the integers on MetaLine2.
const GroupSep = '#'

// ResponseCode is the single-byte status carried as the first field of a
// response's first DataGroup.
type ResponseCode byte

const (
	CodeOkay          ResponseCode = 0
	CodeNil           ResponseCode = 1
	CodeOverwrite     ResponseCode = 2
	CodeActionError   ResponseCode = 3
	CodePacketError   ResponseCode = 4
	CodeServerError   ResponseCode = 5
	CodeUnknownAction ResponseCode = 6
)

// String renders a response code the way it would appear in a log line.
func (c ResponseCode) String() string {
	switch c {
	case CodeOkay:
		return "Okay"
	case CodeNil:
		return "Nil"
	case CodeOverwrite:
		return "Overwrite"
	case CodeActionError:
		return "ActionError"
	case CodePacketError:
		return "PacketError"
	case CodeServerError:
		return "ServerError"
	case CodeUnknownAction:
		return "UnknownAction"
	default:
		return "Unknown"
	}
}

// Byte returns the ASCII digit this code is carried as on the wire.
func (c ResponseCode) Byte() byte { return '0' + byte(c) }

// MaxKeyLength is a recommended, not codec-enforced, upper bound on key
// size. The dispatcher, not the codec, is the layer that rejects
// zero-length keys.
const MaxKeyLength = 64 * 1024
