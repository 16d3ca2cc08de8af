// Package terrapipe implements the Terrapipe wire protocol: a
// length-prefixed, pipelined binary framing used between TDB clients and
// the TDB server.
//
// Frame layout:
//
//	<classifier><payload-length>\n
//	<group-count>#<g1-field-count>#<g1-f1-len>#<g1-f2-len>#...\n
//	<payload bytes, fields concatenated in order>
//
// The classifier is '*' for a client request and '!' for a server response.
// Fields are binary-safe; lengths in the second line tell a reader where
// each one ends, so a field may contain anything including newlines.
package terrapipe
