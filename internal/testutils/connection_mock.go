// Package testutils provides a mock net.Conn for exercising the Terrapipe
// codec and connection handler without a real socket.
package testutils

import (
	"bytes"
	"net"
	"strings"
	"time"
)

// ConnectionMock is a mock implementation of net.Conn for testing.
type ConnectionMock struct {
	readBuf      *bytes.Buffer
	writeBuf     *bytes.Buffer
	responseData string // original request/response bytes, kept for cycling
	cycling      bool   // enable automatic response cycling for benchmarks
}

// NewConnectionMock creates a new mock connection preloaded with the
// concatenation of data as the bytes a Read call will return.
func NewConnectionMock(data ...string) *ConnectionMock {
	joined := strings.Join(data, "")
	return &ConnectionMock{
		readBuf:      bytes.NewBufferString(joined),
		writeBuf:     &bytes.Buffer{},
		responseData: joined,
		cycling:      false,
	}
}

// EnableCycling makes Read replay responseData once the read buffer is
// exhausted, instead of returning io.EOF, for benchmarks that need an
// endless stream of well-formed frames.
func (m *ConnectionMock) EnableCycling() {
	m.cycling = true
}

func (m *ConnectionMock) Read(b []byte) (n int, err error) {
	n, err = m.readBuf.Read(b)
	if m.cycling && m.readBuf.Len() == 0 && m.responseData != "" {
		m.readBuf.Reset()
		m.readBuf.WriteString(m.responseData)
	}
	return n, err
}

func (m *ConnectionMock) Write(b []byte) (n int, err error) {
	return m.writeBuf.Write(b)
}

func (m *ConnectionMock) Close() error {
	return nil
}

func (m *ConnectionMock) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func (m *ConnectionMock) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 2003}
}

func (m *ConnectionMock) SetDeadline(t time.Time) error      { return nil }
func (m *ConnectionMock) SetReadDeadline(t time.Time) error  { return nil }
func (m *ConnectionMock) SetWriteDeadline(t time.Time) error { return nil }

// Written returns the raw bytes written to the mock connection so far.
func (m *ConnectionMock) Written() []byte {
	return m.writeBuf.Bytes()
}
