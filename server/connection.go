package server

import (
	"context"
	"errors"
	"log"
	"net"
	"time"

	"github.com/terrabasedb/tdb/dispatch"
	"github.com/terrabasedb/tdb/metrics"
	"github.com/terrabasedb/tdb/terrapipe"
)

// connection runs one client's read -> parse -> dispatch -> write loop,
// pairing a net.Conn with buffered I/O. Whether an error ends the
// connection is driven by terrapipe's own error taxonomy
// (*ProtocolError, ErrConnectionReset, ErrClosed).
//
// Pipelining is a reader goroutine and a writer goroutine joined by a
// buffered channel: the reader decodes and dispatches requests strictly in
// arrival order and hands each response to respCh; the single writer
// goroutine drains respCh and encodes in the order it receives, so a
// response can never jump ahead of one decoded earlier even though
// dispatch for the next request can start before the current response has
// finished writing.
type connection struct {
	nc  net.Conn
	dec *terrapipe.Decoder
	enc *terrapipe.Encoder
	d   *dispatch.Dispatcher
	m   *metrics.Metrics
}

func newConnection(nc net.Conn, d *dispatch.Dispatcher, m *metrics.Metrics) *connection {
	return &connection{
		nc:  nc,
		dec: terrapipe.NewDecoder(nc),
		enc: terrapipe.NewEncoder(nc),
		d:   d,
		m:   m,
	}
}

// respQueueDepth bounds how many dispatched responses can be waiting on a
// connection's writer goroutine before the reader blocks handing off the
// next one.
const respQueueDepth = 16

// serve runs until the peer closes, a protocol error ends things, or ctx is
// cancelled by a graceful shutdown signal. On shutdown it stops reading new
// requests but lets a request already parsed finish its response before the
// connection closes.
func (c *connection) serve(ctx context.Context) {
	defer c.nc.Close()

	// Decode blocks on the socket; the only way to make it observe ctx
	// cancellation is to give the blocked read a deadline it can fail on.
	unblock := make(chan struct{})
	defer close(unblock)
	go func() {
		select {
		case <-ctx.Done():
			c.nc.SetReadDeadline(time.Now())
		case <-unblock:
		}
	}()

	respCh := make(chan *terrapipe.Frame, respQueueDepth)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop(respCh)
	}()

	c.readLoop(ctx, respCh, writerDone)
	close(respCh)
	<-writerDone
}

// readLoop decodes and dispatches requests in arrival order, handing each
// response to respCh for the writer goroutine. It stops at its next
// hand-off once the writer goroutine has exited, so a write failure unwinds
// the reader instead of blocking it on a channel nobody drains anymore.
func (c *connection) readLoop(ctx context.Context, respCh chan<- *terrapipe.Frame, writerDone <-chan struct{}) {
	for {
		req, err := c.dec.Decode()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.handleDecodeErr(err, respCh, writerDone)
			return
		}

		resp := c.d.Dispatch(req)
		terrapipe.PutFrame(req)

		select {
		case respCh <- resp:
		case <-writerDone:
			terrapipe.PutFrame(resp)
			return
		}
	}
}

// writeLoop encodes every response handed to it over respCh, in the order
// received, until respCh is closed or an encode fails.
func (c *connection) writeLoop(respCh <-chan *terrapipe.Frame) {
	for resp := range respCh {
		err := c.enc.Encode(resp)
		terrapipe.PutFrame(resp)
		if err != nil {
			return
		}
	}
}

func (c *connection) handleDecodeErr(err error, respCh chan<- *terrapipe.Frame, writerDone <-chan struct{}) {
	if errors.Is(err, terrapipe.ErrClosed) || errors.Is(err, terrapipe.ErrConnectionReset) {
		return
	}

	var perr *terrapipe.ProtocolError
	if errors.As(err, &perr) {
		select {
		case respCh <- terrapipe.NewResponse(terrapipe.CodePacketError):
		case <-writerDone:
		}
		return
	}

	log.Printf("server: connection error: %v", err)
}
