// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package jsonrelay

import (
	"io"
	"net"
	"sync"

	"github.com/pkg/errors"
)

// ErrSendQExceeded is returned when a connection's queued outgoing bytes pass
// the configured cap. The connection gets closed instead of buffering without
// bound.
var ErrSendQExceeded = errors.New("sendq exceeded")

const readChunkSize = 4096

// Socket wraps a network connection with a bounded outgoing byte queue. A
// writer goroutine drains the queue so the relay's decode path never blocks
// on a slow peer.
type Socket struct {
	conn net.Conn

	lock          sync.Mutex
	closed        bool
	queuedBytes   uint64
	maxSendQBytes uint64
	sendQueue     chan []byte

	connCloser sync.Once
}

// NewSocket wraps the given connection. maxSendQBytes of zero means no cap.
func NewSocket(conn net.Conn, maxSendQBytes uint64) *Socket {
	return &Socket{
		conn:          conn,
		maxSendQBytes: maxSendQBytes,
		sendQueue:     make(chan []byte, 128),
	}
}

// RunSocketWriter drains the send queue onto the connection and closes the
// connection once the queue is closed and empty. Run it in its own goroutine.
func (socket *Socket) RunSocketWriter() {
	var writeErr error
	for data := range socket.sendQueue {
		if writeErr == nil {
			_, writeErr = socket.conn.Write(data)
		}
		socket.lock.Lock()
		socket.queuedBytes -= uint64(len(data))
		socket.lock.Unlock()
	}
	socket.closeConn()
}

// Read returns the next chunk of raw bytes from the connection.
func (socket *Socket) Read() ([]byte, error) {
	buf := make([]byte, readChunkSize)
	n, err := socket.conn.Read(buf)
	if n == 0 && err == nil {
		err = io.EOF
	}
	return buf[:n], err
}

// Write queues bytes for egress. It fails once the socket is closing or when
// the queue passes the configured byte cap or runs out of slots, in which
// case the connection is torn down rather than left to buffer forever. It
// never blocks waiting for the writer, so teardown stays reachable behind a
// peer that stopped reading.
func (socket *Socket) Write(data []byte) error {
	socket.lock.Lock()
	if socket.closed {
		socket.lock.Unlock()
		return io.EOF
	}
	socket.queuedBytes += uint64(len(data))
	if socket.maxSendQBytes != 0 && socket.maxSendQBytes < socket.queuedBytes {
		socket.lock.Unlock()
		socket.Close()
		return ErrSendQExceeded
	}
	select {
	case socket.sendQueue <- data:
		socket.lock.Unlock()
		return nil
	default:
		socket.queuedBytes -= uint64(len(data))
		socket.lock.Unlock()
		socket.Close()
		return ErrSendQExceeded
	}
}

// CloseWhenFlushed stops accepting new writes and lets the writer drain what
// is already queued before closing the connection.
func (socket *Socket) CloseWhenFlushed() {
	socket.lock.Lock()
	if !socket.closed {
		socket.closed = true
		close(socket.sendQueue)
	}
	socket.lock.Unlock()
}

// Close tears the connection down immediately. Queued writes are abandoned.
func (socket *Socket) Close() {
	socket.CloseWhenFlushed()
	socket.closeConn()
}

func (socket *Socket) closeConn() {
	socket.connCloser.Do(func() {
		socket.conn.Close()
	})
}
