// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package jsonrelay

import (
	"bufio"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocketWriteAndFlushClose(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	socket := NewSocket(local, 0)
	go socket.RunSocketWriter()

	require.NoError(t, socket.Write([]byte("PING 1\r\n")))
	require.NoError(t, socket.Write([]byte("PING 2\r\n")))
	socket.CloseWhenFlushed()

	// queued writes drain before the connection closes
	reader := bufio.NewReader(remote)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "PING 1\r\n", line)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "PING 2\r\n", line)

	_, err = reader.ReadByte()
	assert.Equal(t, io.EOF, err)

	assert.Equal(t, io.EOF, socket.Write([]byte("late\r\n")), "writes after close fail")
}

func TestSocketSendQExceeded(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	// no writer running and no reader on the remote end, so everything
	// queues; a tiny cap trips immediately
	socket := NewSocket(local, 16)
	require.NoError(t, socket.Write([]byte("0123456789")))
	err := socket.Write([]byte("0123456789"))
	assert.ErrorIs(t, err, ErrSendQExceeded)

	assert.Equal(t, io.EOF, socket.Write([]byte("x")), "the socket closes itself on overflow")
}

func TestSocketWriteNeverBlocksTeardown(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	// the remote end never reads, so the writer goroutine parks in
	// conn.Write and the queue fills up behind it
	socket := NewSocket(local, 0)
	go socket.RunSocketWriter()

	wrote := make(chan error, 1)
	go func() {
		for i := 0; i < 300; i++ {
			if err := socket.Write([]byte("PRIVMSG #chan :hello\r\n")); err != nil {
				wrote <- err
				return
			}
		}
		wrote <- nil
	}()

	select {
	case err := <-wrote:
		assert.ErrorIs(t, err, ErrSendQExceeded, "a full queue fails the write instead of blocking")
	case <-time.After(2 * time.Second):
		t.Fatal("writes wedged behind a peer that stopped reading")
	}

	closed := make(chan struct{})
	go func() {
		socket.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("teardown wedged behind a full send queue")
	}
}

func TestSocketReadChunks(t *testing.T) {
	local, remote := net.Pipe()
	socket := NewSocket(local, 0)
	defer socket.Close()

	go func() {
		remote.Write([]byte("some bytes"))
		remote.Close()
	}()

	data, err := socket.Read()
	require.NoError(t, err)
	assert.Equal(t, "some bytes", string(data))

	deadline := time.Now().Add(2 * time.Second)
	local.SetReadDeadline(deadline)
	_, err = socket.Read()
	assert.Equal(t, io.EOF, err)
}
