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

// newTestChannel returns a channel plus the remote end of its socket, with
// the socket writer running so outbound bytes can be read back.
func newTestChannel(t *testing.T, name string) (*ConnectionChannel, net.Conn) {
	t.Helper()
	local, remote := net.Pipe()
	socket := NewSocket(local, 0)
	go socket.RunSocketWriter()
	t.Cleanup(func() {
		socket.Close()
		remote.Close()
	})
	return NewConnectionChannel(name, socket), remote
}

func TestChannelInitialFormats(t *testing.T) {
	channel, _ := newTestChannel(t, "client")
	assert.Equal(t, FormatNative, channel.ReceiveFormat())
	assert.Equal(t, FormatNative, channel.SendFormat())
}

func TestChannelFormatSwitchAtomicity(t *testing.T) {
	channel, remote := newTestChannel(t, "server")
	remoteReader := bufio.NewReader(remote)
	lines := make(chan string, 1)
	go func() {
		line, _ := remoteReader.ReadString('\n')
		lines <- line
	}()

	// the signal and a complete JSON value in one receive call: the signal
	// produces no message and the JSON value produces exactly one, with no
	// bytes lost or double-parsed across the switch
	messages, err := channel.Receive([]byte("STARTJSON\r\n{\"tags\":{},\"source\":null,\"verb\":\"privmsg\",\"params\":[\"#chan\",\"hi\"]}"))
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "privmsg", messages[0].Command.Token)
	assert.Equal(t, []string{"#chan", "hi"}, messages[0].Params)

	assert.Equal(t, FormatStructured, channel.ReceiveFormat())
	assert.Equal(t, FormatStructured, channel.SendFormat())

	// reciprocation announces the signal through the old native encoder
	select {
	case line := <-lines:
		assert.Equal(t, "STARTJSON\r\n", line)
	case <-time.After(time.Second):
		t.Fatal("no reciprocal STARTJSON announce")
	}
}

func TestChannelSwitchOutboundIsIdempotent(t *testing.T) {
	channel, remote := newTestChannel(t, "server")
	type result struct {
		line  string
		extra int
	}
	results := make(chan result, 1)
	go func() {
		reader := bufio.NewReader(remote)
		line, _ := reader.ReadString('\n')
		// nothing else should arrive for the second switch
		remote.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
		extra, _ := reader.Peek(1)
		results <- result{line: line, extra: len(extra)}
	}()

	require.NoError(t, channel.SwitchOutbound())
	require.NoError(t, channel.SwitchOutbound())
	assert.Equal(t, FormatStructured, channel.SendFormat())

	select {
	case got := <-results:
		assert.Equal(t, "STARTJSON\r\n", got.line)
		assert.Zero(t, got.extra, "second SwitchOutbound must not re-announce")
	case <-time.After(time.Second):
		t.Fatal("no STARTJSON announce")
	}
}

func TestChannelSignalWhileStructuredIsNoOp(t *testing.T) {
	channel, remote := newTestChannel(t, "server")
	go func() {
		bufio.NewReader(remote).ReadString('\n')
	}()

	_, err := channel.Receive([]byte("STARTJSON\r\n"))
	require.NoError(t, err)
	require.Equal(t, FormatStructured, channel.ReceiveFormat())

	// a second signal in structured form is consumed without effect
	messages, err := channel.Receive([]byte(`{"tags":{},"source":null,"verb":"startjson","params":[]}`))
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.Equal(t, FormatStructured, channel.ReceiveFormat())
}

func TestChannelSendMessageFollowsSendFormat(t *testing.T) {
	channel, remote := newTestChannel(t, "server")
	reader := bufio.NewReader(remote)

	lines := make(chan string, 2)
	go func() {
		for i := 0; i < 2; i++ {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			lines <- line
		}
	}()

	require.NoError(t, channel.SendMessage(MakeMessage(nil, "", "ping", "1")))
	require.NoError(t, channel.SwitchOutbound())
	require.NoError(t, channel.SendMessage(MakeMessage(nil, "", "ping", "2")))
	assert.Equal(t, "PING 1\r\n", <-lines)
	assert.Equal(t, "STARTJSON\r\n", <-lines)

	// structured values have no line framing; read the JSON value directly

	value := make([]byte, len(`{"tags":{},"source":null,"verb":"ping","params":["2"]}`))
	_, err := io.ReadFull(reader, value)
	require.NoError(t, err)
	assert.Equal(t, `{"tags":{},"source":null,"verb":"ping","params":["2"]}`, string(value))
}

func TestChannelDecodeErrorSurfaces(t *testing.T) {
	channel, _ := newTestChannel(t, "client")
	_, err := channel.Receive([]byte("\r\n"))
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr, "a line with no command is a decode error, not a silent forward")
}

func TestEagerChannelPreSwitchesSend(t *testing.T) {
	local, remote := net.Pipe()
	socket := NewSocket(local, 0)
	go socket.RunSocketWriter()
	defer socket.Close()
	defer remote.Close()

	lines := make(chan string, 1)
	go func() {
		line, err := bufio.NewReader(remote).ReadString('\n')
		if err == nil {
			lines <- line
		}
	}()

	channel, err := NewEagerConnectionChannel("server", socket)
	require.NoError(t, err)
	assert.Equal(t, FormatStructured, channel.SendFormat())
	assert.Equal(t, FormatNative, channel.ReceiveFormat(), "receive switches when the remote end reciprocates")

	select {
	case line := <-lines:
		assert.Equal(t, "STARTJSON\r\n", line)
	case <-time.After(time.Second):
		t.Fatal("eager channel did not announce")
	}
}
