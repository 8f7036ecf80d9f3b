// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package jsonrelay

import (
	"sync"
)

// Format identifies which wire codec a direction of a connection is using.
type Format int

const (
	// FormatNative is the line-oriented IRC wire format, the initial state
	// of every direction.
	FormatNative Format = iota
	// FormatStructured is the JSON wire format. The transition to it is
	// one-way; no direction ever switches back.
	FormatStructured
)

func (format Format) String() string {
	if format == FormatStructured {
		return "structured"
	}
	return "native"
}

// StartJSONSignal is the in-band token that triggers the format switch.
const StartJSONSignal = "startjson"

// ConnectionChannel owns one socket's receive buffer, the active codec for
// each direction, and the format-switch state machine. Receive state belongs
// to the single goroutine reading the socket; the send side is guarded by a
// mutex since the peer's reader goroutine drives it.
type ConnectionChannel struct {
	Name   string
	socket *Socket

	// receive side, reader-goroutine-owned
	recvFormat  Format
	lineDecoder *LineDecoder
	jsonDecoder *JSONDecoder

	// send side
	sendLock   sync.Mutex
	sendFormat Format

	// forward delivers a decoded message onward, in decode order. When nil,
	// Receive collects messages and returns them instead.
	forward func(Message)

	// onStartJSON overrides the channel-local transition; the relay points
	// the downstream channel's signal at the upstream leg.
	onStartJSON func()

	hooks *HookEmitter
}

// NewConnectionChannel wraps a socket in a channel with both directions in
// native format.
func NewConnectionChannel(name string, socket *Socket) *ConnectionChannel {
	return &ConnectionChannel{
		Name:        name,
		socket:      socket,
		lineDecoder: NewLineDecoder(),
	}
}

// NewEagerConnectionChannel returns a channel whose send direction starts in
// structured mode, used for an outbound leg configured to announce JSON
// immediately. The STARTJSON announce is the first thing queued on the
// socket.
func NewEagerConnectionChannel(name string, socket *Socket) (*ConnectionChannel, error) {
	channel := NewConnectionChannel(name, socket)
	if err := channel.SwitchOutbound(); err != nil {
		return nil, err
	}
	return channel, nil
}

// Socket returns the transport socket this channel owns.
func (channel *ConnectionChannel) Socket() *Socket {
	return channel.socket
}

// ReceiveFormat returns the format the receive direction currently decodes.
func (channel *ConnectionChannel) ReceiveFormat() Format {
	return channel.recvFormat
}

// SendFormat returns the format the send direction currently encodes.
func (channel *ConnectionChannel) SendFormat() Format {
	channel.sendLock.Lock()
	defer channel.sendLock.Unlock()
	return channel.sendFormat
}

// Receive feeds a chunk of raw bytes to the active receive codec and handles
// every message that completes, in arrival order. STARTJSON signals are
// consumed here and never delivered as ordinary messages. When no forward
// function is installed the decoded messages are returned to the caller.
func (channel *ConnectionChannel) Receive(data []byte) ([]Message, error) {
	if channel.hooks != nil {
		channel.hooks.Dispatch(HookRawInName, &HookRawBytes{
			Leg:  channel.Name,
			Data: data,
		})
	}

	if channel.recvFormat == FormatNative {
		channel.lineDecoder.AddData(data)
	} else {
		channel.jsonDecoder.AddData(data)
	}

	var collected []Message
	for {
		var message Message
		var ok bool
		var err error
		if channel.recvFormat == FormatNative {
			message, ok, err = channel.lineDecoder.Next()
		} else {
			message, ok, err = channel.jsonDecoder.Next()
		}
		if err != nil {
			return collected, err
		}
		if !ok {
			return collected, nil
		}

		if message.Command.Is(StartJSONSignal) {
			// out-of-sequence signals are a no-op, the target state is
			// already reached
			if channel.recvFormat == FormatNative {
				if channel.onStartJSON != nil {
					channel.onStartJSON()
				} else if err := channel.switchToStructured(); err != nil {
					return collected, err
				}
			}
			continue
		}

		if channel.forward != nil {
			channel.forward(message)
		} else {
			collected = append(collected, message)
		}
	}
}

// switchToStructured performs the channel-local STARTJSON transition: the
// receive direction swaps to a fresh structured decoder, taking over any
// bytes the native decoder had buffered but not consumed so nothing is lost
// or double-parsed across the switch, and the send direction reciprocates.
func (channel *ConnectionChannel) switchToStructured() error {
	decoder := NewJSONDecoder()
	decoder.AddData(channel.lineDecoder.Buffered())
	channel.jsonDecoder = decoder
	channel.lineDecoder = nil
	channel.recvFormat = FormatStructured

	return channel.SwitchOutbound()
}

// SwitchOutbound switches the send direction to the structured format,
// announcing STARTJSON through the old native encoder first so the remote
// end sees the signal before any structured bytes. Calling it when the send
// direction already switched is a no-op.
func (channel *ConnectionChannel) SwitchOutbound() error {
	channel.sendLock.Lock()
	defer channel.sendLock.Unlock()

	if channel.sendFormat == FormatStructured {
		return nil
	}

	announce, err := SerializeLine(MakeMessage(nil, "", StartJSONSignal))
	if err != nil {
		return err
	}
	if err := channel.write(announce); err != nil {
		return err
	}
	channel.sendFormat = FormatStructured
	return nil
}

// SendMessage serializes a message with the active send codec and queues the
// bytes for egress.
func (channel *ConnectionChannel) SendMessage(message Message) error {
	channel.sendLock.Lock()
	defer channel.sendLock.Unlock()

	var data []byte
	var err error
	if channel.sendFormat == FormatNative {
		data, err = SerializeLine(message)
	} else {
		data, err = SerializeJSON(message)
	}
	if err != nil {
		return err
	}
	return channel.write(data)
}

// write queues raw bytes on the socket. Callers hold sendLock, which keeps
// the announce-then-structured ordering of SwitchOutbound intact.
func (channel *ConnectionChannel) write(data []byte) error {
	if channel.hooks != nil {
		channel.hooks.Dispatch(HookRawOutName, &HookRawBytes{
			Leg:  channel.Name,
			Data: data,
		})
	}
	return channel.socket.Write(data)
}
