// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package jsonrelay

import (
	"log"

	"golang.org/x/sync/errgroup"
)

// RelayPair couples a downstream (client-facing) channel with an upstream
// (server-facing) one. Messages decoded on either side go to the opposite
// side's send path in decode order; STARTJSON and QUIT get their special
// handling here; a transport closing on either side tears down both.
type RelayPair struct {
	Downstream *ConnectionChannel
	Upstream   *ConnectionChannel

	hooks *HookEmitter
}

// NewRelayPair wires the two channels together. A STARTJSON from the
// downstream side is a relay command: it upgrades the upstream leg's send
// direction while the downstream leg keeps speaking native. The upstream
// channel keeps the channel-local transition, which handles the server
// announcing (or reciprocating) JSON on its own.
func NewRelayPair(downstream, upstream *ConnectionChannel, hooks *HookEmitter) *RelayPair {
	pair := &RelayPair{
		Downstream: downstream,
		Upstream:   upstream,
		hooks:      hooks,
	}

	downstream.hooks = hooks
	upstream.hooks = hooks

	downstream.onStartJSON = func() {
		if err := upstream.SwitchOutbound(); err != nil {
			log.Println("could not switch upstream to structured:", err.Error())
			pair.Close()
		}
	}

	downstream.forward = func(message Message) {
		if err := upstream.SendMessage(message); err != nil {
			pair.Close()
			return
		}
		if message.Command.Is("quit") {
			pair.Shutdown()
		}
	}
	upstream.forward = func(message Message) {
		if err := downstream.SendMessage(message); err != nil {
			pair.Close()
		}
	}

	return pair
}

// Run pumps both sockets until either side goes away, then makes sure no
// half-open leg is left behind. It blocks until both legs are done.
func (pair *RelayPair) Run() error {
	go pair.Downstream.Socket().RunSocketWriter()
	go pair.Upstream.Socket().RunSocketWriter()

	var group errgroup.Group
	group.Go(func() error {
		return pair.readLoop(pair.Downstream)
	})
	group.Go(func() error {
		return pair.readLoop(pair.Upstream)
	})
	err := group.Wait()
	pair.Close()
	return err
}

// readLoop feeds one socket's bytes to its channel until the transport
// closes or a codec rejects the stream, then cascades teardown to the peer.
func (pair *RelayPair) readLoop(channel *ConnectionChannel) error {
	for {
		data, err := channel.Socket().Read()
		if 0 < len(data) {
			if _, decodeErr := channel.Receive(data); decodeErr != nil {
				log.Printf("%s leg: %s", channel.Name, decodeErr.Error())
				pair.Close()
				return decodeErr
			}
		}
		if err != nil {
			pair.Shutdown()
			return nil
		}
	}
}

// Shutdown schedules a graceful close of both legs: queued writes are
// flushed, then the connections close.
func (pair *RelayPair) Shutdown() {
	pair.Downstream.Socket().CloseWhenFlushed()
	pair.Upstream.Socket().CloseWhenFlushed()
}

// Close tears both legs down immediately.
func (pair *RelayPair) Close() {
	pair.Downstream.Socket().Close()
	pair.Upstream.Socket().Close()
}
