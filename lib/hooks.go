// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package jsonrelay

// HookEmitter dispatches named hooks to registered callbacks. The relay uses
// it as its diagnostic sink; hooks observe traffic and must not affect
// protocol behavior.
type HookEmitter struct {
	Registered map[string][]func(interface{})
}

// MakeHookEmitter returns an empty HookEmitter.
func MakeHookEmitter() HookEmitter {
	return HookEmitter{
		Registered: make(map[string][]func(interface{})),
	}
}

// Dispatch calls every callback registered for the hook, in registration
// order.
func (hooks *HookEmitter) Dispatch(hookName string, data interface{}) {
	for _, p := range hooks.Registered[hookName] {
		p(data)
	}
}

// Register adds a callback for the named hook.
func (hooks *HookEmitter) Register(hookName string, p func(interface{})) {
	hooks.Registered[hookName] = append(hooks.Registered[hookName], p)
}

// HookRawInName is dispatched with the raw bytes a channel reads, before
// they reach the receive codec.
var HookRawInName = "relay.raw.in"

// HookRawOutName is dispatched with the raw bytes a channel queues for
// egress, after the send codec produced them.
var HookRawOutName = "relay.raw.out"

// HookRawBytes carries one direction's raw traffic for a single leg.
type HookRawBytes struct {
	Leg  string
	Data []byte
}
