// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package jsonrelay

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
)

// wireMessage is the structured wire shape: exactly four fields, source
// explicit null when absent, verb either a string token or a numeric code.
type wireMessage struct {
	Tags   map[string]TagValue `json:"tags"`
	Source *string             `json:"source"`
	Verb   json.RawMessage     `json:"verb"`
	Params []string            `json:"params"`
}

// MarshalJSON renders an explicit string for value-carrying tags and a bare
// true for flag tags.
func (value TagValue) MarshalJSON() ([]byte, error) {
	if value.HasValue {
		return json.Marshal(value.Value)
	}
	return []byte("true"), nil
}

// UnmarshalJSON accepts the two renderings emitted by MarshalJSON.
func (value *TagValue) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*value = MakeTagValue(asString)
		return nil
	}
	var asBool bool
	if err := json.Unmarshal(data, &asBool); err == nil && asBool {
		*value = NoTagValue()
		return nil
	}
	return errors.New("tag value must be a string or true")
}

// SerializeJSON renders a Message as one structured-format value.
func SerializeJSON(message Message) ([]byte, error) {
	if message.Command.IsEmpty() {
		return nil, &EncodeError{
			Format: FormatStructured,
			Reason: "message has no command",
		}
	}

	wire := wireMessage{
		Tags:   message.Tags,
		Params: message.Params,
	}
	if wire.Tags == nil {
		wire.Tags = make(map[string]TagValue)
	}
	if wire.Params == nil {
		wire.Params = []string{}
	}
	if message.HasSource {
		source := message.Source
		wire.Source = &source
	}
	if message.Command.Numeric {
		wire.Verb = json.RawMessage(strconv.Itoa(message.Command.Code))
	} else {
		verb, err := json.Marshal(message.Command.Token)
		if err != nil {
			return nil, &EncodeError{
				Format: FormatStructured,
				Reason: "command is not representable",
			}
		}
		wire.Verb = verb
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return nil, &EncodeError{
			Format: FormatStructured,
			Reason: err.Error(),
		}
	}
	return data, nil
}

// JSONDecoder accumulates structured-format bytes and emits one Message per
// complete top-level JSON value. Values may span chunks and may sit
// back-to-back with no separator between them.
type JSONDecoder struct {
	buffer []byte
}

// NewJSONDecoder returns an empty JSONDecoder.
func NewJSONDecoder() *JSONDecoder {
	return &JSONDecoder{}
}

// AddData buffers a chunk of received bytes.
func (decoder *JSONDecoder) AddData(data []byte) {
	decoder.buffer = append(decoder.buffer, data...)
}

// Next pops the next complete JSON value from the buffer and converts it. It
// returns false when the buffer holds no complete value yet; a value that can
// never complete is a DecodeError.
func (decoder *JSONDecoder) Next() (Message, bool, error) {
	decoder.buffer = bytes.TrimLeft(decoder.buffer, " \t\r\n")
	if len(decoder.buffer) == 0 {
		return Message{}, false, nil
	}

	reader := bytes.NewReader(decoder.buffer)
	dec := json.NewDecoder(reader)
	var wire wireMessage
	err := dec.Decode(&wire)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		// value still incomplete, wait for more bytes
		return Message{}, false, nil
	}
	if err != nil {
		return Message{}, false, &DecodeError{
			Format: FormatStructured,
			Reason: "malformed value",
			Cause:  err,
		}
	}
	decoder.buffer = decoder.buffer[dec.InputOffset():]

	message, err := wire.toMessage()
	if err != nil {
		return Message{}, false, err
	}
	return message, true, nil
}

func (wire *wireMessage) toMessage() (Message, error) {
	var message Message
	message.Tags = wire.Tags
	if message.Tags == nil {
		message.Tags = make(map[string]TagValue)
	}
	if wire.Source != nil {
		message.Source = *wire.Source
		message.HasSource = true
	}
	message.Params = wire.Params

	// a null verb unmarshals into int and string as a silent no-op, so
	// reject it before trying either variant
	if len(wire.Verb) == 0 || bytes.Equal(wire.Verb, []byte("null")) {
		return message, &DecodeError{
			Format: FormatStructured,
			Reason: "value has no verb",
		}
	}

	var token string
	var code int
	if err := json.Unmarshal(wire.Verb, &code); err == nil {
		token = strconv.Itoa(code)
	} else if err := json.Unmarshal(wire.Verb, &token); err != nil {
		return message, &DecodeError{
			Format: FormatStructured,
			Reason: "verb must be a string or an integer",
		}
	}
	message.Command = MakeCommand(token)
	if message.Command.IsEmpty() {
		return message, &DecodeError{
			Format: FormatStructured,
			Reason: "value has no verb",
		}
	}
	return message, nil
}
