// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package jsonrelay

import (
	"strconv"
	"strings"
)

// TagValue represents a tag value attached to a message. A tag may carry an
// explicit string value (possibly empty), or appear bare, in which case it is
// a simple flag.
type TagValue struct {
	HasValue bool
	Value    string
}

// MakeTagValue returns a TagValue carrying the given string.
func MakeTagValue(value string) TagValue {
	return TagValue{
		HasValue: true,
		Value:    value,
	}
}

// NoTagValue returns a flag TagValue, one with no explicit value.
func NoTagValue() TagValue {
	return TagValue{}
}

// Command is the verb of a message: either a numeric reply code in [1,999] or
// a lowercase command token. Exactly one of the two variants is set.
type Command struct {
	Numeric bool
	Code    int
	Token   string
}

// MakeCommand normalizes a raw command token. Tokens that parse as an integer
// in [1,999] become the numeric variant; everything else is casefolded and
// kept as a token. Tokens like "1000" fall outside the numeric range and stay
// symbolic.
func MakeCommand(token string) Command {
	if isAllDigits(token) {
		code, err := strconv.Atoi(token)
		if err == nil && 1 <= code && code <= 999 {
			return Command{
				Numeric: true,
				Code:    code,
			}
		}
	}
	return Command{
		Token: strings.ToLower(token),
	}
}

// MakeNumericCommand returns the numeric variant directly.
func MakeNumericCommand(code int) Command {
	return Command{
		Numeric: true,
		Code:    code,
	}
}

func isAllDigits(token string) bool {
	if len(token) == 0 {
		return false
	}
	for _, char := range token {
		if char < '0' || '9' < char {
			return false
		}
	}
	return true
}

// Is reports whether the command is the given symbolic token.
func (command Command) Is(token string) bool {
	return !command.Numeric && command.Token == token
}

// IsEmpty reports whether the command was never set. A complete message never
// has an empty command.
func (command Command) IsEmpty() bool {
	return !command.Numeric && command.Token == ""
}

// String returns the canonical form of the command, numerics as their bare
// decimal value and tokens casefolded.
func (command Command) String() string {
	if command.Numeric {
		return strconv.Itoa(command.Code)
	}
	return command.Token
}

// Message is the format-agnostic representation of one protocol message,
// passed by value between the codecs and the relay.
type Message struct {
	Tags      map[string]TagValue
	Source    string
	HasSource bool
	Command   Command
	Params    []string
}

// MakeMessage assembles a Message from tags, a source, and a raw command
// token with its params.
func MakeMessage(tags map[string]TagValue, source string, command string, params ...string) Message {
	message := Message{
		Tags:    tags,
		Command: MakeCommand(command),
		Params:  params,
	}
	if source != "" {
		message.Source = source
		message.HasSource = true
	}
	if message.Tags == nil {
		message.Tags = make(map[string]TagValue)
	}
	return message
}

// NewMessage assembles a Message from a raw value list. If the leading value
// begins with the source marker ':', it is consumed as the source (marker
// stripped) and the next value becomes the command.
func NewMessage(values ...string) Message {
	var source string
	if 0 < len(values) && strings.HasPrefix(values[0], ":") {
		source = strings.TrimPrefix(values[0], ":")
		values = values[1:]
	}
	var command string
	if 0 < len(values) {
		command = values[0]
		values = values[1:]
	}
	return MakeMessage(nil, source, command, values...)
}

// SetTag sets a tag to an explicit string value, casefolding the key.
func (message *Message) SetTag(key string, value string) {
	if message.Tags == nil {
		message.Tags = make(map[string]TagValue)
	}
	message.Tags[strings.ToLower(key)] = MakeTagValue(value)
}

// SetFlagTag sets a bare flag tag, casefolding the key.
func (message *Message) SetFlagTag(key string) {
	if message.Tags == nil {
		message.Tags = make(map[string]TagValue)
	}
	message.Tags[strings.ToLower(key)] = NoTagValue()
}
