// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package jsonrelay

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// ParseLine parses one native-format line (without its terminator) into a
// Message. The grammar, in order: an optional @-prefixed tag block, an
// optional :-prefixed source, the command, the params, with everything after
// a " :" sequence taken as one final param that may contain spaces.
func ParseLine(line string) (Message, error) {
	var message Message
	message.Tags = make(map[string]TagValue)

	// tag block
	if strings.HasPrefix(line, "@") {
		block := line
		space := strings.IndexByte(line, ' ')
		if space != -1 {
			block = line[:space]
			line = line[space+1:]
		} else {
			line = ""
		}
		for _, segment := range strings.Split(strings.TrimPrefix(block, "@"), ";") {
			if segment == "" {
				continue
			}
			parts := strings.SplitN(segment, "=", 2)
			key := strings.ToLower(parts[0])
			if len(parts) == 2 {
				message.Tags[key] = MakeTagValue(parts[1])
			} else {
				message.Tags[key] = NoTagValue()
			}
		}
		line = strings.TrimLeft(line, " ")
	}

	// source
	if strings.HasPrefix(line, ":") {
		token := line
		space := strings.IndexByte(line, ' ')
		if space != -1 {
			token = line[:space]
			line = strings.TrimLeft(line[space+1:], " ")
		} else {
			line = ""
		}
		source := strings.TrimPrefix(token, ":")
		if 2 <= len(source) {
			message.Source = source
			message.HasSource = true
		}
	}

	// command and params, splitting once on " :" for the trailing param
	var trailing string
	var hasTrailing bool
	parts := strings.SplitN(line, " :", 2)
	if len(parts) == 2 {
		line = parts[0]
		trailing = parts[1]
		hasTrailing = true
	}

	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return message, &DecodeError{
			Format: FormatNative,
			Reason: "line has no command",
		}
	}
	message.Command = MakeCommand(tokens[0])
	message.Params = tokens[1:]
	if hasTrailing {
		message.Params = append(message.Params, trailing)
	}

	return message, nil
}

// SerializeLine renders a Message back to one native-format line, terminated
// with CR LF. Commands are uppercased, except that the "ctcp_" prefix is a
// rendering convention and is stripped, so ctcp_action goes out as ACTION.
func SerializeLine(message Message) ([]byte, error) {
	if message.Command.IsEmpty() {
		return nil, &EncodeError{
			Format: FormatNative,
			Reason: "message has no command",
		}
	}

	var out strings.Builder

	if 0 < len(message.Tags) {
		keys := make([]string, 0, len(message.Tags))
		for key := range message.Tags {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		out.WriteByte('@')
		for i, key := range keys {
			if 0 < i {
				out.WriteByte(';')
			}
			out.WriteString(key)
			value := message.Tags[key]
			if value.HasValue {
				out.WriteByte('=')
				out.WriteString(value.Value)
			}
		}
		out.WriteByte(' ')
	}

	if message.HasSource && message.Source != "" {
		out.WriteByte(':')
		out.WriteString(message.Source)
		out.WriteByte(' ')
	}

	if message.Command.Numeric {
		out.WriteString(fmt.Sprintf("%03d", message.Command.Code))
	} else {
		token := strings.TrimPrefix(message.Command.Token, "ctcp_")
		out.WriteString(strings.ToUpper(token))
	}

	for i, param := range message.Params {
		if strings.ContainsAny(param, "\r\n") {
			return nil, &EncodeError{
				Format: FormatNative,
				Reason: "param contains a line terminator",
			}
		}
		last := i == len(message.Params)-1
		if !last && strings.ContainsRune(param, ' ') {
			return nil, &EncodeError{
				Format: FormatNative,
				Reason: "only the final param may contain spaces",
			}
		}
		out.WriteByte(' ')
		if last && param != "" && strings.ContainsRune(param, ' ') {
			out.WriteByte(':')
		}
		out.WriteString(param)
	}

	out.WriteString("\r\n")
	return []byte(out.String()), nil
}

// LineDecoder accumulates native-format bytes and emits one Message per
// complete line. Bytes arrive in arbitrary chunks; partial lines stay
// buffered until their terminator shows up or the connection closes.
type LineDecoder struct {
	buffer []byte
}

// NewLineDecoder returns an empty LineDecoder.
func NewLineDecoder() *LineDecoder {
	return &LineDecoder{}
}

// AddData buffers a chunk of received bytes.
func (decoder *LineDecoder) AddData(data []byte) {
	decoder.buffer = append(decoder.buffer, data...)
}

// Next pops the next complete line from the buffer and parses it. It returns
// false when no complete line is buffered.
func (decoder *LineDecoder) Next() (Message, bool, error) {
	end := bytes.IndexByte(decoder.buffer, '\n')
	if end == -1 {
		return Message{}, false, nil
	}

	line := string(decoder.buffer[:end])
	decoder.buffer = decoder.buffer[end+1:]
	line = strings.TrimSuffix(line, "\r")

	message, err := ParseLine(line)
	if err != nil {
		return Message{}, false, err
	}
	return message, true, nil
}

// Buffered returns the bytes received but not yet consumed, and empties the
// decoder. The channel uses this to hand unparsed bytes to a fresh structured
// decoder when the receive format switches mid-stream.
func (decoder *LineDecoder) Buffered() []byte {
	remainder := decoder.buffer
	decoder.buffer = nil
	return remainder
}
