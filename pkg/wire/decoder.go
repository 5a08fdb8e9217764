// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Message is a decoded wire object: the "T" type code plus every other field.
type Message struct {
	Type   int
	Fields map[string]json.Number
}

// ParseCommand decodes an encoded command back into a Message.
func ParseCommand(cmd Command) (Message, error) {
	return ParseMessage([]byte(cmd))
}

// ParseMessage decodes a flat JSON object with a numeric "T" field.
// Non-numeric fields are ignored.
func ParseMessage(data []byte) (Message, error) {
	raw, err := decodeObject(data)
	if err != nil {
		return Message{}, err
	}

	t, ok := raw["T"].(json.Number)
	if !ok {
		return Message{}, fmt.Errorf("message has no numeric T field")
	}
	code, err := t.Int64()
	if err != nil {
		return Message{}, fmt.Errorf("invalid T field %q: %w", t, err)
	}

	return messageFromObject(int(code), raw), nil
}

func decodeObject(data []byte) (map[string]interface{}, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty message")
	}

	var raw map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	return raw, nil
}

func messageFromObject(code int, raw map[string]interface{}) Message {
	msg := Message{Type: code, Fields: make(map[string]json.Number)}
	for k, v := range raw {
		if k == "T" {
			continue
		}
		if n, ok := v.(json.Number); ok {
			msg.Fields[k] = n
		}
	}
	return msg
}

// Int returns an integer field. Fractional values are truncated.
func (m Message) Int(key string) (int, bool) {
	n, ok := m.Fields[key]
	if !ok {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		return int(i), true
	}
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return int(f), true
}

// Float returns a floating point field.
func (m Message) Float(key string) (float64, bool) {
	n, ok := m.Fields[key]
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}

// Keys returns the field names in sorted order.
func (m Message) Keys() []string {
	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Type returns the T code of an encoded command, or -1 if it cannot be parsed.
func (c Command) Type() int {
	msg, err := ParseCommand(c)
	if err != nil {
		return -1
	}
	return msg.Type
}

// ExpectsReply reports whether the controller answers this command with data.
func ExpectsReply(cmd Command) bool {
	return cmd.Type() == CmdFeedbackQuery
}
