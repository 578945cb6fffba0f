// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package jstring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"go.yaml.in/yaml/v3"

	"github.com/open-policy-agent/compactstr/v1/rawstr"
	"github.com/open-policy-agent/compactstr/v1/util"
)

// MarshalText implements encoding.TextMarshaler.
func (s String) MarshalText() ([]byte, error) {
	return bytes.Clone(rawstr.Bytes(&s.raw)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. The text must be
// well-formed UTF-8; on error s is left unchanged.
func (s *String) UnmarshalText(text []byte) error {
	raw, err := rawstr.FromUTF8(text)
	if err != nil {
		return invalidUTF8Error(err)
	}
	rawstr.Release(&s.raw)
	s.raw = raw
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s String) MarshalJSON() ([]byte, error) {
	return util.MarshalJSON(s.String())
}

// UnmarshalJSON implements json.Unmarshaler. The input must be well-formed
// UTF-8 and a JSON string; null leaves s unchanged.
func (s *String) UnmarshalJSON(data []byte) error {
	if err := rawstr.ValidateUTF8(data); err != nil {
		return invalidUTF8Error(err)
	}
	if string(data) == "null" {
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	s.Set(str)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (s String) MarshalYAML() (any, error) {
	return s.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler. Only scalar nodes decode into
// a String.
func (s *String) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("jstring: cannot unmarshal YAML node of kind %v into String", node.Kind)
	}
	if !utf8.ValidString(node.Value) {
		return invalidUTF8Error(rawstr.ValidateUTF8([]byte(node.Value)))
	}
	s.Set(node.Value)
	return nil
}
