// Copyright 2026 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package envelope implements the request and response envelopes exchanged
// by msgecho peers.
//
// The encoding is the protobuf wire format of the following schema, so any
// protobuf runtime can talk to a msgecho server:
//
//	message EchoMessage   { string content = 1; }
//	message AddRequest    { int32 a = 1; int32 b = 2; }
//	message AddResponse   { int32 result = 1; }
//	message ErrorMessage  { string message = 1; }
//
//	message ClientMessage {
//		oneof message {
//			EchoMessage echo_message = 1;
//			AddRequest  add_request  = 2;
//		}
//	}
//
//	message ServerMessage {
//		oneof message {
//			EchoMessage  echo_message = 1;
//			AddResponse  add_response = 2;
//			ErrorMessage error        = 3;
//		}
//	}
package envelope

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrUnsupportedRequest is returned by UnmarshalRequest for a well-formed
	// envelope that carries no variant this package knows about.
	ErrUnsupportedRequest = errors.New("envelope: unsupported request")

	// ErrUnsupportedResponse is the response side twin of ErrUnsupportedRequest.
	ErrUnsupportedResponse = errors.New("envelope: unsupported response")

	errNilVariant  = errors.New("envelope: nil variant")
	errWireType    = errors.New("wrong wire type")
	errInvalidUTF8 = errors.New("invalid UTF-8")
)

// DecodeError reports bytes that are not a valid envelope.
type DecodeError struct {
	What string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return "envelope: decode " + e.What
	}
	return fmt.Sprintf("envelope: decode %s: %v", e.What, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Request is a client envelope variant, *Echo or *Add.
type Request interface {
	isRequest()
}

// Response is a server envelope variant, *Echo, *AddResult or *Error.
type Response interface {
	isResponse()
}

// Echo asks the server to send Content back, and is also the answer.
type Echo struct {
	Content string
}

// Add asks the server for A+B.
type Add struct {
	A, B int32
}

// AddResult answers Add.
type AddResult struct {
	Result int32
}

// Error answers a request the server could not serve.
type Error struct {
	Message string
}

func (*Echo) isRequest()       {}
func (*Add) isRequest()        {}
func (*Echo) isResponse()      {}
func (*AddResult) isResponse() {}
func (*Error) isResponse()     {}

func (e *Error) Error() string {
	return e.Message
}

// oneof field numbers.
const (
	echoField      protowire.Number = 1
	addField       protowire.Number = 2
	addResultField protowire.Number = 2
	errorField     protowire.Number = 3
)

// MarshalRequest encodes r as a ClientMessage.
func MarshalRequest(r Request) ([]byte, error) {
	switch v := r.(type) {
	case *Echo:
		if v == nil {
			break
		}
		return appendMessage(nil, echoField, v.appendBody(nil)), nil
	case *Add:
		if v == nil {
			break
		}
		return appendMessage(nil, addField, v.appendBody(nil)), nil
	}
	return nil, fmt.Errorf("marshal request %T: %w", r, errNilVariant)
}

// MarshalResponse encodes r as a ServerMessage.
func MarshalResponse(r Response) ([]byte, error) {
	switch v := r.(type) {
	case *Echo:
		if v == nil {
			break
		}
		return appendMessage(nil, echoField, v.appendBody(nil)), nil
	case *AddResult:
		if v == nil {
			break
		}
		return appendMessage(nil, addResultField, v.appendBody(nil)), nil
	case *Error:
		if v == nil {
			break
		}
		return appendMessage(nil, errorField, v.appendBody(nil)), nil
	}
	return nil, fmt.Errorf("marshal response %T: %w", r, errNilVariant)
}

// UnmarshalRequest decodes a ClientMessage.
//
// Malformed input yields a *DecodeError. An envelope without a known
// variant yields ErrUnsupportedRequest.
func UnmarshalRequest(b []byte) (Request, error) {
	var req Request
	err := walkOneof(b, isRequestField, func(num protowire.Number, body []byte) error {
		switch num {
		case echoField:
			v := &Echo{}
			if err := v.unmarshal(body); err != nil {
				return err
			}
			req = v
		case addField:
			v := &Add{}
			if err := v.unmarshal(body); err != nil {
				return err
			}
			req = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrUnsupportedRequest
	}
	return req, nil
}

// UnmarshalResponse decodes a ServerMessage.
func UnmarshalResponse(b []byte) (Response, error) {
	var resp Response
	err := walkOneof(b, isResponseField, func(num protowire.Number, body []byte) error {
		switch num {
		case echoField:
			v := &Echo{}
			if err := v.unmarshal(body); err != nil {
				return err
			}
			resp = v
		case addResultField:
			v := &AddResult{}
			if err := v.unmarshal(body); err != nil {
				return err
			}
			resp = v
		case errorField:
			v := &Error{}
			if err := v.unmarshal(body); err != nil {
				return err
			}
			resp = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, ErrUnsupportedResponse
	}
	return resp, nil
}

func appendMessage(b []byte, num protowire.Number, body []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body)
}

func isRequestField(num protowire.Number) bool {
	return num == echoField || num == addField
}

func isResponseField(num protowire.Number) bool {
	return num == echoField || num == addResultField || num == errorField
}

// walkOneof calls f for every length-delimited field of an envelope, in
// wire order, so the last variant seen wins as protobuf oneofs do.
// A known variant with another wire type is malformed; unknown fields of
// other wire types are skipped.
func walkOneof(b []byte, known func(protowire.Number) bool, f func(num protowire.Number, body []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return &DecodeError{"tag", protowire.ParseError(n)}
		}
		b = b[n:]

		if typ != protowire.BytesType {
			if known(num) {
				return &DecodeError{"variant", errWireType}
			}
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return &DecodeError{"field", protowire.ParseError(n)}
			}
			b = b[n:]
			continue
		}

		body, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return &DecodeError{"variant", protowire.ParseError(n)}
		}
		b = b[n:]

		if err := f(num, body); err != nil {
			return err
		}
	}
	return nil
}

// walkFields calls f for every field of a variant body. f returns 0 for
// fields it does not know, which are then skipped.
func walkFields(b []byte, f func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return &DecodeError{"tag", protowire.ParseError(n)}
		}
		b = b[n:]

		n, err := f(num, typ, b)
		if err != nil {
			return &DecodeError{fmt.Sprintf("field %d", num), err}
		}
		if n == 0 {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return &DecodeError{"field", protowire.ParseError(n)}
			}
		}
		b = b[n:]
	}
	return nil
}

func consumeString(typ protowire.Type, b []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return 0, errWireType
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	if !utf8.Valid(v) {
		return 0, errInvalidUTF8
	}
	*dst = string(v)
	return n, nil
}

// int32 fields are varints holding the sign-extended 64-bit value.
func consumeInt32(typ protowire.Type, b []byte, dst *int32) (int, error) {
	if typ != protowire.VarintType {
		return 0, errWireType
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = int32(v)
	return n, nil
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

func (m *Echo) appendBody(b []byte) []byte {
	return appendString(b, 1, m.Content)
}

func (m *Echo) unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeString(typ, b, &m.Content)
		}
		return 0, nil
	})
}

func (m *Add) appendBody(b []byte) []byte {
	b = appendInt32(b, 1, m.A)
	return appendInt32(b, 2, m.B)
}

func (m *Add) unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeInt32(typ, b, &m.A)
		case 2:
			return consumeInt32(typ, b, &m.B)
		}
		return 0, nil
	})
}

func (m *AddResult) appendBody(b []byte) []byte {
	return appendInt32(b, 1, m.Result)
}

func (m *AddResult) unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeInt32(typ, b, &m.Result)
		}
		return 0, nil
	})
}

func (m *Error) appendBody(b []byte) []byte {
	return appendString(b, 1, m.Message)
}

func (m *Error) unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeString(typ, b, &m.Message)
		}
		return 0, nil
	})
}
