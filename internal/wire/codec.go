package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes message envelopes and payloads for one wire format.
type Codec interface {
	Name() string

	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error

	EncodeRequest(id string, op Op, arg any) ([]byte, error)
	DecodeRequest(data []byte) (Request, error)

	EncodeResponse(id string, result any) ([]byte, error)
	EncodeReady() ([]byte, error)
	DecodeResponse(data []byte) (Response, error)
}

// Lookup returns the codec registered under name.
func Lookup(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON, nil
	case "msgpack", "mp":
		return Msgpack, nil
	default:
		return nil, fmt.Errorf("unknown codec %q (expected: json|msgpack)", name)
	}
}

// Decode unmarshals raw into v. Absent payloads leave v untouched.
func Decode(c Codec, raw Raw, v any) error {
	if raw == nil {
		return nil
	}
	return c.Unmarshal(raw, v)
}

var (
	// JSON is the default codec; it matches what a browser worker posts.
	JSON Codec = jsonCodec{}
	// Msgpack is a compact binary codec for process workers.
	Msgpack Codec = msgpackCodec{}
)

type jsonCodec struct{}

type jsonRequest struct {
	ID  string `json:"id"`
	Op  Op     `json:"op"`
	Arg any    `json:"arg"`
}

type jsonResponse struct {
	ID     string `json:"id"`
	Result any    `json:"result"`
}

type jsonReady struct {
	ID string `json:"id"`
}

type jsonInbound struct {
	ID     string          `json:"id"`
	Op     Op              `json:"op,omitempty"`
	Arg    json.RawMessage `json:"arg,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) EncodeRequest(id string, op Op, arg any) ([]byte, error) {
	return json.Marshal(jsonRequest{ID: id, Op: op, Arg: arg})
}

func (jsonCodec) DecodeRequest(data []byte) (Request, error) {
	var in jsonInbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	return Request{ID: in.ID, Op: in.Op, Arg: jsonRaw(in.Arg)}, nil
}

func (jsonCodec) EncodeResponse(id string, result any) ([]byte, error) {
	return json.Marshal(jsonResponse{ID: id, Result: result})
}

func (jsonCodec) EncodeReady() ([]byte, error) {
	return json.Marshal(jsonReady{ID: ReadyID})
}

func (jsonCodec) DecodeResponse(data []byte) (Response, error) {
	var in jsonInbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return Response{ID: in.ID, Result: jsonRaw(in.Result)}, nil
}

func jsonRaw(m json.RawMessage) Raw {
	trimmed := bytes.TrimSpace(m)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return Raw(trimmed)
}

type msgpackCodec struct{}

type msgpackRequest struct {
	ID  string `msgpack:"id"`
	Op  Op     `msgpack:"op"`
	Arg any    `msgpack:"arg"`
}

type msgpackResponse struct {
	ID     string `msgpack:"id"`
	Result any    `msgpack:"result"`
}

type msgpackReady struct {
	ID string `msgpack:"id"`
}

type msgpackInbound struct {
	ID     string             `msgpack:"id"`
	Op     Op                 `msgpack:"op,omitempty"`
	Arg    msgpack.RawMessage `msgpack:"arg,omitempty"`
	Result msgpack.RawMessage `msgpack:"result,omitempty"`
}

func (msgpackCodec) Name() string { return "msgpack" }

func (msgpackCodec) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

func (msgpackCodec) EncodeRequest(id string, op Op, arg any) ([]byte, error) {
	return msgpack.Marshal(msgpackRequest{ID: id, Op: op, Arg: arg})
}

func (msgpackCodec) DecodeRequest(data []byte) (Request, error) {
	var in msgpackInbound
	if err := msgpack.Unmarshal(data, &in); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	return Request{ID: in.ID, Op: in.Op, Arg: msgpackRaw(in.Arg)}, nil
}

func (msgpackCodec) EncodeResponse(id string, result any) ([]byte, error) {
	return msgpack.Marshal(msgpackResponse{ID: id, Result: result})
}

func (msgpackCodec) EncodeReady() ([]byte, error) {
	return msgpack.Marshal(msgpackReady{ID: ReadyID})
}

func (msgpackCodec) DecodeResponse(data []byte) (Response, error) {
	var in msgpackInbound
	if err := msgpack.Unmarshal(data, &in); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return Response{ID: in.ID, Result: msgpackRaw(in.Result)}, nil
}

// msgpackNil is the single-byte encoding of nil.
const msgpackNil = 0xc0

func msgpackRaw(m msgpack.RawMessage) Raw {
	if len(m) == 0 || (len(m) == 1 && m[0] == msgpackNil) {
		return nil
	}
	return Raw(m)
}
