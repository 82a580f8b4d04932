// Package wire implements the minimal Protobuf wire codec needed to speak
// Warp's multi_agent.v1 Request/ResponseEvent schema. Warp does not publish a
// .proto file, so this codec works against a small dynamic raw-field
// representation (field number -> wire-typed value) built on
// google.golang.org/protobuf/encoding/protowire, with typed Request/
// ResponseEvent structs layered on top in messages.go.
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// rawField is one decoded field occurrence; Warp messages use varint,
// length-delimited (string/bytes/nested-message), and fixed64 wire types.
type rawField struct {
	Varint  uint64
	Fixed64 uint64
	Bytes   []byte
	Type    protowire.Type
}

// RawMessage groups decoded fields by number, preserving repetition order so
// repeated fields (messages[], actions[], etc.) round-trip correctly.
type RawMessage map[uint32][]rawField

// DecodeRaw parses b into a RawMessage, tolerating unknown field numbers.
func DecodeRaw(b []byte) (RawMessage, error) {
	m := RawMessage{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("wire: invalid tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		var f rawField
		f.Type = typ
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: invalid varint: %w", protowire.ParseError(n))
			}
			f.Varint = v
			b = b[n:]
		case protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: invalid fixed64: %w", protowire.ParseError(n))
			}
			f.Fixed64 = v
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: invalid bytes: %w", protowire.ParseError(n))
			}
			f.Bytes = append([]byte(nil), v...)
			b = b[n:]
		case protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: invalid fixed32: %w", protowire.ParseError(n))
			}
			f.Varint = uint64(v)
			b = b[n:]
		default:
			return nil, fmt.Errorf("wire: unsupported wire type %d on field %d", typ, num)
		}
		m[uint32(num)] = append(m[uint32(num)], f)
	}
	return m, nil
}

func (m RawMessage) String(num uint32) (string, bool) {
	fs, ok := m[num]
	if !ok || len(fs) == 0 {
		return "", false
	}
	return string(fs[len(fs)-1].Bytes), true
}

func (m RawMessage) Int64(num uint32) (int64, bool) {
	fs, ok := m[num]
	if !ok || len(fs) == 0 {
		return 0, false
	}
	return int64(fs[len(fs)-1].Varint), true
}

func (m RawMessage) Bool(num uint32) (bool, bool) {
	v, ok := m.Int64(num)
	return v != 0, ok
}

func (m RawMessage) Bytes(num uint32) ([]byte, bool) {
	fs, ok := m[num]
	if !ok || len(fs) == 0 {
		return nil, false
	}
	return fs[len(fs)-1].Bytes, true
}

// Message returns the last occurrence of num decoded as a nested message.
func (m RawMessage) Message(num uint32) (RawMessage, bool) {
	b, ok := m.Bytes(num)
	if !ok {
		return nil, false
	}
	nested, err := DecodeRaw(b)
	if err != nil {
		return nil, false
	}
	return nested, true
}

// Messages returns every occurrence of num decoded as nested messages, in
// wire order, for repeated message fields.
func (m RawMessage) Messages(num uint32) []RawMessage {
	fs := m[num]
	out := make([]RawMessage, 0, len(fs))
	for _, f := range fs {
		nested, err := DecodeRaw(f.Bytes)
		if err != nil {
			continue
		}
		out = append(out, nested)
	}
	return out
}

// Strings returns every occurrence of num as a string, for repeated
// string/enum fields.
func (m RawMessage) Strings(num uint32) []string {
	fs := m[num]
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, string(f.Bytes))
	}
	return out
}

// --- encode-side builders ---

// Builder accumulates an encoded message body by field number, in the order
// fields are appended.
type Builder struct {
	buf []byte
}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) Bytes() []byte { return b.buf }

func (b *Builder) AppendVarint(num uint32, v uint64) *Builder {
	b.buf = protowire.AppendTag(b.buf, protowire.Number(num), protowire.VarintType)
	b.buf = protowire.AppendVarint(b.buf, v)
	return b
}

func (b *Builder) AppendBool(num uint32, v bool) *Builder {
	if v {
		return b.AppendVarint(num, 1)
	}
	return b.AppendVarint(num, 0)
}

func (b *Builder) AppendInt64(num uint32, v int64) *Builder {
	return b.AppendVarint(num, uint64(v))
}

func (b *Builder) AppendString(num uint32, s string) *Builder {
	if s == "" {
		return b
	}
	b.buf = protowire.AppendTag(b.buf, protowire.Number(num), protowire.BytesType)
	b.buf = protowire.AppendBytes(b.buf, []byte(s))
	return b
}

func (b *Builder) AppendBytes(num uint32, v []byte) *Builder {
	if len(v) == 0 {
		return b
	}
	b.buf = protowire.AppendTag(b.buf, protowire.Number(num), protowire.BytesType)
	b.buf = protowire.AppendBytes(b.buf, v)
	return b
}

// AppendMessage embeds a pre-encoded nested message body under num. An empty
// body is still written (Warp uses empty messages as struct-shaped markers,
// e.g. referenced_attachments:{}).
func (b *Builder) AppendMessage(num uint32, body []byte) *Builder {
	b.buf = protowire.AppendTag(b.buf, protowire.Number(num), protowire.BytesType)
	b.buf = protowire.AppendBytes(b.buf, body)
	return b
}
