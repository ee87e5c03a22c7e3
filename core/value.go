package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindObject
	KindList
)

// Value is one entry of a partner's open attribute bag.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	obj  Attributes
	list []Value
}

func NullValue() Value               { return Value{kind: KindNull} }
func StringValue(s string) Value     { return Value{kind: KindString, str: s} }
func NumberValue(f float64) Value    { return Value{kind: KindNumber, num: f} }
func BoolValue(b bool) Value         { return Value{kind: KindBool, b: b} }
func ObjectValue(a Attributes) Value { return Value{kind: KindObject, obj: a.Clone()} }

func ListValue(items ...Value) Value {
	return Value{kind: KindList, list: append([]Value(nil), items...)}
}

func (v Value) Kind() Kind             { return v.kind }
func (v Value) Str() string            { return v.str }
func (v Value) Number() float64        { return v.num }
func (v Value) Bool() bool             { return v.b }
func (v Value) Object() Attributes     { return v.obj }
func (v Value) List() []Value          { return v.list }
func (v Value) IsNull() bool           { return v.kind == KindNull }

// Equal reports deep equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindObject:
		return v.obj.Equal(o.obj)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
	}
	return true
}

func (v Value) clone() Value {
	switch v.kind {
	case KindObject:
		v.obj = v.obj.Clone()
	case KindList:
		items := make([]Value, len(v.list))
		for i, item := range v.list {
			items[i] = item.clone()
		}
		v.list = items
	}
	return v
}

// String renders the value as it appears in the textual projection.
// Top-level strings are raw; strings nested in objects or lists are quoted.
func (v Value) String() string {
	if v.kind == KindString {
		return v.str
	}
	var sb strings.Builder
	v.write(&sb)
	return sb.String()
}

func (v Value) write(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindString:
		sb.WriteString(strconv.Quote(v.str))
	case KindNumber:
		sb.WriteString(formatNumber(v.num))
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.b))
	case KindObject:
		v.obj.write(sb)
	case KindList:
		sb.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				sb.WriteString(", ")
			}
			item.write(sb)
		}
		sb.WriteByte(']')
	}
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindObject:
		return v.obj.MarshalJSON()
	case KindList:
		return json.Marshal(v.list)
	}
	return []byte("null"), nil
}

// UnmarshalJSON implements json.Unmarshaler. Object member order is kept.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	val, err := decodeValue(dec)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case nil:
		return NullValue(), nil
	case string:
		return StringValue(t), nil
	case bool:
		return BoolValue(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, err
		}
		return NumberValue(f), nil
	case json.Delim:
		switch t {
		case '{':
			attrs, err := decodeAttributes(dec)
			if err != nil {
				return Value{}, err
			}
			return Value{kind: KindObject, obj: attrs}, nil
		case '[':
			var items []Value
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Value{kind: KindList, list: items}, nil
		}
	}
	return Value{}, fmt.Errorf("unexpected JSON token %v", tok)
}

// Attribute is one key/value pair of an Attributes bag.
type Attribute struct {
	Key   string
	Value Value
}

// Attributes is an insertion-ordered mapping of string keys to values.
type Attributes []Attribute

// Set assigns key. An existing key keeps its position.
func (a *Attributes) Set(key string, v Value) {
	for i := range *a {
		if (*a)[i].Key == key {
			(*a)[i].Value = v
			return
		}
	}
	*a = append(*a, Attribute{Key: key, Value: v})
}

// Get returns the value stored under key.
func (a Attributes) Get(key string) (Value, bool) {
	for _, attr := range a {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return Value{}, false
}

// Delete removes key, preserving the order of the remaining entries.
func (a *Attributes) Delete(key string) {
	for i := range *a {
		if (*a)[i].Key == key {
			*a = append((*a)[:i], (*a)[i+1:]...)
			return
		}
	}
}

// Clone returns a deep copy.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	c := make(Attributes, len(a))
	for i, attr := range a {
		c[i] = Attribute{Key: attr.Key, Value: attr.Value.clone()}
	}
	return c
}

// Equal reports deep, order-sensitive equality.
func (a Attributes) Equal(o Attributes) bool {
	if len(a) != len(o) {
		return false
	}
	for i := range a {
		if a[i].Key != o[i].Key || !a[i].Value.Equal(o[i].Value) {
			return false
		}
	}
	return true
}

// String serializes the bag as an object literal, keys in insertion order.
func (a Attributes) String() string {
	var sb strings.Builder
	a.write(&sb)
	return sb.String()
}

func (a Attributes) write(sb *strings.Builder) {
	sb.WriteByte('{')
	for i, attr := range a {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Quote(attr.Key))
		sb.WriteString(": ")
		attr.Value.write(sb)
	}
	sb.WriteByte('}')
}

// MarshalJSON implements json.Marshaler, keeping key order.
func (a Attributes) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, attr := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(attr.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := attr.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, keeping key order.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*a = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("additional data must be a JSON object")
	}
	attrs, err := decodeAttributes(dec)
	if err != nil {
		return err
	}
	*a = attrs
	return nil
}

// decodeAttributes reads object members after the opening brace.
func decodeAttributes(dec *json.Decoder) (Attributes, error) {
	attrs := Attributes{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		attrs.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return attrs, nil
}
