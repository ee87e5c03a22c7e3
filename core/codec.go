package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// partnerFormatVersion is written first in every encoded partner.
const partnerFormatVersion = 1

// ErrCorruptRecord indicates an encoded record could not be decoded.
var ErrCorruptRecord = errors.New("corrupt partner record")

// IDMUS is the MUS serializer for ID.
var IDMUS = idMUS{}

// PartnerMUS is the MUS serializer for Partner.
var PartnerMUS = partnerMUS{}

// VectorMUS is the MUS serializer for a raw embedding vector.
var VectorMUS = vectorMUS{}

// LexemesMUS is the MUS serializer for a lexeme list.
var LexemesMUS = lexemesMUS{}

type idMUS struct{}

func (idMUS) Size(id ID) int {
	return varint.Uint64.Size(uint64(id))
}

func (idMUS) Marshal(id ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(id), bs)
}

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

type vectorMUS struct{}

func (vectorMUS) Size(v []float32) int {
	size := varint.Uint64.Size(uint64(len(v)))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

func (vectorMUS) Marshal(v []float32, bs []byte) int {
	n := varint.Uint64.Marshal(uint64(len(v)), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

func (vectorMUS) Unmarshal(bs []byte) ([]float32, int, error) {
	r := reader{bs: bs}
	count := r.length()
	if r.err != nil {
		return nil, r.n, r.err
	}
	if count == 0 {
		return nil, r.n, nil
	}
	v := make([]float32, count)
	for i := range v {
		v[i] = r.float32()
	}
	return v, r.n, r.err
}

type lexemesMUS struct{}

func (lexemesMUS) Size(lxs []Lexeme) int {
	var s sizer
	s.lexemes(lxs)
	return s.n
}

func (lexemesMUS) Marshal(lxs []Lexeme, bs []byte) int {
	w := writer{bs: bs}
	w.lexemes(lxs)
	return w.n
}

func (lexemesMUS) Unmarshal(bs []byte) ([]Lexeme, int, error) {
	r := reader{bs: bs}
	lxs := r.lexemes()
	return lxs, r.n, r.err
}

type partnerMUS struct{}

func (partnerMUS) Size(p Partner) int {
	var s sizer
	s.uint(partnerFormatVersion)
	s.uint(uint64(p.Id))
	s.str(p.Name)
	for _, t := range []*string{p.Description, p.Industry, p.Location, p.Website, p.ContactEmail, p.ContactPhone} {
		s.optional(t)
	}
	s.attributes(p.AdditionalData)
	s.n += VectorMUS.Size(p.Embedding)
	s.lexemes(p.SearchableText)
	s.str(p.Digest)
	s.time(p.CreatedAt)
	s.time(p.UpdatedAt)
	return s.n
}

func (partnerMUS) Marshal(p Partner, bs []byte) int {
	w := writer{bs: bs}
	w.uint(partnerFormatVersion)
	w.uint(uint64(p.Id))
	w.str(p.Name)
	for _, t := range []*string{p.Description, p.Industry, p.Location, p.Website, p.ContactEmail, p.ContactPhone} {
		w.optional(t)
	}
	w.attributes(p.AdditionalData)
	w.n += VectorMUS.Marshal(p.Embedding, w.bs[w.n:])
	w.lexemes(p.SearchableText)
	w.str(p.Digest)
	w.time(p.CreatedAt)
	w.time(p.UpdatedAt)
	return w.n
}

func (partnerMUS) Unmarshal(bs []byte) (Partner, int, error) {
	var p Partner
	r := reader{bs: bs}
	if v := r.uint(); r.err == nil && v != partnerFormatVersion {
		return p, r.n, fmt.Errorf("%w: unsupported format version %d", ErrCorruptRecord, v)
	}
	p.Id = ID(r.uint())
	p.Name = r.str()
	for _, t := range []**string{&p.Description, &p.Industry, &p.Location, &p.Website, &p.ContactEmail, &p.ContactPhone} {
		*t = r.optional()
	}
	p.AdditionalData = r.attributes(0)
	if r.err == nil {
		vec, n, err := VectorMUS.Unmarshal(r.bs[r.n:])
		r.n += n
		r.err = err
		p.Embedding = vec
	}
	p.SearchableText = r.lexemes()
	p.Digest = r.str()
	p.CreatedAt = r.time()
	p.UpdatedAt = r.time()
	if r.err != nil {
		return Partner{}, r.n, fmt.Errorf("%w: %w", ErrCorruptRecord, r.err)
	}
	return p, r.n, nil
}

// maxValueDepth bounds nesting of attribute objects and lists on decode.
const maxValueDepth = 64

type sizer struct{ n int }

func (s *sizer) uint(v uint64) { s.n += varint.Uint64.Size(v) }
func (s *sizer) str(v string)  { s.n += ord.String.Size(v) }

func (s *sizer) optional(v *string) {
	s.n += ord.Bool.Size(v != nil)
	if v != nil {
		s.str(*v)
	}
}

func (s *sizer) time(t time.Time) {
	s.n += varint.Int64.Size(unixMicro(t))
}

func (s *sizer) attributes(a Attributes) {
	s.uint(uint64(len(a)))
	for _, attr := range a {
		s.str(attr.Key)
		s.value(attr.Value)
	}
}

func (s *sizer) value(v Value) {
	s.uint(uint64(v.kind))
	switch v.kind {
	case KindString:
		s.str(v.str)
	case KindNumber:
		s.n += raw.Float64.Size(v.num)
	case KindBool:
		s.n += ord.Bool.Size(v.b)
	case KindObject:
		s.attributes(v.obj)
	case KindList:
		s.uint(uint64(len(v.list)))
		for _, item := range v.list {
			s.value(item)
		}
	}
}

func (s *sizer) lexemes(lxs []Lexeme) {
	s.uint(uint64(len(lxs)))
	for _, lx := range lxs {
		s.str(lx.Term)
		s.uint(uint64(lx.Class))
		s.uint(uint64(len(lx.Positions)))
		for _, pos := range lx.Positions {
			s.uint(uint64(pos))
		}
	}
}

type writer struct {
	bs []byte
	n  int
}

func (w *writer) uint(v uint64) { w.n += varint.Uint64.Marshal(v, w.bs[w.n:]) }
func (w *writer) str(v string)  { w.n += ord.String.Marshal(v, w.bs[w.n:]) }

func (w *writer) optional(v *string) {
	w.n += ord.Bool.Marshal(v != nil, w.bs[w.n:])
	if v != nil {
		w.str(*v)
	}
}

func (w *writer) time(t time.Time) {
	w.n += varint.Int64.Marshal(unixMicro(t), w.bs[w.n:])
}

func (w *writer) attributes(a Attributes) {
	w.uint(uint64(len(a)))
	for _, attr := range a {
		w.str(attr.Key)
		w.value(attr.Value)
	}
}

func (w *writer) value(v Value) {
	w.uint(uint64(v.kind))
	switch v.kind {
	case KindString:
		w.str(v.str)
	case KindNumber:
		w.n += raw.Float64.Marshal(v.num, w.bs[w.n:])
	case KindBool:
		w.n += ord.Bool.Marshal(v.b, w.bs[w.n:])
	case KindObject:
		w.attributes(v.obj)
	case KindList:
		w.uint(uint64(len(v.list)))
		for _, item := range v.list {
			w.value(item)
		}
	}
}

func (w *writer) lexemes(lxs []Lexeme) {
	w.uint(uint64(len(lxs)))
	for _, lx := range lxs {
		w.str(lx.Term)
		w.uint(uint64(lx.Class))
		w.uint(uint64(len(lx.Positions)))
		for _, pos := range lx.Positions {
			w.uint(uint64(pos))
		}
	}
}

// reader decodes sequentially and latches the first error.
type reader struct {
	bs  []byte
	n   int
	err error
}

func (r *reader) uint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

// length reads a collection length and rejects values larger than the
// remaining input, which every element needs at least one byte of.
func (r *reader) length() int {
	v := r.uint()
	if r.err == nil && v > uint64(len(r.bs)-r.n) {
		r.err = fmt.Errorf("length %d exceeds remaining %d bytes", v, len(r.bs)-r.n)
		return 0
	}
	return int(v)
}

func (r *reader) str() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) bool() bool {
	if r.err != nil {
		return false
	}
	v, n, err := ord.Bool.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) float32() float32 {
	if r.err != nil {
		return 0
	}
	v, n, err := raw.Float32.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) float64() float64 {
	if r.err != nil {
		return 0
	}
	v, n, err := raw.Float64.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) optional() *string {
	if !r.bool() || r.err != nil {
		return nil
	}
	v := r.str()
	return &v
}

func (r *reader) time() time.Time {
	if r.err != nil {
		return time.Time{}
	}
	v, n, err := varint.Int64.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	if err != nil || v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}

func (r *reader) attributes(depth int) Attributes {
	count := r.length()
	if r.err != nil || count == 0 {
		return nil
	}
	if depth > maxValueDepth {
		r.err = errors.New("additional data nested too deeply")
		return nil
	}
	attrs := make(Attributes, 0, count)
	for i := 0; i < count && r.err == nil; i++ {
		key := r.str()
		v := r.value(depth + 1)
		attrs = append(attrs, Attribute{Key: key, Value: v})
	}
	return attrs
}

func (r *reader) value(depth int) Value {
	kind := Kind(r.uint())
	if r.err != nil {
		return Value{}
	}
	switch kind {
	case KindNull:
		return NullValue()
	case KindString:
		return StringValue(r.str())
	case KindNumber:
		return NumberValue(r.float64())
	case KindBool:
		return BoolValue(r.bool())
	case KindObject:
		obj := r.attributes(depth)
		if obj == nil {
			obj = Attributes{}
		}
		return Value{kind: KindObject, obj: obj}
	case KindList:
		count := r.length()
		if depth > maxValueDepth {
			r.err = errors.New("additional data nested too deeply")
		}
		items := make([]Value, 0, count)
		for i := 0; i < count && r.err == nil; i++ {
			items = append(items, r.value(depth+1))
		}
		return Value{kind: KindList, list: items}
	}
	r.err = fmt.Errorf("unknown value kind %d", kind)
	return Value{}
}

func (r *reader) lexemes() []Lexeme {
	count := r.length()
	if r.err != nil || count == 0 {
		return nil
	}
	lxs := make([]Lexeme, 0, count)
	for i := 0; i < count && r.err == nil; i++ {
		lx := Lexeme{Term: r.str(), Class: WeightClass(r.uint())}
		npos := r.length()
		lx.Positions = make([]uint32, 0, npos)
		for j := 0; j < npos && r.err == nil; j++ {
			lx.Positions = append(lx.Positions, uint32(r.uint()))
		}
		lxs = append(lxs, lx)
	}
	return lxs
}

func unixMicro(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}
