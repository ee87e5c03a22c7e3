package core

import (
	"encoding/hex"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

// Placeholder stands in for a null optional field in the textual projection.
const Placeholder = "N/A"

// Field identifies a searchable partner field.
type Field uint8

const (
	FieldName Field = iota
	FieldDescription
	FieldIndustry
	FieldLocation
	FieldWebsite
	FieldContactEmail
	FieldContactPhone
	FieldAdditionalData
)

// ProjectedFields lists the fixed fields in projection order.
var ProjectedFields = []Field{
	FieldName,
	FieldDescription,
	FieldIndustry,
	FieldLocation,
	FieldWebsite,
	FieldContactEmail,
	FieldContactPhone,
}

var fieldNames = [...]string{
	"name", "description", "industry", "location", "website",
	"contact_email", "contact_phone", "additional_data",
}

var fieldLabels = [...]string{
	"Name", "Description", "Industry", "Location", "Website",
	"Contact Email", "Contact Phone", "",
}

func (f Field) String() string {
	if int(f) < len(fieldNames) {
		return fieldNames[f]
	}
	return "unknown"
}

// Label is the line prefix used by the textual projection.
func (f Field) Label() string {
	if int(f) < len(fieldLabels) {
		return fieldLabels[f]
	}
	return ""
}

// Class returns the lexical weight class of the field.
func (f Field) Class() WeightClass {
	switch f {
	case FieldName, FieldIndustry:
		return WeightA
	case FieldDescription:
		return WeightB
	case FieldLocation, FieldWebsite, FieldAdditionalData:
		return WeightC
	default:
		return WeightD
	}
}

// WeightClass is the lexical priority tier of a field, A highest.
type WeightClass uint8

const (
	WeightD WeightClass = iota + 1
	WeightC
	WeightB
	WeightA
)

func (w WeightClass) String() string {
	switch w {
	case WeightA:
		return "A"
	case WeightB:
		return "B"
	case WeightC:
		return "C"
	case WeightD:
		return "D"
	}
	return "?"
}

// Lexeme is one indexed term of a partner within one weight class.
// Positions are token offsets across the whole projection.
type Lexeme struct {
	Term      string
	Class     WeightClass
	Positions []uint32
}

// Segment is one line of a projection.
type Segment struct {
	Field Field
	Label string
	// Value is the rendered value, Placeholder when the field is null.
	Value string
	// Null is set when the field had no value.
	Null bool
}

// Line renders the segment as "Label: value".
func (s Segment) Line() string {
	return s.Label + ": " + s.Value
}

// Projection is the canonical, ordered text of a partner.
type Projection []Segment

// Project computes the textual projection of p: one segment per fixed
// field in order, then one per attribute in insertion order.
func Project(p *Partner) Projection {
	proj := make(Projection, 0, len(ProjectedFields)+len(p.AdditionalData))
	for _, f := range ProjectedFields {
		v, ok := p.FieldText(f)
		seg := Segment{Field: f, Label: f.Label(), Value: v}
		if !ok {
			seg.Value = Placeholder
			seg.Null = true
		}
		proj = append(proj, seg)
	}
	for _, attr := range p.AdditionalData {
		proj = append(proj, Segment{
			Field: FieldAdditionalData,
			Label: attr.Key,
			Value: attr.Value.String(),
		})
	}
	return proj
}

// Text joins the projection lines with newlines.
func (p Projection) Text() string {
	var sb strings.Builder
	for i, seg := range p {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(seg.Line())
	}
	return sb.String()
}

// Digest returns the hex BLAKE2b-256 digest of the projection text.
func (p Projection) Digest() string {
	h, _ := blake2b.New(32, nil)
	h.Write([]byte(p.Text()))
	return hex.EncodeToString(h.Sum(nil))
}
