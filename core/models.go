package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// EmbeddingDimensions is the fixed length of every stored partner embedding.
// Embedders must declare the same output size.
const EmbeddingDimensions = 1024

// ID is a unique identifier for domain entities.
// Partner IDs are assigned by the store and never reused.
type ID uint64

// Partner is the recommendable entity.
//
// Embedding, SearchableText and Digest are derived from the other fields and
// are rewritten together with them on every mutation.
type Partner struct {
	Id             ID         `json:"id"`
	Name           string     `json:"name"`
	Description    *string    `json:"description"`
	Industry       *string    `json:"industry"`
	Location       *string    `json:"location"`
	Website        *string    `json:"website"`
	ContactEmail   *string    `json:"contact_email"`
	ContactPhone   *string    `json:"contact_phone"`
	AdditionalData Attributes `json:"additional_data"`
	Embedding      []float32  `json:"-"`
	SearchableText []Lexeme   `json:"-"`
	Digest         string     `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Clone returns a deep copy of the partner.
func (p *Partner) Clone() *Partner {
	if p == nil {
		return nil
	}
	c := *p
	c.Description = cloneText(p.Description)
	c.Industry = cloneText(p.Industry)
	c.Location = cloneText(p.Location)
	c.Website = cloneText(p.Website)
	c.ContactEmail = cloneText(p.ContactEmail)
	c.ContactPhone = cloneText(p.ContactPhone)
	c.AdditionalData = p.AdditionalData.Clone()
	if p.Embedding != nil {
		c.Embedding = append([]float32(nil), p.Embedding...)
	}
	if p.SearchableText != nil {
		c.SearchableText = make([]Lexeme, len(p.SearchableText))
		for i, lx := range p.SearchableText {
			c.SearchableText[i] = Lexeme{
				Term:      lx.Term,
				Class:     lx.Class,
				Positions: append([]uint32(nil), lx.Positions...),
			}
		}
	}
	return &c
}

// FieldText returns the raw text of a field and whether it is present.
// FieldAdditionalData yields the serialized attribute bag.
func (p *Partner) FieldText(f Field) (string, bool) {
	switch f {
	case FieldName:
		return p.Name, true
	case FieldDescription:
		return deref(p.Description)
	case FieldIndustry:
		return deref(p.Industry)
	case FieldLocation:
		return deref(p.Location)
	case FieldWebsite:
		return deref(p.Website)
	case FieldContactEmail:
		return deref(p.ContactEmail)
	case FieldContactPhone:
		return deref(p.ContactPhone)
	case FieldAdditionalData:
		if len(p.AdditionalData) == 0 {
			return "", false
		}
		return p.AdditionalData.String(), true
	}
	return "", false
}

// PartnerInput carries the caller-writable fields of a new partner.
type PartnerInput struct {
	Name           string     `json:"name"`
	Description    *string    `json:"description,omitempty"`
	Industry       *string    `json:"industry,omitempty"`
	Location       *string    `json:"location,omitempty"`
	Website        *string    `json:"website,omitempty"`
	ContactEmail   *string    `json:"contact_email,omitempty"`
	ContactPhone   *string    `json:"contact_phone,omitempty"`
	AdditionalData Attributes `json:"additional_data,omitempty"`
}

// NewPartner builds an unsaved partner from input.
func NewPartner(in PartnerInput) *Partner {
	return &Partner{
		Name:           in.Name,
		Description:    cloneText(in.Description),
		Industry:       cloneText(in.Industry),
		Location:       cloneText(in.Location),
		Website:        cloneText(in.Website),
		ContactEmail:   cloneText(in.ContactEmail),
		ContactPhone:   cloneText(in.ContactPhone),
		AdditionalData: in.AdditionalData.Clone(),
	}
}

// TextChange describes the change of one optional text field in a PartnerPatch.
// The zero value leaves the field untouched.
type TextChange struct {
	set   bool
	value *string
}

// SetText returns a change that assigns v.
func SetText(v string) TextChange {
	return TextChange{set: true, value: &v}
}

// ClearText returns a change that sets the field to null.
func ClearText() TextChange {
	return TextChange{set: true}
}

// IsSet reports whether the change modifies its field.
func (c TextChange) IsSet() bool {
	return c.set
}

func (c TextChange) apply(dst **string) {
	if c.set {
		*dst = cloneText(c.value)
	}
}

// PartnerPatch is a partial update. Only the fields it sets are changed;
// AdditionalData, when set, replaces the whole bag.
type PartnerPatch struct {
	Name           *string
	Description    TextChange
	Industry       TextChange
	Location       TextChange
	Website        TextChange
	ContactEmail   TextChange
	ContactPhone   TextChange
	AdditionalData *Attributes
}

// IsEmpty reports whether the patch changes nothing.
func (p PartnerPatch) IsEmpty() bool {
	return p.Name == nil && !p.Description.set && !p.Industry.set && !p.Location.set &&
		!p.Website.set && !p.ContactEmail.set && !p.ContactPhone.set && p.AdditionalData == nil
}

// Apply copies the patched fields onto partner. Derived fields are not touched.
func (p PartnerPatch) Apply(partner *Partner) {
	if p.Name != nil {
		partner.Name = *p.Name
	}
	p.Description.apply(&partner.Description)
	p.Industry.apply(&partner.Industry)
	p.Location.apply(&partner.Location)
	p.Website.apply(&partner.Website)
	p.ContactEmail.apply(&partner.ContactEmail)
	p.ContactPhone.apply(&partner.ContactPhone)
	if p.AdditionalData != nil {
		partner.AdditionalData = p.AdditionalData.Clone()
	}
}

// UnmarshalJSON decodes a partial update. Absent keys leave fields
// untouched, null clears an optional field. A null name decodes as an
// empty name, which validation rejects.
func (p *PartnerPatch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = PartnerPatch{}
	texts := map[string]*TextChange{
		"description":   &p.Description,
		"industry":      &p.Industry,
		"location":      &p.Location,
		"website":       &p.Website,
		"contact_email": &p.ContactEmail,
		"contact_phone": &p.ContactPhone,
	}
	for key, value := range raw {
		isNull := string(value) == "null"
		switch {
		case key == "name":
			var name string
			if !isNull {
				if err := json.Unmarshal(value, &name); err != nil {
					return fmt.Errorf("name: %w", err)
				}
			}
			p.Name = &name
		case key == "additional_data":
			attrs := Attributes{}
			if !isNull {
				if err := attrs.UnmarshalJSON(value); err != nil {
					return fmt.Errorf("additional_data: %w", err)
				}
			}
			p.AdditionalData = &attrs
		case texts[key] != nil:
			if isNull {
				*texts[key] = ClearText()
				continue
			}
			var v string
			if err := json.Unmarshal(value, &v); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*texts[key] = SetText(v)
		default:
			return fmt.Errorf("unknown field %q", key)
		}
	}
	return nil
}

// Match is a ranked partner reference produced by a search strategy.
type Match struct {
	Id    ID
	Score float64
}

// SearchResult pairs a resolved partner with its strategy score.
type SearchResult struct {
	Partner *Partner `json:"partner"`
	Score   float64  `json:"score"`
}

// SearchRequest is the input of a recommendation query.
type SearchRequest struct {
	Query string `json:"query"`
	TopN  int    `json:"top_n"`
}

// SearchResponse echoes the query with its ordered results.
type SearchResponse struct {
	Query   string          `json:"query"`
	Results []*SearchResult `json:"results"`
}

// Text returns a pointer to s, for filling optional partner fields.
func Text(s string) *string {
	return &s
}

func cloneText(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func deref(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	return *s, true
}
