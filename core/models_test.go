package core

import (
	"testing"
)

func TestPartnerPatch_Apply(t *testing.T) {
	p := &Partner{
		Name:        "Acme",
		Description: Text("widgets"),
		Industry:    Text("Manufacturing"),
	}
	attrs := Attributes{{Key: "size", Value: NumberValue(50)}}

	patch := PartnerPatch{
		Name:           Text("Acme Corp"),
		Description:    ClearText(),
		Location:       SetText("Berlin"),
		AdditionalData: &attrs,
	}
	if patch.IsEmpty() {
		t.Fatal("patch with changes reported empty")
	}
	patch.Apply(p)

	if p.Name != "Acme Corp" {
		t.Errorf("Name = %q", p.Name)
	}
	if p.Description != nil {
		t.Errorf("Description = %q, want nil", *p.Description)
	}
	if p.Industry == nil || *p.Industry != "Manufacturing" {
		t.Errorf("Industry changed unexpectedly")
	}
	if p.Location == nil || *p.Location != "Berlin" {
		t.Errorf("Location not set")
	}
	if !p.AdditionalData.Equal(attrs) {
		t.Errorf("AdditionalData = %v", p.AdditionalData)
	}

	// Mutating the patch source afterwards must not leak into the partner.
	attrs.Set("size", NumberValue(60))
	v, _ := p.AdditionalData.Get("size")
	if v.Number() != 50 {
		t.Errorf("AdditionalData aliased patch input")
	}
}

func TestPartnerPatch_IsEmpty(t *testing.T) {
	if !(PartnerPatch{}).IsEmpty() {
		t.Error("zero patch should be empty")
	}
}

func TestPartner_Clone(t *testing.T) {
	p := &Partner{
		Id:             7,
		Name:           "Acme",
		Website:        Text("acme.example"),
		AdditionalData: Attributes{{Key: "tags", Value: ListValue(StringValue("a"))}},
		Embedding:      []float32{1, 2},
		SearchableText: []Lexeme{{Term: "acme", Class: WeightA, Positions: []uint32{1}}},
	}
	c := p.Clone()
	*c.Website = "other"
	c.Embedding[0] = 9
	c.SearchableText[0].Positions[0] = 5

	if *p.Website != "acme.example" || p.Embedding[0] != 1 || p.SearchableText[0].Positions[0] != 1 {
		t.Error("Clone shares state with original")
	}
}
