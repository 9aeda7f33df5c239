package broadcast

import (
	"reflect"
	"testing"

	"whatsapp-messenger/internal/models"

	"gorm.io/datatypes"
)

func contactWith(name string, fields map[string]string) models.Contact {
	return models.Contact{
		ID:               name + "-id",
		Name:             name,
		Phone:            "+919876543210",
		AdditionalFields: datatypes.NewJSONType(fields),
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		contact  models.Contact
		want     string
	}{
		{
			name:     "name and extra field",
			template: "Hi {name}, your order {order_id} shipped",
			contact:  contactWith("Asha", map[string]string{"order_id": "X9"}),
			want:     "Hi Asha, your order X9 shipped",
		},
		{
			name:     "unknown placeholder untouched",
			template: "Hi {name}, bonus {bonus}",
			contact:  contactWith("Asha", nil),
			want:     "Hi Asha, bonus {bonus}",
		},
		{
			name:     "repeated placeholders",
			template: "{name}! {name}! {city}/{city}",
			contact:  contactWith("Ben", map[string]string{"city": "Pune"}),
			want:     "Ben! Ben! Pune/Pune",
		},
		{
			name:     "field keys are case sensitive",
			template: "{Company} vs {company}",
			contact:  contactWith("Chen", map[string]string{"company": "Acme"}),
			want:     "{Company} vs Acme",
		},
		{
			name:     "reserved extra field never overrides contact name",
			template: "Hi {name}",
			contact:  contactWith("Dara", map[string]string{"name": "Impostor", "Name": "Other"}),
			want:     "Hi Dara",
		},
		{
			name:     "phone placeholder is not a field",
			template: "call {phone}",
			contact:  contactWith("Eve", nil),
			want:     "call {phone}",
		},
		{
			name:     "no placeholders",
			template: "Plain text",
			contact:  contactWith("Fay", map[string]string{"x": "y"}),
			want:     "Plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.template, tt.contact); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderIsPure(t *testing.T) {
	fields := map[string]string{"b": "{a}", "a": "1"}
	c := contactWith("Asha", fields)
	tmpl := "{name} {a} {b} {zzz}"

	first := Render(tmpl, c)
	second := Render(tmpl, c)
	if first != second {
		t.Fatalf("Render not deterministic: %q vs %q", first, second)
	}
	// Keys apply in ascending order, so a value introduced by a later key is
	// not expanded again.
	if first != "Asha 1 {a} {zzz}" {
		t.Errorf("Render() = %q", first)
	}
	if !reflect.DeepEqual(c.Fields(), map[string]string{"b": "{a}", "a": "1"}) {
		t.Errorf("contact fields mutated: %v", c.Fields())
	}
}

func TestPlaceholders(t *testing.T) {
	got := Placeholders("Hi {name}, order {order_id} for {name} at {city} {not a field} {}")
	want := []string{"name", "order_id", "city"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Placeholders() = %v, want %v", got, want)
	}
	if got := Placeholders("nothing here"); got == nil || len(got) != 0 {
		t.Errorf("Placeholders(no match) = %#v, want empty non-nil", got)
	}
}
