package cache

import "testing"

func TestKeyString(t *testing.T) {
	tests := []struct {
		name     string
		key      Key
		expected string
	}{
		{
			name:     "plain part number",
			key:      Key{ProductNumber: "FP034K-200-ND", ManufacturerID: 19},
			expected: "digikey:details:FP034K-200-ND:mid=19",
		},
		{
			name:     "no manufacturer filter",
			key:      Key{ProductNumber: "296-6501-1-ND"},
			expected: "digikey:details:296-6501-1-ND:mid=0",
		},
		{
			name:     "spaces and colons normalized",
			key:      Key{ProductNumber: `FP-301 3/4" BL: 200'`, ManufacturerID: 19},
			expected: `digikey:details:FP-301_3/4"_BL__200':mid=19`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestKeyString_Deterministic(t *testing.T) {
	key := Key{ProductNumber: "ATMEGA328P-PU", ManufacturerID: 2946}
	first := key.String()
	for i := 0; i < 10; i++ {
		if got := key.String(); got != first {
			t.Fatalf("key not deterministic: %q vs %q", got, first)
		}
	}
}

func TestKeyString_DistinctManufacturers(t *testing.T) {
	a := Key{ProductNumber: "ATMEGA328P-PU", ManufacturerID: 1}
	b := Key{ProductNumber: "ATMEGA328P-PU", ManufacturerID: 2}
	if a.String() == b.String() {
		t.Errorf("keys for different manufacturers collide: %q", a.String())
	}
}
