package model

import (
	"encoding/json"
	"testing"
)

func TestMaterialRefsUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		cart    bool
		ids     []int64
		wantErr bool
	}{
		{name: "numbers", input: `[7, 9]`, ids: []int64{7, 9}},
		{name: "numeric strings", input: `["7","9"]`, ids: []int64{7, 9}},
		{name: "cart", input: `["cart"]`, cart: true},
		{name: "null", input: `null`},
		{name: "garbage", input: `["seven"]`, wantErr: true},
		{name: "not array", input: `"cart"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var refs MaterialRefs
			err := json.Unmarshal([]byte(tt.input), &refs)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if refs.Cart != tt.cart {
				t.Fatalf("cart = %v, want %v", refs.Cart, tt.cart)
			}
			if len(refs.IDs) != len(tt.ids) {
				t.Fatalf("ids = %v, want %v", refs.IDs, tt.ids)
			}
			for i := range tt.ids {
				if refs.IDs[i] != tt.ids[i] {
					t.Fatalf("ids = %v, want %v", refs.IDs, tt.ids)
				}
			}
		})
	}
}

func TestMoney(t *testing.T) {
	if got := FormatMinor(299); got != "2.99" {
		t.Fatalf("FormatMinor(299) = %s", got)
	}
	if got := FormatMinor(5); got != "0.05" {
		t.Fatalf("FormatMinor(5) = %s", got)
	}

	cases := map[string]int64{"2.99": 299, "10": 1000, "0.5": 50, ".75": 75, "92233720368547757.99": 9223372036854775799}
	for in, want := range cases {
		got, err := ParseMajor(in)
		if err != nil || got != want {
			t.Fatalf("ParseMajor(%q) = %d, %v; want %d", in, got, err, want)
		}
	}

	for _, bad := range []string{"", "-1", "1.999", "abc", "184467440737095517", "92233720368547758.07"} {
		if _, err := ParseMajor(bad); err == nil {
			t.Fatalf("ParseMajor(%q) expected error", bad)
		}
	}
}
