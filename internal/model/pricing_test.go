package model

import (
	"testing"
)

func TestPrice(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int64
	}{
		{"known item", "Mouse", 1999},
		{"most expensive", "Laptop", 79999},
		{"unknown item", "Toaster", FallbackPrice},
		{"empty name", "", FallbackPrice},
		{"case sensitive", "mouse", FallbackPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Price(tt.input); got != tt.want {
				t.Errorf("Price(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestLinePrice(t *testing.T) {
	line := CartLine{ItemID: 1, Quantity: 2, Item: &Item{ID: 1, Name: "Mouse"}}
	if got := LinePrice(line); got != 3998 {
		t.Errorf("LinePrice = %d, want 3998", got)
	}

	// No snapshot: priced at fallback
	bare := CartLine{ItemID: 7, Quantity: 3}
	if got := LinePrice(bare); got != 3*FallbackPrice {
		t.Errorf("LinePrice without item = %d, want %d", got, 3*FallbackPrice)
	}
}

func TestCartTotal(t *testing.T) {
	cart := &Cart{Lines: []CartLine{
		{ItemID: 1, Quantity: 2, Item: &Item{Name: "Mouse"}},
		{ItemID: 2, Quantity: 1, Item: &Item{Name: "Keyboard"}},
	}}

	if got := CartTotal(cart); got != 2*1999+3999 {
		t.Errorf("CartTotal = %d, want %d", got, 2*1999+3999)
	}
	if got := CartTotal(nil); got != 0 {
		t.Errorf("CartTotal(nil) = %d, want 0", got)
	}
	if got := CartTotal(NewCart()); got != 0 {
		t.Errorf("CartTotal(empty) = %d, want 0", got)
	}
}

func TestOrderTotal(t *testing.T) {
	order := &Order{ID: 1, Lines: []CartLine{{ItemID: 1, Quantity: 1, Item: &Item{Name: "Webcam"}}}}
	if got := OrderTotal(order); got != 4999 {
		t.Errorf("OrderTotal = %d, want 4999", got)
	}
}

func TestFormatINR(t *testing.T) {
	tests := []struct {
		amount int64
		want   string
	}{
		{0, "₹0"},
		{999, "₹999"},
		{1999, "₹1,999"},
		{79999, "₹79,999"},
	}

	for _, tt := range tests {
		if got := FormatINR(tt.amount); got != tt.want {
			t.Errorf("FormatINR(%d) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}
