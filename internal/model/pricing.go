package model

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// =============================================================================
// DEMO PRICING
// =============================================================================
//
// The backend item record has no price field. Prices come from a static,
// process-wide table keyed by item name, in whole rupees, with a fixed
// fallback for names the table does not know.
//
// This table is a second source of truth. If the backend ever gains a real
// price field, the backend value must replace this lookup; until then totals
// shown to users are demo values and are never sent to the backend.
// =============================================================================

// FallbackPrice is charged for items whose name is not in the price table.
const FallbackPrice int64 = 9999

var priceTable = map[string]int64{
	"Laptop":     79999,
	"Smartphone": 49999,
	"Headphones": 7999,
	"Keyboard":   3999,
	"Mouse":      1999,
	"Monitor":    24999,
	"Tablet":     34999,
	"Webcam":     4999,
}

// Price returns the demo unit price for an item name.
func Price(name string) int64 {
	if p, ok := priceTable[name]; ok {
		return p
	}
	return FallbackPrice
}

// LinePrice is the unit price of the line's item times its quantity.
// Lines without an item snapshot are priced at FallbackPrice.
func LinePrice(line CartLine) int64 {
	name := ""
	if line.Item != nil {
		name = line.Item.Name
	}
	return Price(name) * int64(line.Quantity)
}

// CartTotal sums LinePrice over every line. A nil cart totals zero.
func CartTotal(c *Cart) int64 {
	if c == nil {
		return 0
	}
	var total int64
	for _, line := range c.Lines {
		total += LinePrice(line)
	}
	return total
}

// OrderTotal prices the order's line snapshot with the same table.
func OrderTotal(o *Order) int64 {
	if o == nil {
		return 0
	}
	return CartTotal(&Cart{Lines: o.Lines})
}

var inr = message.NewPrinter(language.MustParse("en-IN"))

// FormatINR renders a whole-rupee amount with en-IN digit grouping, e.g. ₹1,999.
func FormatINR(amount int64) string {
	return inr.Sprintf("₹%d", amount)
}
