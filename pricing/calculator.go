// Package pricing resolves unit prices and computes order totals. One
// calculator serves both the preview and the confirmation path so the two
// can never disagree on a total.
package pricing

import (
	"math"

	"github.com/pharmaflow-project/pharmacy-multi-agent/logger"
	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
)

// Catalog resolves unit prices for medicines. A miss is not an error; the
// calculator substitutes the fallback price.
type Catalog interface {
	UnitPrice(medicineName, strength string) (float64, bool)
}

// Calculator prices order items.
type Calculator struct {
	catalog       Catalog
	taxRate       float64
	deliveryFee   float64
	fallbackPrice float64
	log           *logger.Logger
}

// NewCalculator creates a calculator over the given catalog.
func NewCalculator(catalog Catalog, taxRate, deliveryFee, fallbackPrice float64) *Calculator {
	return &Calculator{
		catalog:       catalog,
		taxRate:       taxRate,
		deliveryFee:   deliveryFee,
		fallbackPrice: fallbackPrice,
		log:           logger.GetLogger().WithField("component", "pricing"),
	}
}

// ResolvePrices turns merged order lines into priced preview items. Prices
// already carried in the evidence win over a catalog lookup; a lookup miss
// falls back to the configured default price. Quantities pass through as
// given; the caller decides whether an order without one may be priced.
func (c *Calculator) ResolvePrices(items []types.ItemRecord) []types.OrderPreviewItem {
	priced := make([]types.OrderPreviewItem, 0, len(items))
	for _, item := range items {
		unitPrice := item.UnitPrice
		if unitPrice <= 0 {
			if p, ok := c.catalog.UnitPrice(item.MedicineName, item.Strength); ok {
				unitPrice = p
			} else {
				c.log.Warnf("no catalog price for %s %s, using fallback", item.MedicineName, item.Strength)
				unitPrice = c.fallbackPrice
			}
		}
		priced = append(priced, types.OrderPreviewItem{
			MedicineName: item.MedicineName,
			Strength:     item.Strength,
			Form:         item.Form,
			Quantity:     item.Quantity,
			UnitPrice:    unitPrice,
			LineTotal:    round2(unitPrice * float64(item.Quantity)),
		})
	}
	return priced
}

// Totals computes the priced breakdown for the given items. It is a pure
// function of its inputs: identical items always produce identical totals.
func (c *Calculator) Totals(items []types.OrderPreviewItem) types.Totals {
	return ComputeTotals(items, c.taxRate, c.deliveryFee)
}

// ComputeTotals is the single totals formula shared by preview and
// confirmation.
func ComputeTotals(items []types.OrderPreviewItem, taxRate, deliveryFee float64) types.Totals {
	var subtotal float64
	for _, item := range items {
		subtotal += item.UnitPrice * float64(item.Quantity)
	}
	subtotal = round2(subtotal)
	tax := round2(subtotal * taxRate)
	fee := round2(deliveryFee)
	return types.Totals{
		Subtotal:    subtotal,
		Tax:         tax,
		DeliveryFee: fee,
		Total:       round2(subtotal + tax + fee),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
