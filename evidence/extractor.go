// Package evidence turns the assertion list accumulated by a routing chain
// into a normalized, multi-item order description.
package evidence

import (
	"strconv"
	"strings"

	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
)

// Extract merges an evidence list into an OrderInfo. Structured item_data
// assertions are grouped by normalized medicine name; two records for the
// same medicine collapse into one line when their strengths match or when
// either strength is empty (a later hop refining an earlier sketch). When
// no structured assertions exist the legacy scalar keys populate a single
// item. The result depends only on evidence order, never on map iteration.
func Extract(assertions []types.Assertion) types.OrderInfo {
	var (
		order   []string
		byName  = make(map[string][]*types.ItemRecord)
		scalars = make(map[string]string)
	)

	for _, a := range assertions {
		switch a.Kind {
		case types.AssertionItem:
			if a.Item == nil || a.Item.MedicineName == "" {
				continue
			}
			record := *a.Item
			key := normalize(record.MedicineName)
			variants, seen := byName[key]
			if !seen {
				order = append(order, key)
				byName[key] = []*types.ItemRecord{&record}
				continue
			}
			if existing := matchVariant(variants, record.Strength); existing != nil {
				mergeRecord(existing, &record)
			} else {
				byName[key] = append(variants, &record)
			}
		case types.AssertionScalar:
			// Last write wins for repeated scalar keys.
			scalars[a.Key] = a.Value
		}
	}

	var info types.OrderInfo
	for _, key := range order {
		for _, record := range byName[key] {
			info.Items = append(info.Items, *record)
		}
	}

	if len(info.Items) == 0 {
		if item, ok := itemFromScalars(scalars); ok {
			info.Items = append(info.Items, item)
		}
	}

	if len(info.Items) > 0 {
		first := info.Items[0]
		info.MedicineName = first.MedicineName
		info.Quantity = first.Quantity
		info.Strength = first.Strength
		info.Form = first.Form
	}
	return info
}

// matchVariant finds the order line a new record refines, if any.
func matchVariant(variants []*types.ItemRecord, strength string) *types.ItemRecord {
	s := normalize(strength)
	for _, v := range variants {
		vs := normalize(v.Strength)
		if vs == s || vs == "" || s == "" {
			return v
		}
	}
	return nil
}

// mergeRecord overlays src onto dst field by field, new values winning.
func mergeRecord(dst, src *types.ItemRecord) {
	if src.MedicineID != "" {
		dst.MedicineID = src.MedicineID
	}
	if src.MedicineName != "" {
		dst.MedicineName = src.MedicineName
	}
	if src.Strength != "" {
		dst.Strength = src.Strength
	}
	if src.Quantity > 0 {
		dst.Quantity = src.Quantity
	}
	if src.Form != "" {
		dst.Form = src.Form
	}
	if src.UnitPrice > 0 {
		dst.UnitPrice = src.UnitPrice
	}
	if src.PrescriptionRequired {
		dst.PrescriptionRequired = true
	}
	if src.StockStatus != "" {
		dst.StockStatus = src.StockStatus
	}
	if src.MaxQuantity > 0 {
		dst.MaxQuantity = src.MaxQuantity
	}
}

// itemFromScalars builds a single item from legacy key=value assertions.
func itemFromScalars(scalars map[string]string) (types.ItemRecord, bool) {
	name := strings.TrimSpace(scalars["medicine_name"])
	if name == "" {
		return types.ItemRecord{}, false
	}
	item := types.ItemRecord{
		MedicineName: name,
		Strength:     strings.TrimSpace(scalars["strength"]),
		Form:         strings.TrimSpace(scalars["form"]),
	}
	if q, err := strconv.Atoi(strings.TrimSpace(scalars["quantity"])); err == nil && q > 0 {
		item.Quantity = q
	}
	if scalars["prescription_required"] == "true" {
		item.PrescriptionRequired = true
	}
	return item, true
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
