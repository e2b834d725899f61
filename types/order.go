package types

import "time"

// ItemRecord is one structured order line exchanged as evidence.
type ItemRecord struct {
	MedicineID           string  `json:"medicine_id,omitempty"`
	MedicineName         string  `json:"medicine_name"`
	Strength             string  `json:"strength,omitempty"`
	Quantity             int     `json:"quantity,omitempty"`
	Form                 string  `json:"form,omitempty"`
	UnitPrice            float64 `json:"unit_price,omitempty"`
	PrescriptionRequired bool    `json:"prescription_required,omitempty"`
	StockStatus          string  `json:"stock_status,omitempty"`
	MaxQuantity          int     `json:"max_quantity,omitempty"`
}

// OrderInfo is the merged view of one chain's evidence. Items carries the
// full multi-item order; the scalar fields mirror the first item for
// callers that only understand single-item orders.
type OrderInfo struct {
	Items []ItemRecord `json:"items"`

	MedicineName string `json:"medicine_name,omitempty"`
	Quantity     int    `json:"quantity,omitempty"`
	Strength     string `json:"strength,omitempty"`
	Form         string `json:"form,omitempty"`
}

// HasItems reports whether extraction produced at least one order line.
func (o *OrderInfo) HasItems() bool {
	return len(o.Items) > 0
}

// RequiresPrescription reports whether any merged line needs a prescription.
func (o *OrderInfo) RequiresPrescription() bool {
	for _, item := range o.Items {
		if item.PrescriptionRequired {
			return true
		}
	}
	return false
}

// Totals is the priced breakdown of an order.
type Totals struct {
	Subtotal    float64 `json:"subtotal"`
	Tax         float64 `json:"tax"`
	DeliveryFee float64 `json:"delivery_fee"`
	Total       float64 `json:"total"`
}

// OrderPreviewItem is one priced line inside a preview or confirmation.
type OrderPreviewItem struct {
	MedicineName string  `json:"medicine_name"`
	Strength     string  `json:"strength,omitempty"`
	Form         string  `json:"form,omitempty"`
	Quantity     int     `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
	LineTotal    float64 `json:"line_total"`
}

// OrderPreview is a priced, not-yet-committed order. A session holds at
// most one live preview; confirming it consumes it exactly once.
type OrderPreview struct {
	PreviewID            string             `json:"preview_id"`
	PatientID            string             `json:"patient_id"`
	Items                []OrderPreviewItem `json:"items"`
	Totals               Totals             `json:"totals"`
	RequiresPrescription bool               `json:"requires_prescription"`
	SafetyNotes          []string           `json:"safety_notes,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
}

// PendingPrescription captures an order paused while the user uploads a
// prescription. Resuming converts it into an OrderPreview and deletes it.
type PendingPrescription struct {
	OrderInfo OrderInfo   `json:"order_info"`
	Evidence  []Assertion `json:"evidence"`
	PatientID string      `json:"patient_id"`
	Uploaded  bool        `json:"uploaded"`
	Verified  bool        `json:"verified"`
	CreatedAt time.Time   `json:"created_at"`
}

// OrderConfirmation is the committed order produced from a consumed preview.
type OrderConfirmation struct {
	OrderID           string             `json:"order_id"`
	PatientID         string             `json:"patient_id"`
	Items             []OrderPreviewItem `json:"items"`
	Subtotal          float64            `json:"subtotal"`
	Tax               float64            `json:"tax"`
	DeliveryFee       float64            `json:"delivery_fee"`
	TotalAmount       float64            `json:"total_amount"`
	Status            string             `json:"status"`
	CreatedAt         time.Time          `json:"created_at"`
	EstimatedDelivery time.Time          `json:"estimated_delivery,omitempty"`
}

// Order status values.
const (
	OrderStatusConfirmed = "confirmed"
	OrderStatusScheduled = "scheduled"
)
