// Package fulfillment commits a confirmed order preview: it decrements
// stock, records the order in patient history and issues the confirmation.
package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pharmaflow-project/pharmacy-multi-agent/catalog"
	"github.com/pharmaflow-project/pharmacy-multi-agent/logger"
	"github.com/pharmaflow-project/pharmacy-multi-agent/protocol"
	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
)

// Evidence keys on the fulfillment boundary.
const (
	PreviewDataKey      = "preview_data"
	ConfirmationDataKey = "confirmation_data"
)

const deliveryLeadTime = 48 * time.Hour

// Agent is the fulfillment collaborator. Confirmations are idempotent on
// the preview id: re-sending the same preview returns the original order
// instead of committing twice.
type Agent struct {
	catalog *catalog.Service
	log     *logger.Logger

	mu        sync.Mutex
	confirmed map[string]types.OrderConfirmation
}

func New(svc *catalog.Service) *Agent {
	return &Agent{
		catalog:   svc,
		log:       logger.GetLogger().WithField("component", "fulfillment-agent"),
		confirmed: make(map[string]types.OrderConfirmation),
	}
}

// Name implements protocol.Collaborator.
func (a *Agent) Name() types.AgentName {
	return types.AgentFulfillment
}

// Handle implements protocol.Collaborator.
func (a *Agent) Handle(ctx context.Context, req *protocol.RequestContext) (*types.AgentOutput, error) {
	preview, ok := previewFromEvidence(req.Evidence)
	if !ok {
		return &types.AgentOutput{
			Agent:    types.AgentFulfillment,
			Decision: types.DecisionNeedsInfo,
			Reason:   "No order preview present in the evidence.",
			Message:  "There is no priced order for me to place yet.",
		}, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, seen := a.confirmed[preview.PreviewID]; seen {
		a.log.WithSession(req.SessionID).Infof("Preview %s already committed as %s", preview.PreviewID, existing.OrderID)
		return confirmationOutput(existing, "Order already placed."), nil
	}

	// Verify stock for every line before touching any of it.
	for _, line := range preview.Items {
		med, found := a.catalog.FindMedicine(line.MedicineName, line.Strength, line.Form)
		if !found || med.StockLevel < line.Quantity {
			return &types.AgentOutput{
				Agent:    types.AgentFulfillment,
				Decision: types.DecisionRejected,
				Reason:   fmt.Sprintf("Stock changed since the preview: %s is no longer available in the requested quantity.", line.MedicineName),
				Message:  fmt.Sprintf("I'm sorry, %s sold out while your order was pending. Please start a new order.", line.MedicineName),
			}, nil
		}
	}
	for _, line := range preview.Items {
		a.catalog.DecreaseStock(line.MedicineName, line.Quantity)
	}

	now := time.Now()
	confirmation := types.OrderConfirmation{
		OrderID:           "ORD-" + strings.ToUpper(uuid.NewString()[:8]),
		PatientID:         preview.PatientID,
		Items:             preview.Items,
		Subtotal:          preview.Totals.Subtotal,
		Tax:               preview.Totals.Tax,
		DeliveryFee:       preview.Totals.DeliveryFee,
		TotalAmount:       preview.Totals.Total,
		Status:            types.OrderStatusConfirmed,
		CreatedAt:         now,
		EstimatedDelivery: now.Add(deliveryLeadTime),
	}

	for _, line := range preview.Items {
		a.catalog.RecordOrder(catalog.OrderRecord{
			PatientID:    preview.PatientID,
			MedicineName: line.MedicineName,
			Strength:     line.Strength,
			Quantity:     line.Quantity,
			OrderDate:    now,
		})
	}
	a.confirmed[preview.PreviewID] = confirmation

	a.log.WithSession(req.SessionID).Infof("Order %s committed for patient %s, total %.2f",
		confirmation.OrderID, confirmation.PatientID, confirmation.TotalAmount)

	return confirmationOutput(confirmation,
		fmt.Sprintf("Your order %s is confirmed. Total: $%.2f.", confirmation.OrderID, confirmation.TotalAmount)), nil
}

func confirmationOutput(c types.OrderConfirmation, message string) *types.AgentOutput {
	data, _ := json.Marshal(c)
	return &types.AgentOutput{
		Agent:    types.AgentFulfillment,
		Decision: types.DecisionApproved,
		Reason:   fmt.Sprintf("Order %s committed.", c.OrderID),
		Evidence: []types.Assertion{
			types.ScalarAssertion(ConfirmationDataKey, string(data)),
			types.ScalarAssertion("order_id", c.OrderID),
		},
		Message: message,
	}
}

// PreviewAssertion packs a preview snapshot for the fulfillment boundary.
func PreviewAssertion(p types.OrderPreview) types.Assertion {
	data, _ := json.Marshal(p)
	return types.ScalarAssertion(PreviewDataKey, string(data))
}

func previewFromEvidence(evidence []types.Assertion) (types.OrderPreview, bool) {
	for _, a := range evidence {
		if a.Kind == types.AssertionScalar && a.Key == PreviewDataKey {
			var p types.OrderPreview
			if err := json.Unmarshal([]byte(a.Value), &p); err == nil && p.PreviewID != "" {
				return p, true
			}
		}
	}
	return types.OrderPreview{}, false
}

// ConfirmationFromEvidence extracts the committed order from fulfillment
// output evidence.
func ConfirmationFromEvidence(evidence []types.Assertion) (types.OrderConfirmation, bool) {
	for _, a := range evidence {
		if a.Kind == types.AssertionScalar && a.Key == ConfirmationDataKey {
			var c types.OrderConfirmation
			if err := json.Unmarshal([]byte(a.Value), &c); err == nil && c.OrderID != "" {
				return c, true
			}
		}
	}
	return types.OrderConfirmation{}, false
}
