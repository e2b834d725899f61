// Package inventory checks requested medicines against the catalog: stock
// levels, discontinuation, prescription flags and per-SKU quantity caps.
package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/pharmaflow-project/pharmacy-multi-agent/catalog"
	"github.com/pharmaflow-project/pharmacy-multi-agent/evidence"
	"github.com/pharmaflow-project/pharmacy-multi-agent/logger"
	"github.com/pharmaflow-project/pharmacy-multi-agent/protocol"
	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
)

// Agent is the inventory collaborator.
type Agent struct {
	catalog *catalog.Service
	log     *logger.Logger
}

func New(svc *catalog.Service) *Agent {
	return &Agent{
		catalog: svc,
		log:     logger.GetLogger().WithField("component", "inventory-agent"),
	}
}

// Name implements protocol.Collaborator.
func (a *Agent) Name() types.AgentName {
	return types.AgentInventory
}

// Handle implements protocol.Collaborator. It enriches each requested item
// with catalog data and rejects the order when anything is unavailable.
func (a *Agent) Handle(ctx context.Context, req *protocol.RequestContext) (*types.AgentOutput, error) {
	order := evidence.Extract(req.Evidence)
	if !order.HasItems() {
		return &types.AgentOutput{
			Agent:    types.AgentInventory,
			Decision: types.DecisionNeedsInfo,
			Reason:   "No items found in the accumulated evidence.",
			Message:  "Which medicine would you like to order?",
		}, nil
	}

	var out []types.Assertion
	var problems []string
	for _, item := range order.Items {
		enriched, problem := a.checkItem(item)
		out = append(out, types.ItemAssertion(enriched))
		if problem != "" {
			problems = append(problems, problem)
		}
	}

	if len(problems) > 0 {
		return &types.AgentOutput{
			Agent:    types.AgentInventory,
			Decision: types.DecisionRejected,
			Reason:   "Inventory check failed: " + strings.Join(problems, "; "),
			Evidence: out,
			Message:  "I'm sorry, " + strings.Join(problems, "; ") + ". Would you like an alternative?",
		}, nil
	}

	// Legacy scalars for the first item.
	first := order.Items[0]
	out = append(out,
		types.ScalarAssertion("medicine_name", first.MedicineName),
		types.ScalarAssertion("quantity", fmt.Sprintf("%d", first.Quantity)),
	)

	return &types.AgentOutput{
		Agent:     types.AgentInventory,
		Decision:  types.DecisionApproved,
		Reason:    fmt.Sprintf("All %d item(s) in stock. Routing to policy for safety checks.", len(order.Items)),
		Evidence:  out,
		Message:   "Good news, everything you asked for is in stock.",
		NextAgent: types.AgentPolicy,
	}, nil
}

// checkItem returns the catalog-enriched record and a non-empty problem
// string when the item cannot be fulfilled.
func (a *Agent) checkItem(item types.ItemRecord) (types.ItemRecord, string) {
	enriched := item
	med, ok := a.catalog.FindMedicine(item.MedicineName, item.Strength, item.Form)
	if !ok {
		enriched.StockStatus = "unknown"
		return enriched, fmt.Sprintf("%s is not in our catalog", item.MedicineName)
	}

	enriched.MedicineID = med.MedicineID
	enriched.MedicineName = med.MedicineName
	enriched.Strength = med.Strength
	enriched.Form = med.Form
	enriched.PrescriptionRequired = med.PrescriptionRequired
	enriched.MaxQuantity = med.MaxQuantityPerOrder
	if price, ok := a.catalog.UnitPrice(med.MedicineName, med.Strength); ok {
		enriched.UnitPrice = price
	}

	switch {
	case med.Discontinued:
		enriched.StockStatus = "discontinued"
		return enriched, fmt.Sprintf("%s has been discontinued", med.MedicineName)
	case med.StockLevel <= 0:
		enriched.StockStatus = "out_of_stock"
		return enriched, fmt.Sprintf("%s is out of stock", med.MedicineName)
	case item.Quantity > med.StockLevel:
		enriched.StockStatus = "insufficient_stock"
		return enriched, fmt.Sprintf("only %d units of %s are available", med.StockLevel, med.MedicineName)
	default:
		enriched.StockStatus = "in_stock"
		return enriched, ""
	}
}
