// Package policy applies the pharmacy safety rules: controlled substance
// blocks, quantity limits, drug interaction screening and prescription
// gating. It is the last gate before fulfillment.
package policy

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

// controlledSubstances cannot be sold through this channel at all.
var controlledSubstances = map[string]bool{
	"morphine":    true,
	"tramadol":    true,
	"diazepam":    true,
	"alprazolam":  true,
	"pregabalin":  true,
	"hydrocodone": true,
	"oxycodone":   true,
	"codeine":     true,
}

// antibiotics get a tighter per-order cap than the general limit.
var antibiotics = map[string]bool{
	"amoxicillin":  true,
	"azithromycin": true,
}

const (
	controlledQuantityLimit = 30
	antibioticQuantityLimit = 21
	defaultQuantityLimit    = 90
)

type interaction struct {
	a, b     string
	severity string
	warning  string
}

var drugInteractions = []interaction{
	{"warfarin", "aspirin", "severe", "increased bleeding risk"},
	{"metformin", "alcohol", "moderate", "risk of lactic acidosis"},
	{"lisinopril", "potassium", "moderate", "risk of hyperkalemia"},
}

// Agent is the policy collaborator.
type Agent struct {
	catalog *catalog.Service
	log     *logger.Logger
}

func New(svc *catalog.Service) *Agent {
	return &Agent{
		catalog: svc,
		log:     logger.GetLogger().WithField("component", "policy-agent"),
	}
}

// Name implements protocol.Collaborator.
func (a *Agent) Name() types.AgentName {
	return types.AgentPolicy
}

// Handle implements protocol.Collaborator.
func (a *Agent) Handle(ctx context.Context, req *protocol.RequestContext) (*types.AgentOutput, error) {
	order := evidence.Extract(req.Evidence)
	if !order.HasItems() {
		return &types.AgentOutput{
			Agent:    types.AgentPolicy,
			Decision: types.DecisionNeedsInfo,
			Reason:   "No items found in the accumulated evidence.",
			Message:  "Which medicine should I review for you?",
		}, nil
	}

	for _, item := range order.Items {
		if a.isControlled(item) {
			return rejection(
				fmt.Sprintf("%s is a controlled substance and cannot be ordered through this service.", item.MedicineName),
				fmt.Sprintf("I'm sorry, %s is a controlled substance. Please visit a pharmacy in person with a valid prescription.", item.MedicineName),
			), nil
		}
	}

	for _, item := range order.Items {
		if limit := a.quantityLimit(item); item.Quantity > limit {
			return rejection(
				fmt.Sprintf("Requested quantity %d of %s exceeds the limit of %d per order.", item.Quantity, item.MedicineName, limit),
				fmt.Sprintf("I can only dispense up to %d units of %s per order. Would you like to adjust the quantity?", limit, item.MedicineName),
			), nil
		}
	}

	warnings := a.screenInteractions(order.Items)
	for _, w := range warnings {
		if w.severity == "severe" {
			return rejection(
				fmt.Sprintf("Severe drug interaction between %s and %s: %s.", w.a, w.b, w.warning),
				fmt.Sprintf("I can't fill this order: taking %s together with %s carries %s. Please consult your doctor.", w.a, w.b, w.warning),
			), nil
		}
	}

	safetyEvidence := make([]types.Assertion, 0, len(warnings)+1)
	for _, w := range warnings {
		safetyEvidence = append(safetyEvidence,
			types.ScalarAssertion("interaction_warning", fmt.Sprintf("%s+%s: %s", w.a, w.b, w.warning)))
	}

	if rx := prescriptionItems(order.Items); len(rx) > 0 {
		safetyEvidence = append(safetyEvidence, types.ScalarAssertion("requires_prescription", "True"))
		return &types.AgentOutput{
			Agent:    types.AgentPolicy,
			Decision: types.DecisionNeedsInfo,
			Reason:   fmt.Sprintf("Prescription required for: %s.", strings.Join(rx, ", ")),
			Evidence: safetyEvidence,
			Message:  fmt.Sprintf("A valid prescription is required for %s. Please upload one to continue.", strings.Join(rx, ", ")),
		}, nil
	}

	return &types.AgentOutput{
		Agent:     types.AgentPolicy,
		Decision:  types.DecisionApproved,
		Reason:    "All safety checks passed. Routing to fulfillment.",
		Evidence:  safetyEvidence,
		Message:   "Everything checks out from a safety standpoint.",
		NextAgent: types.AgentFulfillment,
	}, nil
}

func rejection(reason, message string) *types.AgentOutput {
	return &types.AgentOutput{
		Agent:    types.AgentPolicy,
		Decision: types.DecisionRejected,
		Reason:   reason,
		Message:  message,
	}
}

func (a *Agent) isControlled(item types.ItemRecord) bool {
	if controlledSubstances[strings.ToLower(item.MedicineName)] {
		return true
	}
	if med, ok := a.catalog.FindMedicine(item.MedicineName, item.Strength, item.Form); ok {
		return med.ControlledSubstance
	}
	return false
}

func (a *Agent) quantityLimit(item types.ItemRecord) int {
	name := strings.ToLower(item.MedicineName)
	limit := defaultQuantityLimit
	switch {
	case controlledSubstances[name]:
		limit = controlledQuantityLimit
	case antibiotics[name]:
		limit = antibioticQuantityLimit
	}
	if item.MaxQuantity > 0 && item.MaxQuantity < limit {
		limit = item.MaxQuantity
	}
	return limit
}

// screenInteractions checks every pair of requested medicines against the
// known interaction table.
func (a *Agent) screenInteractions(items []types.ItemRecord) []interaction {
	names := make(map[string]bool, len(items))
	for _, item := range items {
		names[strings.ToLower(item.MedicineName)] = true
	}
	var found []interaction
	for _, in := range drugInteractions {
		if names[in.a] && names[in.b] {
			found = append(found, in)
		}
	}
	return found
}

func prescriptionItems(items []types.ItemRecord) []string {
	var rx []string
	for _, item := range items {
		if item.PrescriptionRequired {
			rx = append(rx, item.MedicineName)
		}
	}
	return rx
}
