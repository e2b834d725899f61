package orchestrator

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pharmaflow-project/pharmacy-multi-agent/evidence"
	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
)

// buildPreview prices the merged order and wraps it in a preview snapshot.
func (o *Orchestrator) buildPreview(order types.OrderInfo, patientID string, chainEvidence []types.Assertion) *types.OrderPreview {
	items := o.pricing.ResolvePrices(order.Items)
	return &types.OrderPreview{
		PreviewID:            "PRV-" + strings.ToUpper(uuid.NewString()[:8]),
		PatientID:            patientID,
		Items:                items,
		Totals:               o.pricing.Totals(items),
		RequiresPrescription: order.RequiresPrescription(),
		SafetyNotes:          safetyNotes(chainEvidence),
		CreatedAt:            time.Now(),
	}
}

// safetyNotes collects interaction warnings accumulated along the chain.
func safetyNotes(chainEvidence []types.Assertion) []string {
	var notes []string
	for _, a := range chainEvidence {
		if a.Kind == types.AssertionScalar && a.Key == "interaction_warning" {
			notes = append(notes, a.Value)
		}
	}
	return notes
}

// mergedOrder extracts the typed order from accumulated chain evidence.
func mergedOrder(chainEvidence []types.Assertion) types.OrderInfo {
	return evidence.Extract(chainEvidence)
}

// prescriptionRequested reports whether the chain flagged the order as
// needing a prescription upload.
func prescriptionRequested(chainEvidence []types.Assertion) bool {
	for _, a := range chainEvidence {
		if a.Kind == types.AssertionScalar && a.Key == "requires_prescription" {
			v := strings.ToLower(a.Value)
			return v == "true" || v == "1" || v == "yes"
		}
	}
	return false
}
