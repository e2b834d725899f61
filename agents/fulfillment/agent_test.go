package fulfillment

import (
	"context"
	"testing"
	"time"

	"github.com/pharmaflow-project/pharmacy-multi-agent/catalog"
	"github.com/pharmaflow-project/pharmacy-multi-agent/protocol"
	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
)

func testPreview(id string, qty int) types.OrderPreview {
	return types.OrderPreview{
		PreviewID: id,
		PatientID: "P001",
		Items: []types.OrderPreviewItem{
			{MedicineName: "Paracetamol", Strength: "500mg", Form: "Tablet", Quantity: qty, UnitPrice: 5.00, LineTotal: 5.00 * float64(qty)},
		},
		Totals:    types.Totals{Subtotal: 100.00, Tax: 5.00, DeliveryFee: 2.00, Total: 107.00},
		CreatedAt: time.Now(),
	}
}

func TestCommitDecrementsStockAndRecordsHistory(t *testing.T) {
	svc := catalog.NewService()
	agent := New(svc)

	med, _ := svc.FindMedicine("Paracetamol", "500mg", "")
	before := med.StockLevel

	out, err := agent.Handle(context.Background(), &protocol.RequestContext{
		SessionID: "sess-1",
		PatientID: "P001",
		Evidence:  []types.Assertion{PreviewAssertion(testPreview("pv-1", 20))},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Decision != types.DecisionApproved {
		t.Fatalf("expected APPROVED, got %s (%s)", out.Decision, out.Reason)
	}

	confirmation, ok := ConfirmationFromEvidence(out.Evidence)
	if !ok {
		t.Fatal("expected confirmation_data in evidence")
	}
	if confirmation.Status != types.OrderStatusConfirmed {
		t.Errorf("expected status confirmed, got %q", confirmation.Status)
	}
	if confirmation.TotalAmount != 107.00 {
		t.Errorf("expected total carried from the preview, got %.2f", confirmation.TotalAmount)
	}

	med, _ = svc.FindMedicine("Paracetamol", "500mg", "")
	if med.StockLevel != before-20 {
		t.Errorf("expected stock %d, got %d", before-20, med.StockLevel)
	}

	history := svc.PatientOrderHistory("P001")
	last := history[len(history)-1]
	if last.MedicineName != "Paracetamol" || last.Quantity != 20 {
		t.Errorf("unexpected last history record: %+v", last)
	}
}

func TestRepeatCommitIsIdempotent(t *testing.T) {
	svc := catalog.NewService()
	agent := New(svc)
	req := &protocol.RequestContext{
		SessionID: "sess-1",
		PatientID: "P001",
		Evidence:  []types.Assertion{PreviewAssertion(testPreview("pv-dup", 10))},
	}

	first, err := agent.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := agent.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c1, _ := ConfirmationFromEvidence(first.Evidence)
	c2, _ := ConfirmationFromEvidence(second.Evidence)
	if c1.OrderID != c2.OrderID {
		t.Errorf("expected the same order id, got %s and %s", c1.OrderID, c2.OrderID)
	}

	med, _ := svc.FindMedicine("Paracetamol", "500mg", "")
	// Two commits of the same preview must decrement stock exactly once.
	if got := 150 - med.StockLevel; got != 10 {
		t.Errorf("expected 10 units consumed, got %d", got)
	}
}

func TestCommitRejectedWhenStockGone(t *testing.T) {
	svc := catalog.NewService()
	agent := New(svc)
	out, err := agent.Handle(context.Background(), &protocol.RequestContext{
		SessionID: "sess-1",
		PatientID: "P001",
		Evidence:  []types.Assertion{PreviewAssertion(testPreview("pv-big", 100000))},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Decision != types.DecisionRejected {
		t.Fatalf("expected REJECTED, got %s", out.Decision)
	}
}

func TestNoPreviewNeedsInfo(t *testing.T) {
	agent := New(catalog.NewService())
	out, err := agent.Handle(context.Background(), &protocol.RequestContext{SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Decision != types.DecisionNeedsInfo {
		t.Fatalf("expected NEEDS_INFO, got %s", out.Decision)
	}
}
