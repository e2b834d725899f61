package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pharmaflow-project/pharmacy-multi-agent/agents/fulfillment"
	"github.com/pharmaflow-project/pharmacy-multi-agent/agents/intent"
	"github.com/pharmaflow-project/pharmacy-multi-agent/agents/inventory"
	"github.com/pharmaflow-project/pharmacy-multi-agent/agents/policy"
	"github.com/pharmaflow-project/pharmacy-multi-agent/agents/refill"
	"github.com/pharmaflow-project/pharmacy-multi-agent/catalog"
	"github.com/pharmaflow-project/pharmacy-multi-agent/pricing"
	"github.com/pharmaflow-project/pharmacy-multi-agent/protocol"
	"github.com/pharmaflow-project/pharmacy-multi-agent/session"
	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *catalog.Service, *session.Store) {
	t.Helper()
	svc := catalog.NewService()
	registry, err := protocol.NewRegistry(
		intent.New(nil),
		inventory.New(svc),
		policy.New(svc),
		fulfillment.New(svc),
		refill.New(svc),
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	store := session.NewStore(time.Minute)
	t.Cleanup(store.Close)
	calc := pricing.NewCalculator(svc, 0.05, 2.00, 10.00)
	return New(registry, store, calc, svc, Options{RetryAttempts: 1}), svc, store
}

func TestOTCOrderCreatesPreview(t *testing.T) {
	o, _, store := newTestOrchestrator(t)
	resp := o.Submit(context.Background(), &types.ChatRequest{
		SessionID: "sess-otc",
		PatientID: "P001",
		Message:   "I want 20 Paracetamol 500mg tablets",
	})

	if resp.FinalAction != types.ActionPreviewCreated {
		t.Fatalf("expected preview_created, got %q (response: %s)", resp.FinalAction, resp.Response)
	}
	if resp.UICardType != types.UICardOrderPreview {
		t.Errorf("expected order_preview card, got %q", resp.UICardType)
	}
	if resp.Preview == nil {
		t.Fatal("expected a preview in the response")
	}
	if resp.Preview.Totals.Total != 107.00 {
		t.Errorf("expected total 107.00, got %.2f", resp.Preview.Totals.Total)
	}

	stored, ok := store.GetPreview("sess-otc")
	if !ok || stored.PreviewID != resp.Preview.PreviewID {
		t.Error("expected the preview to be stored in the session")
	}

	wantChain := []types.AgentName{types.AgentIntent, types.AgentInventory, types.AgentPolicy}
	if len(resp.AgentChain) != len(wantChain) {
		t.Fatalf("unexpected chain %v", resp.AgentChain)
	}
	for i, name := range wantChain {
		if resp.AgentChain[i] != name {
			t.Errorf("chain[%d] = %s, want %s", i, resp.AgentChain[i], name)
		}
	}
}

func TestOrderWithoutQuantityAsksForOne(t *testing.T) {
	o, _, store := newTestOrchestrator(t)
	resp := o.Submit(context.Background(), &types.ChatRequest{
		SessionID: "sess-noqty",
		PatientID: "P001",
		Message:   "I want Paracetamol 500mg",
	})

	if resp.FinalAction == types.ActionPreviewCreated || resp.Preview != nil {
		t.Fatalf("an order without a quantity must not be priced, got %q (%s)", resp.FinalAction, resp.Response)
	}
	if !strings.Contains(resp.Response, "How many") {
		t.Errorf("expected the quantity question, got %q", resp.Response)
	}
	if !strings.Contains(resp.Response, "Paracetamol") {
		t.Errorf("expected the availability confirmation to name the medicine, got %q", resp.Response)
	}
	if _, ok := store.GetPreview("sess-noqty"); ok {
		t.Error("no preview may be stored while the quantity is unknown")
	}
}

func TestPrescriptionOrderWithoutQuantityAsksBeforePausing(t *testing.T) {
	o, _, store := newTestOrchestrator(t)
	resp := o.Submit(context.Background(), &types.ChatRequest{
		SessionID: "sess-rx-noqty",
		PatientID: "P002",
		Message:   "I need Atorvastatin 10mg",
	})

	if !strings.Contains(resp.Response, "How many") {
		t.Fatalf("expected the quantity question, got %q", resp.Response)
	}
	if !strings.Contains(resp.Response, "prescription") {
		t.Errorf("expected the prescription note, got %q", resp.Response)
	}
	if _, ok := store.GetPending("sess-rx-noqty"); ok {
		t.Error("an unpriceable order must not be paused for upload")
	}
}

func TestConfirmConsumesPreviewExactlyOnce(t *testing.T) {
	o, svc, store := newTestOrchestrator(t)
	ctx := context.Background()

	o.Submit(ctx, &types.ChatRequest{
		SessionID: "sess-confirm",
		PatientID: "P001",
		Message:   "I want 20 Paracetamol 500mg tablets",
	})

	resp := o.Submit(ctx, &types.ChatRequest{
		SessionID: "sess-confirm",
		PatientID: "P001",
		Message:   "yes, confirm the order",
	})
	if resp.FinalAction != types.ActionOrderConfirmed {
		t.Fatalf("expected order_confirmed, got %q (response: %s)", resp.FinalAction, resp.Response)
	}
	if resp.Confirmation == nil || !strings.HasPrefix(resp.Confirmation.OrderID, "ORD-") {
		t.Fatalf("expected a confirmation with an ORD id, got %+v", resp.Confirmation)
	}

	if _, ok := store.GetPreview("sess-confirm"); ok {
		t.Error("expected the preview to be consumed")
	}

	med, _ := svc.FindMedicine("Paracetamol", "500mg", "")
	if med.StockLevel != 130 {
		t.Errorf("expected stock 130 after commit, got %d", med.StockLevel)
	}

	again := o.Submit(ctx, &types.ChatRequest{
		SessionID: "sess-confirm",
		PatientID: "P001",
		Message:   "confirm",
	})
	if again.FinalAction == types.ActionOrderConfirmed {
		t.Error("a second confirm must not place another order")
	}
}

func TestConfirmationVocabularyOnlyAppliesWithLivePreview(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	// No preview yet, so a message containing "ok" routes as a normal chain.
	resp := o.Submit(context.Background(), &types.ChatRequest{
		SessionID: "sess-vocab",
		PatientID: "P001",
		Message:   "ok, I want 10 Ibuprofen 200mg",
	})
	if resp.FinalAction != types.ActionPreviewCreated {
		t.Fatalf("expected a fresh chain to run, got %q (%s)", resp.FinalAction, resp.Response)
	}
}

func TestPrescriptionGatePausesOrder(t *testing.T) {
	o, _, store := newTestOrchestrator(t)
	resp := o.Submit(context.Background(), &types.ChatRequest{
		SessionID: "sess-rx",
		PatientID: "P002",
		Message:   "I need 30 Atorvastatin 10mg",
	})

	if resp.FinalAction != types.ActionPrescriptionNeeded {
		t.Fatalf("expected prescription_needed, got %q (%s)", resp.FinalAction, resp.Response)
	}
	if resp.UICardType != types.UICardPrescriptionUpload {
		t.Errorf("expected prescription_upload card, got %q", resp.UICardType)
	}

	pending, ok := store.GetPending("sess-rx")
	if !ok {
		t.Fatal("expected a pending prescription snapshot")
	}
	if !pending.OrderInfo.HasItems() {
		t.Error("expected the paused order to carry its items")
	}
	if _, ok := store.GetPreview("sess-rx"); ok {
		t.Error("no preview may exist while the order is paused")
	}
}

func TestUploadResumesPausedOrder(t *testing.T) {
	o, _, store := newTestOrchestrator(t)
	ctx := context.Background()

	o.Submit(ctx, &types.ChatRequest{
		SessionID: "sess-resume",
		PatientID: "P002",
		Message:   "I need 30 Atorvastatin 10mg",
	})

	resp := o.HandleUpload("sess-resume", true)
	if resp.FinalAction != types.ActionPreviewCreated {
		t.Fatalf("expected preview after upload, got %q (%s)", resp.FinalAction, resp.Response)
	}
	if resp.Preview == nil {
		t.Fatal("expected a preview in the response")
	}
	if _, ok := store.GetPending("sess-resume"); ok {
		t.Error("expected the pending snapshot to be cleared")
	}

	// A duplicate upload callback returns the same preview, not an error.
	dup := o.HandleUpload("sess-resume", true)
	if dup.Preview == nil || dup.Preview.PreviewID != resp.Preview.PreviewID {
		t.Errorf("expected the existing preview on duplicate upload, got %+v", dup.Preview)
	}
}

func TestUploadRejectedKeepsOrderPaused(t *testing.T) {
	o, _, store := newTestOrchestrator(t)
	ctx := context.Background()

	o.Submit(ctx, &types.ChatRequest{
		SessionID: "sess-badrx",
		PatientID: "P002",
		Message:   "I need 30 Atorvastatin 10mg",
	})

	resp := o.HandleUpload("sess-badrx", false)
	if resp.UICardType != types.UICardPrescriptionUpload {
		t.Errorf("expected another upload prompt, got %q", resp.UICardType)
	}
	if _, ok := store.GetPending("sess-badrx"); !ok {
		t.Error("the paused order must survive a failed verification")
	}
}

func TestUploadWithoutPausedOrder(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	resp := o.HandleUpload("sess-empty", true)
	if resp.Error == nil || resp.Error.Code != types.ErrCodeNothingToResume {
		t.Fatalf("expected NOTHING_TO_RESUME, got %+v", resp.Error)
	}
}

func TestPrescriptionOnFileSkipsUpload(t *testing.T) {
	// Seed data holds a valid Atorvastatin prescription for P001.
	o, _, _ := newTestOrchestrator(t)
	resp := o.Submit(context.Background(), &types.ChatRequest{
		SessionID: "sess-onfile",
		PatientID: "P001",
		Message:   "I need 30 Atorvastatin 10mg",
	})
	if resp.FinalAction != types.ActionPreviewCreated {
		t.Fatalf("expected an immediate preview, got %q (%s)", resp.FinalAction, resp.Response)
	}
	if !strings.Contains(resp.Response, "on file") {
		t.Errorf("expected the on-file note in the response, got %q", resp.Response)
	}
}

func TestControlledSubstanceRejectedWithoutStateChange(t *testing.T) {
	o, _, store := newTestOrchestrator(t)
	resp := o.Submit(context.Background(), &types.ChatRequest{
		SessionID: "sess-ctrl",
		PatientID: "P001",
		Message:   "I want 10 Tramadol 50mg",
	})
	if resp.FinalAction != types.ActionNone {
		t.Errorf("expected no final action, got %q", resp.FinalAction)
	}
	if !strings.Contains(resp.Response, "controlled substance") {
		t.Errorf("unexpected response: %q", resp.Response)
	}
	if _, ok := store.GetPreview("sess-ctrl"); ok {
		t.Error("a rejected order must not leave a preview behind")
	}
}

func TestRefillRequestSchedules(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	resp := o.Submit(context.Background(), &types.ChatRequest{
		SessionID: "sess-refill",
		PatientID: "P001",
		Message:   "am I due for any refills?",
	})
	if resp.FinalAction != types.ActionRefillScheduled {
		t.Fatalf("expected refill_scheduled, got %q (%s)", resp.FinalAction, resp.Response)
	}
	if !strings.Contains(resp.Response, "refill") {
		t.Errorf("unexpected response: %q", resp.Response)
	}
}

// faulty fails every call; it stands in for an unreachable collaborator.
type faulty struct{ name types.AgentName }

func (f *faulty) Name() types.AgentName { return f.name }
func (f *faulty) Handle(ctx context.Context, req *protocol.RequestContext) (*types.AgentOutput, error) {
	return nil, errors.New("connection refused")
}

func TestCollaboratorFailureDiscardsChain(t *testing.T) {
	svc := catalog.NewService()
	registry, err := protocol.NewRegistry(
		intent.New(nil),
		&faulty{name: types.AgentInventory},
		policy.New(svc),
		fulfillment.New(svc),
		refill.New(svc),
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	store := session.NewStore(time.Minute)
	defer store.Close()
	o := New(registry, store, pricing.NewCalculator(svc, 0.05, 2.00, 10.00), svc, Options{RetryAttempts: 1})

	resp := o.Submit(context.Background(), &types.ChatRequest{
		SessionID: "sess-fail",
		PatientID: "P001",
		Message:   "I want 20 Paracetamol 500mg",
	})
	if resp.Error == nil || resp.Error.Code != types.ErrCodeCollaboratorUnavailable {
		t.Fatalf("expected COLLABORATOR_UNAVAILABLE, got %+v", resp.Error)
	}
	if resp.Response == "" {
		t.Error("failure must still produce user-facing text")
	}
	if _, ok := store.GetPreview("sess-fail"); ok {
		t.Error("a failed chain must not leave session state")
	}
	if _, ok := store.GetPending("sess-fail"); ok {
		t.Error("a failed chain must not leave session state")
	}
}

// hopper always routes onward, for exercising the hop bound.
type hopper struct {
	name types.AgentName
	next types.AgentName
}

func (h *hopper) Name() types.AgentName { return h.name }
func (h *hopper) Handle(ctx context.Context, req *protocol.RequestContext) (*types.AgentOutput, error) {
	return &types.AgentOutput{
		Agent:     h.name,
		Decision:  types.DecisionNeedsInfo,
		Reason:    "keep going",
		NextAgent: h.next,
	}, nil
}

func TestHopLimitBoundsChain(t *testing.T) {
	svc := catalog.NewService()
	registry, err := protocol.NewRegistry(
		&hopper{name: types.AgentIntent, next: types.AgentInventory},
		&hopper{name: types.AgentInventory, next: types.AgentPolicy},
		&hopper{name: types.AgentPolicy, next: types.AgentRefill},
		&hopper{name: types.AgentRefill, next: types.AgentInventory},
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	store := session.NewStore(time.Minute)
	defer store.Close()
	o := New(registry, store, pricing.NewCalculator(svc, 0.05, 2.00, 10.00), svc, Options{RetryAttempts: 1})

	// The intent call is free, so a bounded chain holds the intent output
	// plus one output per allowed dispatch.
	resp := o.Submit(context.Background(), &types.ChatRequest{
		SessionID: "sess-hops",
		Message:   "loop forever",
	})
	if len(resp.AgentChain) != DefaultHopLimit+1 {
		t.Fatalf("expected chain bounded at %d outputs, got %d", DefaultHopLimit+1, len(resp.AgentChain))
	}
	if resp.Response == "" {
		t.Error("a truncated chain must still produce text")
	}
}

// stray routes to a name outside the closed collaborator set.
type stray struct{}

func (s *stray) Name() types.AgentName { return types.AgentIntent }
func (s *stray) Handle(ctx context.Context, req *protocol.RequestContext) (*types.AgentOutput, error) {
	return &types.AgentOutput{
		Agent:     types.AgentIntent,
		Decision:  types.DecisionApproved,
		Reason:    "request understood",
		Message:   "All set on my side.",
		NextAgent: types.AgentName("billing"),
	}, nil
}

func TestUnknownRoutingNameStopsChain(t *testing.T) {
	svc := catalog.NewService()
	registry, err := protocol.NewRegistry(&stray{})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	store := session.NewStore(time.Minute)
	defer store.Close()
	o := New(registry, store, pricing.NewCalculator(svc, 0.05, 2.00, 10.00), svc, Options{RetryAttempts: 1})

	// The output that routed to a stray name still stands; only the
	// dispatch is dropped.
	resp := o.Submit(context.Background(), &types.ChatRequest{
		SessionID: "sess-stray",
		Message:   "anything",
	})
	if resp.Error != nil {
		t.Fatalf("a stray routing name must not fail the chain, got %+v", resp.Error)
	}
	if len(resp.AgentChain) != 1 || resp.AgentChain[0] != types.AgentIntent {
		t.Fatalf("unexpected chain %v", resp.AgentChain)
	}
	if resp.Response != "All set on my side." {
		t.Errorf("expected the last output's message, got %q", resp.Response)
	}
}

func TestConfirmWithoutPreviewReportsNoActiveOrder(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	resp := o.confirm(context.Background(), "sess-noorder", nil)
	if resp.Error == nil || resp.Error.Code != types.ErrCodeNoActiveOrder {
		t.Fatalf("expected NO_ACTIVE_ORDER, got %+v", resp.Error)
	}
	if resp.Response == "" {
		t.Error("expected user-facing text alongside the error detail")
	}
}

func TestSynthesizeFallbacks(t *testing.T) {
	item := func(qty int, rx bool) types.Assertion {
		return types.ItemAssertion(types.ItemRecord{
			MedicineName:         "Paracetamol",
			Strength:             "500mg",
			Form:                 "Tablet",
			Quantity:             qty,
			PrescriptionRequired: rx,
		})
	}
	cases := []struct {
		name   string
		result chainResult
		want   string
	}{
		{
			name: "approved without quantity asks for one",
			result: chainResult{
				outputs:  []*types.AgentOutput{{Agent: types.AgentPolicy, Decision: types.DecisionApproved, Reason: "ok"}},
				evidence: []types.Assertion{item(0, false)},
			},
			want: "How many would you like to order?",
		},
		{
			name: "approved without quantity notes the prescription",
			result: chainResult{
				outputs:  []*types.AgentOutput{{Agent: types.AgentPolicy, Decision: types.DecisionApproved, Reason: "ok"}},
				evidence: []types.Assertion{item(0, true)},
			},
			want: "requires a valid prescription",
		},
		{
			name: "approved with quantity announces the order",
			result: chainResult{
				outputs:  []*types.AgentOutput{{Agent: types.AgentPolicy, Decision: types.DecisionApproved, Reason: "ok"}},
				evidence: []types.Assertion{item(20, false)},
			},
			want: "order for 20 tablets of Paracetamol 500mg",
		},
		{
			name: "approved with prescription flag appends the upload note",
			result: chainResult{
				outputs: []*types.AgentOutput{{Agent: types.AgentPolicy, Decision: types.DecisionApproved, Reason: "ok"}},
				evidence: []types.Assertion{
					item(20, true),
					types.ScalarAssertion("requires_prescription", "True"),
				},
			},
			want: "please upload it to continue",
		},
		{
			name: "out of stock offers alternatives",
			result: chainResult{
				outputs:  []*types.AgentOutput{{Agent: types.AgentInventory, Decision: types.DecisionRejected, Reason: "Paracetamol 500mg is out of stock"}},
				evidence: []types.Assertion{item(20, false)},
			},
			want: "check for alternatives or notify you",
		},
		{
			name: "discontinued offers alternatives",
			result: chainResult{
				outputs:  []*types.AgentOutput{{Agent: types.AgentInventory, Decision: types.DecisionRejected, Reason: "Paracetamol 500mg has been discontinued"}},
				evidence: []types.Assertion{item(20, false)},
			},
			want: "suggest some alternatives",
		},
		{
			name: "other rejection passes the reason through",
			result: chainResult{
				outputs: []*types.AgentOutput{{Agent: types.AgentPolicy, Decision: types.DecisionRejected, Reason: "quantity exceeds the limit"}},
			},
			want: "quantity exceeds the limit",
		},
		{
			name: "needs info passes the reason through",
			result: chainResult{
				outputs: []*types.AgentOutput{{Agent: types.AgentIntent, Decision: types.DecisionNeedsInfo, Reason: "which strength do you need?"}},
			},
			want: "which strength do you need?",
		},
		{
			name: "collaborator message always wins",
			result: chainResult{
				outputs: []*types.AgentOutput{{Agent: types.AgentPolicy, Decision: types.DecisionRejected, Reason: "out of stock", Message: "Sorry, that one just ran out."}},
			},
			want: "Sorry, that one just ran out.",
		},
	}

	for _, tc := range cases {
		got := synthesize(tc.result)
		if !strings.Contains(got, tc.want) {
			t.Errorf("%s: got %q, want it to contain %q", tc.name, got, tc.want)
		}
	}
}

func TestIsConfirmation(t *testing.T) {
	yes := []string{"confirm", "Yes please", "go ahead", "place the order", "OK"}
	no := []string{"I want 20 Paracetamol", "what about ibuprofen?", "cancel that"}
	for _, msg := range yes {
		if !isConfirmation(msg) {
			t.Errorf("expected %q to confirm", msg)
		}
	}
	for _, msg := range no {
		if isConfirmation(msg) {
			t.Errorf("did not expect %q to confirm", msg)
		}
	}
}

func TestMultiItemOrderPreview(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	resp := o.Submit(context.Background(), &types.ChatRequest{
		SessionID: "sess-multi",
		PatientID: "P001",
		Message:   "I want 20 Paracetamol 500mg and 10 Cetirizine 10mg",
	})
	if resp.FinalAction != types.ActionPreviewCreated {
		t.Fatalf("expected preview_created, got %q (%s)", resp.FinalAction, resp.Response)
	}
	if len(resp.Preview.Items) != 2 {
		t.Fatalf("expected 2 priced lines, got %d", len(resp.Preview.Items))
	}
}
