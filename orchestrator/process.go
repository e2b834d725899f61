package orchestrator

import (
	"context"
	"time"

	"github.com/pharmaflow-project/pharmacy-multi-agent/session"
	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
)

// Submit processes one user message end to end: confirmation detection,
// chain routing, state transitions and response synthesis. It always
// returns a well-formed response; chain failures surface as an apology
// with an error detail, never as a Go error.
func (o *Orchestrator) Submit(ctx context.Context, req *types.ChatRequest) *types.ChatResponse {
	started := time.Now()

	var resp *types.ChatResponse
	if preview, ok := o.store.GetPreview(req.SessionID); ok && isConfirmation(req.Message) {
		resp = o.confirm(ctx, req.SessionID, preview)
	} else {
		resp = o.route(ctx, req)
	}

	resp.Metadata = &types.ResponseMetadata{
		RequestID:      req.SessionID,
		ProcessingTime: float64(time.Since(started).Milliseconds()),
		Timestamp:      time.Now().Format(time.RFC3339),
	}
	return resp
}

// route runs a fresh chain from the intent collaborator and applies the
// outcome to session state.
func (o *Orchestrator) route(ctx context.Context, req *types.ChatRequest) *types.ChatResponse {
	result := o.runChain(ctx, req.SessionID, req.PatientID, req.Message, types.AgentIntent)
	if result.err != nil {
		return failureResponse(result.err, result.chain)
	}

	last := result.last()
	if last == nil {
		return &types.ChatResponse{
			Response:   "I'm sorry, I couldn't process that. Could you rephrase?",
			UICardType: types.UICardText,
		}
	}

	switch {
	case last.NextAgent == types.AgentFulfillment && last.Decision == types.DecisionApproved:
		return o.previewResponse(req, result)

	case last.Decision == types.DecisionNeedsInfo && prescriptionRequested(result.evidence):
		return o.prescriptionResponse(req, result)

	case last.Decision == types.DecisionScheduled:
		return &types.ChatResponse{
			Response:    synthesize(result),
			UICardType:  types.UICardText,
			AgentChain:  result.chain,
			FinalAction: types.ActionRefillScheduled,
		}

	default:
		return &types.ChatResponse{
			Response:   synthesize(result),
			UICardType: types.UICardText,
			AgentChain: result.chain,
		}
	}
}

// previewResponse prices the approved order, installs it as the session's
// live preview and asks the user to confirm. An order line without a stated
// quantity is never priced; the user is asked how many they want instead.
func (o *Orchestrator) previewResponse(req *types.ChatRequest, result chainResult) *types.ChatResponse {
	order := mergedOrder(result.evidence)
	if !order.HasItems() {
		return &types.ChatResponse{
			Response:   "I couldn't work out which medicines you need. Could you list them again?",
			UICardType: types.UICardText,
			AgentChain: result.chain,
		}
	}
	if item, ok := missingQuantityItem(order); ok {
		return &types.ChatResponse{
			Response:   askQuantityText(item),
			UICardType: types.UICardText,
			AgentChain: result.chain,
		}
	}

	preview := o.buildPreview(order, req.PatientID, result.evidence)
	_ = o.store.WithSession(req.SessionID, func(sess *session.Session) error {
		sess.SetPreview(preview)
		return nil
	})

	return &types.ChatResponse{
		Response:    previewText(preview),
		UICardType:  types.UICardOrderPreview,
		Preview:     preview,
		AgentChain:  result.chain,
		FinalAction: types.ActionPreviewCreated,
	}
}

// prescriptionResponse handles the prescription gate: a valid prescription
// already on file skips the upload, otherwise the order pauses until one
// arrives.
func (o *Orchestrator) prescriptionResponse(req *types.ChatRequest, result chainResult) *types.ChatResponse {
	order := mergedOrder(result.evidence)
	if !order.HasItems() {
		return &types.ChatResponse{
			Response:   synthesize(result),
			UICardType: types.UICardText,
			AgentChain: result.chain,
		}
	}

	if item, ok := missingQuantityItem(order); ok {
		// Don't pause an order we couldn't price anyway; get the quantity
		// first, the prescription gate will fire again on the next turn.
		return &types.ChatResponse{
			Response:   askQuantityText(item),
			UICardType: types.UICardText,
			AgentChain: result.chain,
		}
	}

	if o.hasPrescriptionsOnFile(req.PatientID, order) {
		o.log.WithSession(req.SessionID).Info("Valid prescription on file, skipping upload")
		resp := o.previewResponse(req, result)
		resp.Response = "I found a valid prescription on file. " + resp.Response
		return resp
	}

	pending := &types.PendingPrescription{
		OrderInfo: order,
		Evidence:  result.evidence,
		PatientID: req.PatientID,
		CreatedAt: time.Now(),
	}
	_ = o.store.WithSession(req.SessionID, func(sess *session.Session) error {
		sess.SetPending(pending)
		return nil
	})

	return &types.ChatResponse{
		Response:    synthesize(result),
		UICardType:  types.UICardPrescriptionUpload,
		AgentChain:  result.chain,
		FinalAction: types.ActionPrescriptionNeeded,
	}
}

// hasPrescriptionsOnFile reports whether every prescription-only line is
// covered by a valid prescription record.
func (o *Orchestrator) hasPrescriptionsOnFile(patientID string, order types.OrderInfo) bool {
	if patientID == "" {
		return false
	}
	now := time.Now()
	for _, item := range order.Items {
		if !item.PrescriptionRequired {
			continue
		}
		if !o.catalog.HasValidPrescription(patientID, item.MedicineName, item.Strength, now) {
			return false
		}
	}
	return true
}

func failureResponse(err *types.OrchestrationError, chain []types.AgentName) *types.ChatResponse {
	return &types.ChatResponse{
		Response:   "I'm sorry, something went wrong while processing your request. Your order was not placed; please try again.",
		UICardType: types.UICardText,
		AgentChain: chain,
		Error: &types.ErrorDetail{
			Code:        err.Code,
			Message:     err.Message,
			Recoverable: true,
		},
	}
}
