package orchestrator

import (
	"context"
	"strings"

	"github.com/pharmaflow-project/pharmacy-multi-agent/agents/fulfillment"
	"github.com/pharmaflow-project/pharmacy-multi-agent/protocol"
	"github.com/pharmaflow-project/pharmacy-multi-agent/session"
	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
)

// confirmationPhrases are matched by containment against the lowercased
// message. Only checked while a live preview exists, so ordinary order
// messages containing "order" are never misread as confirmations.
var confirmationPhrases = []string{
	"confirm",
	"yes",
	"proceed",
	"ok",
	"okay",
	"place order",
	"place the order",
	"go ahead",
	"continue",
	"submit",
	"approve",
	"done",
	"complete",
}

func isConfirmation(message string) bool {
	normalized := strings.ToLower(strings.TrimSpace(message))
	for _, phrase := range confirmationPhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

// confirm consumes the live preview and hands it to fulfillment. The
// preview is taken out of the session before the call so it can never be
// committed twice; a transport failure puts it back, unless the session
// picked up a newer preview in the meantime.
func (o *Orchestrator) confirm(ctx context.Context, sessionID string, _ *types.OrderPreview) *types.ChatResponse {
	var preview *types.OrderPreview
	_ = o.store.WithSession(sessionID, func(sess *session.Session) error {
		preview = sess.Preview()
		sess.ClearPreview()
		return nil
	})
	if preview == nil {
		return &types.ChatResponse{
			Response:   "There is no order waiting for confirmation. What would you like to order?",
			UICardType: types.UICardText,
			Error: &types.ErrorDetail{
				Code:        types.ErrCodeNoActiveOrder,
				Message:     "no live preview to confirm",
				Recoverable: true,
			},
		}
	}

	collaborator, ok := o.registry.Get(types.AgentFulfillment)
	if !ok {
		o.restorePreview(sessionID, preview)
		err := types.NewOrchestrationError(types.ErrCodeUnrecognizedRouting, "fulfillment collaborator not registered").
			WithSession(sessionID)
		return failureResponse(err, nil)
	}

	req := &protocol.RequestContext{
		SessionID: sessionID,
		PatientID: preview.PatientID,
		Message:   "confirm order",
		Evidence:  []types.Assertion{fulfillment.PreviewAssertion(*preview)},
	}
	output, err := o.call(ctx, collaborator, req)
	if err != nil {
		o.restorePreview(sessionID, preview)
		oe := asOrchestrationError(err, sessionID, types.AgentFulfillment)
		o.emitError(sessionID, types.AgentFulfillment, oe)
		resp := failureResponse(oe, []types.AgentName{types.AgentFulfillment})
		resp.Response = "I couldn't place your order just now, but nothing was charged. Your order is still here; say confirm to try again."
		return resp
	}

	o.emitOutput(sessionID, output)

	if output.Decision != types.DecisionApproved {
		// A business rejection is final: the preview stays consumed.
		return &types.ChatResponse{
			Response:   synthesize(chainResult{outputs: []*types.AgentOutput{output}}),
			UICardType: types.UICardText,
			AgentChain: []types.AgentName{types.AgentFulfillment},
		}
	}

	confirmation, ok := fulfillment.ConfirmationFromEvidence(output.Evidence)
	if !ok {
		o.restorePreview(sessionID, preview)
		err := types.NewOrchestrationError(types.ErrCodeEvidenceDecode, "fulfillment returned no confirmation").
			WithSession(sessionID).WithAgent(types.AgentFulfillment)
		return failureResponse(err, []types.AgentName{types.AgentFulfillment})
	}

	return &types.ChatResponse{
		Response:     output.Message,
		UICardType:   types.UICardOrderConfirmation,
		Confirmation: &confirmation,
		AgentChain:   []types.AgentName{types.AgentFulfillment},
		FinalAction:  types.ActionOrderConfirmed,
	}
}

// restorePreview is the compensating action for a failed confirmation. A
// newer preview installed since the consume wins and is left alone.
func (o *Orchestrator) restorePreview(sessionID string, preview *types.OrderPreview) {
	_ = o.store.WithSession(sessionID, func(sess *session.Session) error {
		if sess.Preview() == nil {
			sess.SetPreview(preview)
		}
		return nil
	})
}
