// Package refill predicts which of a patient's medicines are about to run
// out based on order history and schedules urgent refills.
package refill

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pharmaflow-project/pharmacy-multi-agent/catalog"
	"github.com/pharmaflow-project/pharmacy-multi-agent/logger"
	"github.com/pharmaflow-project/pharmacy-multi-agent/protocol"
	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
)

const (
	lookaheadDays = 14
	urgentDays    = 7
	maxSuggested  = 5
)

// Agent is the refill collaborator.
type Agent struct {
	catalog *catalog.Service
	log     *logger.Logger
	now     func() time.Time
}

func New(svc *catalog.Service) *Agent {
	return &Agent{
		catalog: svc,
		log:     logger.GetLogger().WithField("component", "refill-agent"),
		now:     time.Now,
	}
}

// Name implements protocol.Collaborator.
func (a *Agent) Name() types.AgentName {
	return types.AgentRefill
}

// Handle implements protocol.Collaborator. Urgent predictions route back to
// intent so the user can turn a suggestion into an order in the same chain.
func (a *Agent) Handle(ctx context.Context, req *protocol.RequestContext) (*types.AgentOutput, error) {
	if req.PatientID == "" {
		return &types.AgentOutput{
			Agent:    types.AgentRefill,
			Decision: types.DecisionNeedsInfo,
			Reason:   "Cannot predict refills without a patient identity.",
			Message:  "I need your patient ID to look up your refill schedule.",
		}, nil
	}

	suggestions := a.catalog.MedicinesNeedingRefill(req.PatientID, a.now(), lookaheadDays)
	if len(suggestions) > maxSuggested {
		suggestions = suggestions[:maxSuggested]
	}
	if len(suggestions) == 0 {
		return &types.AgentOutput{
			Agent:    types.AgentRefill,
			Decision: types.DecisionApproved,
			Reason:   "No medicines are due for a refill within the lookahead window.",
			Message:  "You're all set, nothing needs a refill in the next two weeks.",
		}, nil
	}

	evidence := make([]types.Assertion, 0, len(suggestions))
	lines := make([]string, 0, len(suggestions))
	urgent := false
	for _, s := range suggestions {
		data, _ := json.Marshal(s)
		evidence = append(evidence, types.ScalarAssertion("refill_prediction", string(data)))
		if s.DaysRemaining <= urgentDays {
			urgent = true
			lines = append(lines, fmt.Sprintf("%s (runs out in %d day(s))", s.MedicineName, s.DaysRemaining))
		} else {
			lines = append(lines, fmt.Sprintf("%s (due %s)", s.MedicineName, s.RefillDate.Format("Jan 2")))
		}
	}

	summary := strings.Join(lines, ", ")
	if urgent {
		return &types.AgentOutput{
			Agent:     types.AgentRefill,
			Decision:  types.DecisionScheduled,
			Reason:    fmt.Sprintf("Urgent refills detected for patient %s: %s.", req.PatientID, summary),
			Evidence:  evidence,
			Message:   fmt.Sprintf("You should refill soon: %s. Would you like me to place a refill order?", summary),
			NextAgent: types.AgentIntent,
		}, nil
	}

	return &types.AgentOutput{
		Agent:    types.AgentRefill,
		Decision: types.DecisionApproved,
		Reason:   fmt.Sprintf("Upcoming refills for patient %s: %s.", req.PatientID, summary),
		Evidence: evidence,
		Message:  fmt.Sprintf("Coming up: %s. No rush yet.", summary),
	}, nil
}
