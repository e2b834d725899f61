// Package intent interprets the raw user message: what medicines the user
// wants, in what quantity, and whether this is an order, a refill request
// or something else. It is the first hop of every routing chain.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pharmaflow-project/pharmacy-multi-agent/llm"
	"github.com/pharmaflow-project/pharmacy-multi-agent/logger"
	"github.com/pharmaflow-project/pharmacy-multi-agent/protocol"
	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
)

// Agent is the intent collaborator. An LLM refines extraction when
// configured; the rule-based parser always works without one.
type Agent struct {
	llm llm.Client
	log *logger.Logger
}

// New creates the intent agent. llmClient may be nil.
func New(llmClient llm.Client) *Agent {
	return &Agent{
		llm: llmClient,
		log: logger.GetLogger().WithField("component", "intent-agent"),
	}
}

// Name implements protocol.Collaborator.
func (a *Agent) Name() types.AgentName {
	return types.AgentIntent
}

const extractionPrompt = `You are a pharmacy order intake assistant. Extract the user's intent from their message.
Respond with ONLY a JSON object, no other text:
{
  "intent": "order" | "refill" | "other",
  "items": [{"medicine_name": "...", "quantity": 0, "strength": "", "form": ""}]
}
Quantity 0 means the user did not state one. Leave strength/form empty when absent.`

// Handle implements protocol.Collaborator.
func (a *Agent) Handle(ctx context.Context, req *protocol.RequestContext) (*types.AgentOutput, error) {
	parsed := a.interpret(ctx, req.Message)

	switch parsed.Intent {
	case intentRefill:
		return &types.AgentOutput{
			Agent:    types.AgentIntent,
			Decision: types.DecisionNeedsInfo,
			Reason:   "User asked about medication refills. Routing to the refill collaborator.",
			Evidence: []types.Assertion{
				types.ScalarAssertion("intent", "refill"),
				types.ScalarAssertion("patient_id", req.PatientID),
			},
			Message:   "Let me check your refill schedule...",
			NextAgent: types.AgentRefill,
		}, nil

	case intentOrder:
		evidence := make([]types.Assertion, 0, len(parsed.Items)+2)
		names := make([]string, 0, len(parsed.Items))
		for _, item := range parsed.Items {
			evidence = append(evidence, types.ItemAssertion(item))
			names = append(names, item.MedicineName)
		}
		// Legacy scalars for the first item.
		first := parsed.Items[0]
		evidence = append(evidence,
			types.ScalarAssertion("medicine_name", first.MedicineName),
			types.ScalarAssertion("quantity", fmt.Sprintf("%d", first.Quantity)),
		)

		meds := strings.Join(names, ", ")
		return &types.AgentOutput{
			Agent:     types.AgentIntent,
			Decision:  types.DecisionNeedsInfo,
			Reason:    fmt.Sprintf("User requested %s. Routing to inventory to check stock for %d item(s).", meds, len(parsed.Items)),
			Evidence:  evidence,
			Message:   fmt.Sprintf("Let me check the availability for %s...", meds),
			NextAgent: types.AgentInventory,
		}, nil

	default:
		return &types.AgentOutput{
			Agent:    types.AgentIntent,
			Decision: types.DecisionNeedsInfo,
			Reason:   "Could not identify a medicine or refill request in the message.",
			Evidence: []types.Assertion{types.ScalarAssertion("intent", "other")},
			Message:  "I can help you order medicines or check refills. Which medicine do you need, and how many?",
		}, nil
	}
}

type intentKind string

const (
	intentOrder  intentKind = "order"
	intentRefill intentKind = "refill"
	intentOther  intentKind = "other"
)

type parsedIntent struct {
	Intent intentKind
	Items  []types.ItemRecord
}

// interpret tries the LLM first and falls back to the rule-based parser.
func (a *Agent) interpret(ctx context.Context, message string) parsedIntent {
	if a.llm != nil {
		if parsed, ok := a.interpretWithLLM(ctx, message); ok {
			return parsed
		}
	}
	return parseRuleBased(message)
}

func (a *Agent) interpretWithLLM(ctx context.Context, message string) (parsedIntent, bool) {
	raw, err := a.llm.Chat(ctx, extractionPrompt, message)
	if err != nil {
		a.log.Warnf("LLM extraction failed, using rule-based parser: %v", err)
		return parsedIntent{}, false
	}

	var wire struct {
		Intent string `json:"intent"`
		Items  []struct {
			MedicineName string `json:"medicine_name"`
			Quantity     int    `json:"quantity"`
			Strength     string `json:"strength"`
			Form         string `json:"form"`
		} `json:"items"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &wire); err != nil {
		a.log.Warnf("LLM returned unparseable extraction, using rule-based parser: %v", err)
		return parsedIntent{}, false
	}

	parsed := parsedIntent{Intent: intentKind(wire.Intent)}
	for _, item := range wire.Items {
		if strings.TrimSpace(item.MedicineName) == "" {
			continue
		}
		parsed.Items = append(parsed.Items, types.ItemRecord{
			MedicineName: strings.TrimSpace(item.MedicineName),
			Quantity:     item.Quantity,
			Strength:     strings.TrimSpace(item.Strength),
			Form:         strings.TrimSpace(item.Form),
		})
	}
	if parsed.Intent == intentOrder && len(parsed.Items) == 0 {
		return parsedIntent{}, false
	}
	switch parsed.Intent {
	case intentOrder, intentRefill, intentOther:
		return parsed, true
	}
	return parsedIntent{}, false
}

// stripCodeFence removes a markdown fence the model sometimes wraps JSON in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
