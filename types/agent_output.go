package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Decision is the verdict a collaborator attaches to its output.
type Decision string

const (
	DecisionApproved  Decision = "APPROVED"
	DecisionRejected  Decision = "REJECTED"
	DecisionNeedsInfo Decision = "NEEDS_INFO"
	DecisionScheduled Decision = "SCHEDULED"
)

// AgentName identifies one of the fixed collaborators in the routing chain.
type AgentName string

const (
	AgentIntent      AgentName = "intent"
	AgentInventory   AgentName = "inventory"
	AgentPolicy      AgentName = "policy"
	AgentFulfillment AgentName = "fulfillment"
	AgentRefill      AgentName = "refill"
)

// KnownAgents is the closed set of routable collaborator names.
var KnownAgents = map[AgentName]bool{
	AgentIntent:      true,
	AgentInventory:   true,
	AgentPolicy:      true,
	AgentFulfillment: true,
	AgentRefill:      true,
}

// IsKnownAgent reports whether name belongs to the closed collaborator set.
func IsKnownAgent(name AgentName) bool {
	return KnownAgents[name]
}

// AgentOutput is the envelope every collaborator returns to the routing
// engine. It is ephemeral: it lives for one chain and is never persisted.
type AgentOutput struct {
	Agent     AgentName   `json:"agent"`
	Decision  Decision    `json:"decision"`
	Reason    string      `json:"reason"`
	Evidence  []Assertion `json:"evidence"`
	Message   string      `json:"message,omitempty"`
	NextAgent AgentName   `json:"next_agent,omitempty"`
}

// AssertionKind discriminates the two assertion variants.
type AssertionKind int

const (
	AssertionScalar AssertionKind = iota
	AssertionItem
)

// itemDataPrefix marks a structured assertion on the wire.
const itemDataPrefix = "item_data="

// Assertion is one unit of evidence. It is either a scalar key/value pair
// or a structured ItemRecord. Collaborators exchange assertions as
// "key=value" strings ("item_data=<json>" for the structured variant);
// decoding happens exactly once, here, at the contract boundary.
type Assertion struct {
	Kind  AssertionKind
	Key   string
	Value string
	Item  *ItemRecord
}

// ScalarAssertion builds a key=value assertion.
func ScalarAssertion(key, value string) Assertion {
	return Assertion{Kind: AssertionScalar, Key: key, Value: value}
}

// ItemAssertion builds a structured assertion around record.
func ItemAssertion(record ItemRecord) Assertion {
	return Assertion{Kind: AssertionItem, Item: &record}
}

// ParseAssertion decodes one wire-format evidence string. A malformed
// item_data payload is a decode error; the caller decides whether to skip
// or abort (the merger skips, per the error handling design).
func ParseAssertion(raw string) (Assertion, error) {
	if strings.HasPrefix(raw, itemDataPrefix) {
		payload := raw[len(itemDataPrefix):]
		var record ItemRecord
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			return Assertion{}, fmt.Errorf("malformed item_data assertion: %w", err)
		}
		return ItemAssertion(record), nil
	}
	key, value, found := strings.Cut(raw, "=")
	if !found {
		// Bare strings are tolerated as valueless scalars.
		return ScalarAssertion(raw, ""), nil
	}
	return ScalarAssertion(key, value), nil
}

// Wire encodes the assertion back to its string form.
func (a Assertion) Wire() string {
	if a.Kind == AssertionItem && a.Item != nil {
		payload, err := json.Marshal(a.Item)
		if err != nil {
			return itemDataPrefix + "{}"
		}
		return itemDataPrefix + string(payload)
	}
	if a.Value == "" {
		return a.Key
	}
	return a.Key + "=" + a.Value
}

// MarshalJSON keeps the wire contract: assertions travel as strings.
func (a Assertion) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Wire())
}

// UnmarshalJSON decodes a wire string. Malformed item_data is preserved as
// a scalar so the envelope stays parseable; the merger skips it later.
func (a *Assertion) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseAssertion(raw)
	if err != nil {
		*a = ScalarAssertion(raw, "")
		return nil
	}
	*a = parsed
	return nil
}
