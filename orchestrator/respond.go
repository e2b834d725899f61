package orchestrator

import (
	"fmt"
	"strings"

	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
)

// synthesize turns a finished chain into user-facing text. The final
// collaborator's own message wins when present; otherwise the text is
// derived from its decision, the merged order and the rejection reason.
// The result is never empty.
func synthesize(result chainResult) string {
	last := result.last()
	if last == nil {
		return "I'm sorry, I couldn't process that. Could you rephrase?"
	}
	if msg := strings.TrimSpace(last.Message); msg != "" {
		return msg
	}

	order := mergedOrder(result.evidence)
	reason := strings.TrimSpace(last.Reason)
	lowerReason := strings.ToLower(reason)

	switch last.Decision {
	case types.DecisionApproved:
		if item, ok := missingQuantityItem(order); ok {
			return askQuantityText(item)
		}
		if order.HasItems() {
			item := order.Items[0]
			msg := fmt.Sprintf("Perfect! I'll prepare an order for %d %s of %s.",
				item.Quantity, unitWord(item), medicineLabel(item))
			if prescriptionRequested(result.evidence) {
				msg += " This medicine requires a prescription, please upload it to continue."
			}
			return msg
		}
		return "Everything looks good with your request."

	case types.DecisionRejected:
		label := orderLabel(order)
		switch {
		case strings.Contains(lowerReason, "out of stock") || strings.Contains(lowerReason, "out_of_stock"):
			return fmt.Sprintf("I'm sorry, %s is currently out of stock. Would you like me to check for alternatives or notify you when it's back?", label)
		case strings.Contains(lowerReason, "discontinued"):
			return fmt.Sprintf("I'm sorry, %s has been discontinued. I can suggest some alternatives if you'd like.", label)
		case reason != "":
			return "I'm sorry, I can't complete that: " + reason
		}
		return "I'm sorry, I can't complete that request."

	case types.DecisionNeedsInfo:
		if reason != "" {
			return reason
		}
		return "I need a bit more information to continue. Could you tell me more?"

	case types.DecisionScheduled:
		return "I've noted the refills that are coming up."

	default:
		return "I'm not sure how to help with that. Could you rephrase?"
	}
}

// missingQuantityItem returns the first order line without a usable
// quantity.
func missingQuantityItem(order types.OrderInfo) (types.ItemRecord, bool) {
	for _, item := range order.Items {
		if item.Quantity <= 0 {
			return item, true
		}
	}
	return types.ItemRecord{}, false
}

// askQuantityText confirms availability and asks how many units the user
// wants before an order line can be priced.
func askQuantityText(item types.ItemRecord) string {
	msg := fmt.Sprintf("Yes, %s is available.", medicineLabel(item))
	if item.PrescriptionRequired {
		msg += " This medicine requires a valid prescription."
	}
	return msg + " How many would you like to order?"
}

func medicineLabel(item types.ItemRecord) string {
	if item.MedicineName == "" {
		return "the medicine"
	}
	return strings.TrimSpace(item.MedicineName + " " + item.Strength)
}

func orderLabel(order types.OrderInfo) string {
	if !order.HasItems() {
		return "the medicine"
	}
	return medicineLabel(order.Items[0])
}

func unitWord(item types.ItemRecord) string {
	if item.Form != "" {
		return strings.ToLower(item.Form) + "s"
	}
	return "units"
}

// previewText renders the priced order as chat text to accompany the
// preview card.
func previewText(preview *types.OrderPreview) string {
	var b strings.Builder
	b.WriteString("Here is your order summary:\n")
	for _, line := range preview.Items {
		b.WriteString(fmt.Sprintf("  - %s", line.MedicineName))
		if line.Strength != "" {
			b.WriteString(" " + line.Strength)
		}
		b.WriteString(fmt.Sprintf(" x%d @ $%.2f = $%.2f\n", line.Quantity, line.UnitPrice, line.LineTotal))
	}
	b.WriteString(fmt.Sprintf("Subtotal $%.2f, tax $%.2f, delivery $%.2f. Total: $%.2f.\n",
		preview.Totals.Subtotal, preview.Totals.Tax, preview.Totals.DeliveryFee, preview.Totals.Total))
	for _, note := range preview.SafetyNotes {
		b.WriteString("Note: " + note + "\n")
	}
	b.WriteString("Reply \"confirm\" to place the order.")
	return b.String()
}
