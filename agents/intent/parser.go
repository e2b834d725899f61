package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
)

var (
	strengthRe = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(mg|mcg|ml|g|iu)\b`)
	numberRe   = regexp.MustCompile(`\b(\d+)\b`)
	segmentRe  = regexp.MustCompile(`(?i)\s*(?:,|;|\band\b|\bplus\b)\s*`)
)

var refillWords = []string{"refill", "refills", "running low", "running out", "out of my"}

// stopwords are filler words removed before the remaining tokens are
// treated as the medicine name.
var stopwords = map[string]bool{
	"i": true, "need": true, "want": true, "would": true, "like": true,
	"order": true, "buy": true, "get": true, "me": true, "some": true,
	"please": true, "of": true, "the": true, "a": true, "an": true,
	"to": true, "can": true, "you": true, "my": true, "for": true,
	"tablets": true, "tablet": true, "capsules": true, "capsule": true,
	"pills": true, "pill": true, "strips": true, "strip": true,
	"bottles": true, "bottle": true, "boxes": true, "box": true,
	"units": true, "unit": true, "hi": true, "hello": true, "hey": true,
	"ok": true, "okay": true, "yes": true, "no": true, "sure": true,
	"confirm": true, "thanks": true, "thank": true, "that": true, "it": true,
}

var formWords = map[string]string{
	"tablet": "Tablet", "tablets": "Tablet", "pill": "Tablet", "pills": "Tablet",
	"capsule": "Capsule", "capsules": "Capsule",
	"syrup": "Syrup", "bottle": "Syrup", "bottles": "Syrup",
	"injection": "Injection", "injections": "Injection", "vial": "Injection",
	"inhaler": "Inhaler", "inhalers": "Inhaler", "puff": "Inhaler",
}

// parseRuleBased extracts intent and items from the message without a model.
func parseRuleBased(message string) parsedIntent {
	lower := strings.ToLower(message)
	for _, w := range refillWords {
		if strings.Contains(lower, w) {
			return parsedIntent{Intent: intentRefill}
		}
	}

	var items []types.ItemRecord
	for _, segment := range segmentRe.Split(message, -1) {
		if item, ok := parseSegment(segment); ok {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return parsedIntent{Intent: intentOther}
	}
	return parsedIntent{Intent: intentOrder, Items: items}
}

func parseSegment(segment string) (types.ItemRecord, bool) {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return types.ItemRecord{}, false
	}

	var item types.ItemRecord

	if m := strengthRe.FindStringSubmatch(segment); m != nil {
		item.Strength = m[1] + strings.ToLower(m[2])
		segment = strengthRe.ReplaceAllString(segment, " ")
	}

	// First standalone number left after the strength is the quantity.
	if m := numberRe.FindStringSubmatch(segment); m != nil {
		item.Quantity, _ = strconv.Atoi(m[1])
		segment = strings.Replace(segment, m[0], " ", 1)
	}

	var nameTokens []string
	for _, tok := range strings.Fields(segment) {
		clean := strings.ToLower(strings.Trim(tok, ".,!?"))
		if clean == "" || stopwords[clean] {
			if form, ok := formWords[clean]; ok && item.Form == "" {
				item.Form = form
			}
			continue
		}
		if form, ok := formWords[clean]; ok {
			if item.Form == "" {
				item.Form = form
			}
			continue
		}
		nameTokens = append(nameTokens, titleCase(clean))
	}
	if len(nameTokens) == 0 {
		return types.ItemRecord{}, false
	}
	item.MedicineName = strings.Join(nameTokens, " ")
	return item, true
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
