package engine

import "strings"

// Category is one of the fixed spending categories. Uncategorized is a
// first-class outcome, not a failure.
type Category string

const (
	CategoryRent             Category = "rent"
	CategoryTravel           Category = "travel"
	CategoryFood             Category = "food"
	CategoryPartnerLoan      Category = "partner_loan"
	CategoryBusinessPurchase Category = "business_purchase"
	CategoryClientAcq        Category = "client_acquisition"
	CategoryUncategorized    Category = "uncategorized"
)

// categoryRule maps a category to its trigger keywords. The slice order is
// part of the classification contract: when a message matches keywords from
// several categories, the earliest entry wins.
type categoryRule struct {
	category Category
	keywords []string
}

var categoryRules = []categoryRule{
	{CategoryRent, []string{"rent", "rental", "office rent", "shop rent", "lease"}},
	{CategoryTravel, []string{"travel", "auto", "cab", "uber", "ola", "fuel", "petrol", "diesel", "ticket", "train", "bus", "flight", "metro"}},
	{CategoryFood, []string{"food", "lunch", "dinner", "breakfast", "tea", "coffee", "snacks", "meal", "restaurant", "hotel", "eating"}},
	{CategoryPartnerLoan, []string{"loan", "lent", "lending", "borrowed", "gave to company", "lent to company", "partner loan", "personal money"}},
	{CategoryBusinessPurchase, []string{"stock", "inventory", "purchase", "bought", "product", "goods", "material", "supplies", "wholesale"}},
	{CategoryClientAcq, []string{"client", "customer", "acquisition", "gift", "meeting", "commission", "marketing", "promotion", "business development"}},
}

// Classify assigns a category from keyword evidence. Matching is
// case-insensitive substring containment, so a keyword can hit inside a
// longer token.
func Classify(text string) Category {
	lower := strings.ToLower(text)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return CategoryUncategorized
}

// Categories returns the closed category set in priority order, with
// uncategorized last.
func Categories() []Category {
	out := make([]Category, 0, len(categoryRules)+1)
	for _, rule := range categoryRules {
		out = append(out, rule.category)
	}
	return append(out, CategoryUncategorized)
}

// Label renders the category key for humans: underscores become spaces and
// each word is title-cased ("business_purchase" -> "Business Purchase").
// Replies, exports and reports must all use this rendering.
func (c Category) Label() string {
	words := strings.Split(string(c), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
