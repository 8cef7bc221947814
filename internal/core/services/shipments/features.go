package shipments

import "strings"

type keywordRule struct {
	keyword string
	label   string
}

// First match wins
var categoryRules = []keywordRule{
	{"GLASS", "Glass"},
	{"STEEL", "Steel"},
	{"PLASTIC", "Plastic"},
	{"WOOD", "Wooden"},
	{"POLYHOUSE", "Polyhouse"},
	{"ELECTRONIC", "Electronics"},
}

const (
	categoryOthers  = "Others"
	subCategoryMisc = "Misc"
)

var subCategoryRules = map[string]struct {
	rules    []keywordRule
	fallback string
}{
	"Glass": {
		rules:    []keywordRule{{"BOROSILICATE", "Borosilicate"}, {"OPAL", "Opalware"}},
		fallback: "General Glass",
	},
	"Steel": {
		rules: []keywordRule{
			{"MILD STEEL", "Mild Steel"},
			{"HOUSEHOLD STEEL", "Household Steel"},
			{"SS", "Stainless Steel"},
			{"SCRUBBER", "Scrubber"},
			{"STRAINER", "Strainer"},
			{"BASKET", "Basket"},
		},
		fallback: "General Steel",
	},
	"Wooden": {
		rules:    []keywordRule{{"SPOON", "Spoon"}, {"FORK", "Fork"}},
		fallback: "Wooden Item",
	},
	"Plastic": {
		rules:    []keywordRule{{"BOTTLE", "Bottle"}},
		fallback: "Plastic Item",
	},
}

// AssignCategory buckets a description by keyword. Blank text gives nil.
func AssignCategory(text string) *string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	label := firstMatch(strings.ToUpper(text), categoryRules, categoryOthers)
	return &label
}

// AssignSubCategory refines a category by keyword. Keywords are plain substrings,
// so "SS" also matches inside words such as BRASS. Blank text gives nil.
func AssignSubCategory(text string, category *string) *string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	label := subCategoryMisc
	if category != nil {
		if table, ok := subCategoryRules[*category]; ok {
			label = firstMatch(strings.ToUpper(text), table.rules, table.fallback)
		}
	}
	return &label
}

func firstMatch(upper string, rules []keywordRule, fallback string) string {
	for _, r := range rules {
		if strings.Contains(upper, r.keyword) {
			return r.label
		}
	}
	return fallback
}

// GrandTotal is the declared value plus duty paid
func GrandTotal(totalValue, dutyPaid float64) float64 {
	return totalValue + dutyPaid
}

// LandedCostPerUnit divides the grand total over the parsed quantity; nil when there is none
func LandedCostPerUnit(grandTotal float64, qty *float64) *float64 {
	if qty == nil || *qty == 0 {
		return nil
	}
	v := grandTotal / *qty
	return &v
}
