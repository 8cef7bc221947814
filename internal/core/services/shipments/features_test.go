package shipments

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssignCategory(t *testing.T) {
	tests := []struct {
		text string
		want *string
	}{
		{"BOROSILICATE GLASS BOWL", strPtr("Glass")},
		{"glass jar", strPtr("Glass")},
		{"MILD STEEL BASKET", strPtr("Steel")},
		{"STEEL GLASS HOLDER", strPtr("Glass")},
		{"PLASTIC BOTTLE 1L", strPtr("Plastic")},
		{"WOODEN SPOON", strPtr("Wooden")},
		{"TEAK WOOD TRAY", strPtr("Wooden")},
		{"POLYHOUSE FILM", strPtr("Polyhouse")},
		{"ELECTRONIC SCALE", strPtr("Electronics")},
		{"COPPER MUG", strPtr("Others")},
		{"", nil},
		{"   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, AssignCategory(tt.text))
		})
	}
}

func TestAssignSubCategory(t *testing.T) {
	tests := []struct {
		text     string
		category *string
		want     *string
	}{
		{"BOROSILICATE GLASS BOWL", strPtr("Glass"), strPtr("Borosilicate")},
		{"OPAL GLASS PLATE", strPtr("Glass"), strPtr("Opalware")},
		{"GLASS JAR", strPtr("Glass"), strPtr("General Glass")},
		{"MILD STEEL BASKET", strPtr("Steel"), strPtr("Mild Steel")},
		{"HOUSEHOLD STEEL PLATE", strPtr("Steel"), strPtr("Household Steel")},
		{"SS STEEL LADLE", strPtr("Steel"), strPtr("Stainless Steel")},
		{"STEEL SCRUBBER", strPtr("Steel"), strPtr("Scrubber")},
		{"STEEL STRAINER", strPtr("Steel"), strPtr("Strainer")},
		{"STEEL BASKET", strPtr("Steel"), strPtr("Basket")},
		{"BRASS STEEL BASKET", strPtr("Steel"), strPtr("Stainless Steel")},
		{"STEEL PLATE", strPtr("Steel"), strPtr("General Steel")},
		{"WOODEN SPOON", strPtr("Wooden"), strPtr("Spoon")},
		{"WOODEN FORK", strPtr("Wooden"), strPtr("Fork")},
		{"WOODEN TRAY", strPtr("Wooden"), strPtr("Wooden Item")},
		{"PLASTIC BOTTLE", strPtr("Plastic"), strPtr("Bottle")},
		{"PLASTIC JUG", strPtr("Plastic"), strPtr("Plastic Item")},
		{"POLYHOUSE FILM", strPtr("Polyhouse"), strPtr("Misc")},
		{"COPPER MUG", strPtr("Others"), strPtr("Misc")},
		{"COPPER MUG", nil, strPtr("Misc")},
		{"", strPtr("Steel"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, AssignSubCategory(tt.text, tt.category))
		})
	}
}

func TestGrandTotalAndLandedCost(t *testing.T) {
	grand := GrandTotal(104000, 20800)
	assert.Equal(t, 124800.0, grand)

	assert.Equal(t, floatPtr(249.6), LandedCostPerUnit(grand, floatPtr(500)))
	assert.Nil(t, LandedCostPerUnit(grand, floatPtr(0)))
	assert.Nil(t, LandedCostPerUnit(grand, nil))
}
