package store

import (
	"fmt"

	"github.com/khaledhikmat/ws-go/model"
)

var categoryColumns = map[model.Category]string{
	model.Cardboard:          "cardboard",
	model.FoodOrganics:       "food_organics",
	model.Glass:              "glass",
	model.Metal:              "metal",
	model.MiscellaneousTrash: "miscellaneous_trash",
	model.Paper:              "paper",
}

// counterColumns lists the counter columns in model.KnownCategories order.
func counterColumns() []string {
	cols := make([]string, 0, len(model.KnownCategories))
	for _, c := range model.KnownCategories {
		cols = append(cols, categoryColumns[c])
	}
	return cols
}

func columnFor(c model.Category) (string, error) {
	col, ok := categoryColumns[c]
	if !ok {
		return "", fmt.Errorf("no counter column for category %q", c)
	}
	return col, nil
}
