package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Category string

const (
	Cardboard          Category = "cardboard"
	FoodOrganics       Category = "food_organics"
	Glass              Category = "glass"
	Metal              Category = "metal"
	MiscellaneousTrash Category = "miscellaneous_trash"
	Paper              Category = "paper"
)

// KnownCategories is the fixed label set the stat rows have a counter for, in model order.
var KnownCategories = []Category{
	Cardboard,
	FoodOrganics,
	Glass,
	Metal,
	MiscellaneousTrash,
	Paper,
}

// ParseCategory normalises a model label ("food organics") into a Category and
// rejects labels outside KnownCategories.
func ParseCategory(label string) (Category, error) {
	normalised := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(label)), " ", "_")
	for _, c := range KnownCategories {
		if string(c) == normalised {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown waste category %q", label)
}

// CategorySet is the ordered label set a classifier was trained on together with the
// counter slot assigned to each label.
type CategorySet struct {
	ordered []Category
	slots   map[Category]int
}

// NewCategorySet validates model labels against KnownCategories. Duplicates and unknown
// labels are configuration errors.
func NewCategorySet(labels []string) (CategorySet, error) {
	if len(labels) == 0 {
		return CategorySet{}, fmt.Errorf("empty category list")
	}

	set := CategorySet{
		ordered: make([]Category, 0, len(labels)),
		slots:   make(map[Category]int, len(labels)),
	}
	for _, label := range labels {
		c, err := ParseCategory(label)
		if err != nil {
			return CategorySet{}, err
		}
		if _, dup := set.slots[c]; dup {
			return CategorySet{}, fmt.Errorf("duplicate waste category %q", label)
		}
		set.slots[c] = len(set.ordered)
		set.ordered = append(set.ordered, c)
	}

	return set, nil
}

// DefaultCategorySet returns the set in KnownCategories order.
func DefaultCategorySet() CategorySet {
	labels := make([]string, len(KnownCategories))
	for i, c := range KnownCategories {
		labels[i] = string(c)
	}
	set, _ := NewCategorySet(labels)
	return set
}

func (s CategorySet) Len() int {
	return len(s.ordered)
}

// At returns the category for a classifier output index.
func (s CategorySet) At(idx int) (Category, bool) {
	if idx < 0 || idx >= len(s.ordered) {
		return "", false
	}
	return s.ordered[idx], true
}

func (s CategorySet) Slot(c Category) (int, bool) {
	slot, ok := s.slots[c]
	return slot, ok
}

func (s CategorySet) Categories() []Category {
	out := make([]Category, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// StatCounters maps a category to its tally.
type StatCounters map[Category]int64

// NewStatCounters returns zeroed counters for every category of the set.
func NewStatCounters(set CategorySet) StatCounters {
	counters := make(StatCounters, set.Len())
	for _, c := range set.ordered {
		counters[c] = 0
	}
	return counters
}

func (c StatCounters) Total() int64 {
	var total int64
	for _, n := range c {
		total += n
	}
	return total
}

func (c StatCounters) Clone() StatCounters {
	out := make(StatCounters, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// UnmarshalJSON rejects unknown category keys and negative counts.
func (c *StatCounters) UnmarshalJSON(data []byte) error {
	raw := map[string]int64{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(StatCounters, len(raw))
	for label, n := range raw {
		cat, err := ParseCategory(label)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("negative count %d for %s", n, cat)
		}
		out[cat] = n
	}
	*c = out
	return nil
}
