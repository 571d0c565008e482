package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		label    string
		expected Category
	}{
		{"cardboard", Cardboard},
		{"food organics", FoodOrganics},
		{"Food_Organics", FoodOrganics},
		{" miscellaneous trash ", MiscellaneousTrash},
		{"PAPER", Paper},
	}

	for _, tt := range tests {
		got, err := ParseCategory(tt.label)
		require.NoError(t, err, tt.label)
		assert.Equal(t, tt.expected, got)
	}

	_, err := ParseCategory("plastic")
	assert.Error(t, err)
}

func TestNewCategorySet_RejectsUnknownAndDuplicates(t *testing.T) {
	_, err := NewCategorySet([]string{"glass", "plastic"})
	assert.ErrorContains(t, err, "plastic")

	_, err = NewCategorySet([]string{"glass", "Glass"})
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewCategorySet(nil)
	assert.Error(t, err)
}

func TestNewCategorySet_KeepsModelOrder(t *testing.T) {
	set, err := NewCategorySet([]string{"paper", "metal", "glass"})
	require.NoError(t, err)

	assert.Equal(t, 3, set.Len())
	c, ok := set.At(1)
	require.True(t, ok)
	assert.Equal(t, Metal, c)

	slot, ok := set.Slot(Glass)
	require.True(t, ok)
	assert.Equal(t, 2, slot)

	_, ok = set.Slot(Cardboard)
	assert.False(t, ok)
	_, ok = set.At(3)
	assert.False(t, ok)
}

func TestStatCounters_JSON(t *testing.T) {
	counters := NewStatCounters(DefaultCategorySet())
	counters[Metal] = 3

	data, err := json.Marshal(counters)
	require.NoError(t, err)
	assert.JSONEq(t, `{"cardboard":0,"food_organics":0,"glass":0,"metal":3,"miscellaneous_trash":0,"paper":0}`, string(data))

	var decoded StatCounters
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, counters, decoded)
	assert.Equal(t, int64(3), decoded.Total())

	assert.Error(t, json.Unmarshal([]byte(`{"plastic":1}`), &decoded))
	assert.Error(t, json.Unmarshal([]byte(`{"glass":-1}`), &decoded))
}
