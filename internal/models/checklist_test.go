package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseChecklistMap(t *testing.T) {
	c := ParseChecklist(JSONB(`{"fire_watch":true,"barricades":false}`))
	assert.Equal(t, ChecklistMap, c.Kind)
	assert.Equal(t, []string{"barricades", "fire_watch"}, c.Keys())
	assert.True(t, c.Done("fire_watch"))
	assert.False(t, c.Done("barricades"))
	assert.False(t, c.Done("unknown"))
}

func TestParseChecklistList(t *testing.T) {
	c := ParseChecklist(JSONB(`["fire_watch","barricades"]`))
	assert.Equal(t, ChecklistList, c.Kind)
	assert.Equal(t, []string{"fire_watch", "barricades"}, c.Keys())
	// List shape carries no completion state.
	assert.False(t, c.Done("fire_watch"))
}

func TestParseChecklistLooseMap(t *testing.T) {
	c := ParseChecklist(JSONB(`{"fire_watch":true,"inspector":"jane","count":3}`))
	assert.Equal(t, ChecklistMap, c.Kind)
	assert.True(t, c.Done("fire_watch"))
	assert.False(t, c.Done("inspector"))
	assert.Len(t, c.Keys(), 3)
}

func TestParseChecklistEmptyAndGarbage(t *testing.T) {
	assert.Equal(t, ChecklistNone, ParseChecklist(nil).Kind)
	assert.Equal(t, ChecklistNone, ParseChecklist(JSONB(``)).Kind)
	assert.Equal(t, ChecklistNone, ParseChecklist(JSONB(`null`)).Kind)
	assert.Equal(t, ChecklistNone, ParseChecklist(JSONB(`42`)).Kind)
	assert.Equal(t, ChecklistNone, ParseChecklist(JSONB(`"oops"`)).Kind)
	assert.Nil(t, ParseChecklist(nil).Keys())
}

func TestStringArrayContains(t *testing.T) {
	arr := StringArray{"helmet", "gloves"}
	assert.True(t, arr.Contains("helmet"))
	assert.False(t, arr.Contains("boots"))
	assert.False(t, StringArray(nil).Contains("helmet"))
}
