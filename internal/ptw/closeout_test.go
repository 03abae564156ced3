package ptw

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"athens/internal/models"
)

func TestMissingRequiredKeys(t *testing.T) {
	items := models.ChecklistTemplateItems{
		{Key: "tools_removed", Label: "Tools removed", Required: true},
		{Key: "area_clean", Label: "Area cleaned", Required: true},
		{Key: "photos", Label: "Photos attached", Required: false},
	}

	state := models.CloseoutState{}
	assert.Equal(t, []string{"area_clean", "tools_removed"}, MissingRequiredKeys(items, state))

	state["tools_removed"] = models.CloseoutItemState{Done: true}
	assert.Equal(t, []string{"area_clean"}, MissingRequiredKeys(items, state))

	// A present-but-undone entry still counts as missing.
	state["area_clean"] = models.CloseoutItemState{Done: false}
	assert.Equal(t, []string{"area_clean"}, MissingRequiredKeys(items, state))

	state["area_clean"] = models.CloseoutItemState{Done: true}
	assert.Empty(t, MissingRequiredKeys(items, state))
}

func TestMissingRequiredKeysNoTemplate(t *testing.T) {
	assert.Empty(t, MissingRequiredKeys(nil, models.CloseoutState{}))
}
