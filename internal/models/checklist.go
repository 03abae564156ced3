package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// ChecklistKind tags the shape a safety checklist arrived in.
type ChecklistKind int

const (
	ChecklistNone ChecklistKind = iota
	ChecklistList
	ChecklistMap
)

// Checklist normalizes the heterogeneous safety_checklist column. Stored
// rows may hold a JSON object (item -> done), a JSON array of item names,
// or null; readers see one shape.
type Checklist struct {
	Kind    ChecklistKind
	Items   []string
	Entries map[string]bool
}

// ParseChecklist never fails: unrecognized shapes normalize to an empty
// checklist.
func ParseChecklist(raw JSONB) Checklist {
	if len(raw) == 0 {
		return Checklist{Kind: ChecklistNone}
	}
	var asMap map[string]bool
	if err := json.Unmarshal(raw, &asMap); err == nil && asMap != nil {
		return Checklist{Kind: ChecklistMap, Entries: asMap}
	}
	var asList []string
	if err := json.Unmarshal(raw, &asList); err == nil && asList != nil {
		return Checklist{Kind: ChecklistList, Items: asList}
	}
	// Object with non-bool values: keep keys, treat truthy values as done.
	var loose map[string]any
	if err := json.Unmarshal(raw, &loose); err == nil && loose != nil {
		entries := make(map[string]bool, len(loose))
		for k, v := range loose {
			b, _ := v.(bool)
			entries[k] = b
		}
		return Checklist{Kind: ChecklistMap, Entries: entries}
	}
	return Checklist{Kind: ChecklistNone}
}

// Keys returns the checklist item names in stable order.
func (c Checklist) Keys() []string {
	switch c.Kind {
	case ChecklistList:
		out := make([]string, len(c.Items))
		copy(out, c.Items)
		return out
	case ChecklistMap:
		out := make([]string, 0, len(c.Entries))
		for k := range c.Entries {
			out = append(out, k)
		}
		sort.Strings(out)
		return out
	}
	return nil
}

// Done reports whether the named item is marked complete. List-shaped
// checklists carry no completion state and always report false.
func (c Checklist) Done(key string) bool {
	if c.Kind != ChecklistMap {
		return false
	}
	return c.Entries[key]
}

// ChecklistTemplateItem is one row of a closeout checklist template.
type ChecklistTemplateItem struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

type ChecklistTemplateItems []ChecklistTemplateItem

func (items ChecklistTemplateItems) Value() (driver.Value, error) {
	if items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]ChecklistTemplateItem(items))
}

func (items *ChecklistTemplateItems) Scan(value interface{}) error {
	b, err := jsonbBytes(value)
	if err != nil {
		return fmt.Errorf("checklist template items scan: %w", err)
	}
	if b == nil {
		*items = ChecklistTemplateItems{}
		return nil
	}
	return json.Unmarshal(b, (*[]ChecklistTemplateItem)(items))
}

// CloseoutItemState is the per-item completion record of a permit closeout.
type CloseoutItemState struct {
	Done bool       `json:"done"`
	ByID *string    `json:"by,omitempty"`
	At   *time.Time `json:"at,omitempty"`
}

type CloseoutState map[string]CloseoutItemState

func (s CloseoutState) Value() (driver.Value, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]CloseoutItemState(s))
}

func (s *CloseoutState) Scan(value interface{}) error {
	b, err := jsonbBytes(value)
	if err != nil {
		return fmt.Errorf("closeout state scan: %w", err)
	}
	if b == nil {
		*s = CloseoutState{}
		return nil
	}
	return json.Unmarshal(b, (*map[string]CloseoutItemState)(s))
}

func jsonbBytes(value interface{}) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, fmt.Errorf("unsupported type %T", value)
}
