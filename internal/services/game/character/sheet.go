package character

import "time"

// Status is the lifecycle state of a sheet.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Sheet is a character sheet record.
type Sheet struct {
	ID         string    `json:"_id"`
	Player     string    `json:"player"`
	Campaign   string    `json:"campaign,omitempty"`
	Name       string    `json:"name" validate:"required,max=80"`
	AvatarURL  string    `json:"avatarUrl,omitempty" validate:"omitempty,url"`
	Status     Status    `json:"status" validate:"oneof=active archived"`
	Tags       []string  `json:"tags" validate:"dive,required"`
	Body       Body      `json:"sheet"`
	ForkedFrom string    `json:"forkedFrom,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Body is the mechanical part of a sheet.
type Body struct {
	ArchetypeKey string              `json:"archetypeKey,omitempty"`
	WeaveLevel   int                 `json:"weaveLevel" validate:"gte=0"`
	Aspects      AspectScores        `json:"aspects"`
	Skills       map[string]int      `json:"skills"`
	Features     []string            `json:"features"`
	Resources    Resources           `json:"resources"`
	Conditions   []ConditionInstance `json:"conditions" validate:"dive"`
	Inventory    []InventoryItem     `json:"inventory" validate:"dive"`
	Notes        string              `json:"notes,omitempty"`
}

// Resources groups the tracked pools.
type Resources struct {
	HP      ResourceTrack  `json:"hp"`
	Threads ResourceTrack  `json:"threads"`
	Resolve *ResourceTrack `json:"resolve,omitempty"`
	Other   map[string]int `json:"other"`
}

// ResourceTrack is a current/max pool with optional temporary points.
type ResourceTrack struct {
	Current int  `json:"current" validate:"gte=0"`
	Max     int  `json:"max" validate:"gte=0"`
	Temp    *int `json:"temp,omitempty" validate:"omitempty,gte=0"`
}

// TempValue returns Temp or zero.
func (r ResourceTrack) TempValue() int {
	if r.Temp == nil {
		return 0
	}
	return *r.Temp
}

// ConditionInstance is a condition applied to a character.
type ConditionInstance struct {
	Key       string     `json:"key" validate:"required"`
	Stacks    int        `json:"stacks,omitempty" validate:"gte=0"`
	AppliedAt *time.Time `json:"appliedAt,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Source    string     `json:"source,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

// InventoryItem is a carried item, either catalog-backed (ItemKey) or custom.
type InventoryItem struct {
	ItemKey  string   `json:"itemKey,omitempty"`
	SourceID string   `json:"sourceId,omitempty"`
	Name     string   `json:"name,omitempty"`
	Qty      int      `json:"qty" validate:"gte=0"`
	Tags     []string `json:"tags,omitempty"`
	Notes    string   `json:"notes,omitempty"`
}
