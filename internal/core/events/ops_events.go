package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeCatalogChanged  = "rbac.catalog_changed"
	EventTypeAssetsRefreshed = "assets.refreshed"
)

// CatalogChangedEvent is raised whenever a role's permission set may differ
// from what resolvers have cached. An empty Role means every role.
type CatalogChangedEvent struct {
	BaseEvent
	Role string `json:"role"`
}

func NewCatalogChangedEvent(role, reason string) *CatalogChangedEvent {
	return &CatalogChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeCatalogChanged,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"role":   role,
				"reason": reason,
			},
		},
		Role: role,
	}
}

type AssetsRefreshedEvent struct {
	BaseEvent
	Category string `json:"category"`
	Archived int    `json:"archived"`
	Failed   int    `json:"failed"`
}

func NewAssetsRefreshedEvent(category string, archived, failed int) *AssetsRefreshedEvent {
	return &AssetsRefreshedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeAssetsRefreshed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"category": category,
				"archived": archived,
				"failed":   failed,
			},
		},
		Category: category,
		Archived: archived,
		Failed:   failed,
	}
}
