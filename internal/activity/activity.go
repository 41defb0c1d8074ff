// Package activity appends the immutable audit trail. Recording is
// best-effort: a failed append is logged and swallowed so it can never roll
// back or block the mutation it describes.
package activity

import (
	"encoding/json"
	"log"

	"github.com/taskboard-dev/taskboard/db"
	"github.com/taskboard-dev/taskboard/internal/models"
	"gorm.io/datatypes"
)

// Record appends one audit entry. meta is optional structured context,
// usually one of the types in internal/types/payloads.go.
func Record(actorUserID uint, entityType string, entityID uint, action string, description string, meta interface{}) {
	entry := models.ActivityLog{
		ActorUserID: actorUserID,
		EntityType:  entityType,
		EntityID:    entityID,
		Action:      action,
		Description: description,
	}

	if meta != nil {
		raw, err := json.Marshal(meta)

		if err != nil {
			log.Printf("Failed to marshal activity meta for %s %d: %v", entityType, entityID, err)
		} else {
			entry.Meta = datatypes.JSON(raw)
		}
	}

	if err := db.DB.Create(&entry).Error; err != nil {
		log.Printf("Failed to record activity %s on %s %d: %v", action, entityType, entityID, err)
	}
}
