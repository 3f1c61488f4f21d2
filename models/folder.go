package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Folder groups files and maps to a forum topic in the Telegram group.
// TelegramTopicID may be a locally generated placeholder when remote topic
// provisioning failed; such folders never map to a real topic.
//
// ShareID is minted the first time the folder is made public and is kept
// forever after, even across later private/public toggles.
type Folder struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name            string             `bson:"name" json:"name"`
	TelegramTopicID int                `bson:"telegramTopicId" json:"telegramTopicId"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	CreatedBy       string             `bson:"createdBy" json:"createdBy"`
	IsPublic        bool               `bson:"isPublic" json:"isPublic"`
	ShareID         string             `bson:"shareId,omitempty" json:"shareId,omitempty"`
}
