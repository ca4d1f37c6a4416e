package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationBookingConfirmed   NotificationType = "BOOKING_CONFIRMED"
	NotificationBookingCancelled   NotificationType = "BOOKING_CANCELLED"
	NotificationBookingReminder    NotificationType = "BOOKING_REMINDER"
	NotificationReviewRequest      NotificationType = "REVIEW_REQUEST"
	NotificationChallengeCompleted NotificationType = "CHALLENGE_COMPLETED"
	NotificationRewardEarned       NotificationType = "REWARD_EARNED"
	NotificationPaymentReceived    NotificationType = "PAYMENT_RECEIVED"
	NotificationMessage            NotificationType = "MESSAGE"
	NotificationSystem             NotificationType = "SYSTEM"
)

// NotificationTypes lists every accepted type in display order.
var NotificationTypes = []NotificationType{
	NotificationBookingConfirmed,
	NotificationBookingCancelled,
	NotificationBookingReminder,
	NotificationReviewRequest,
	NotificationChallengeCompleted,
	NotificationRewardEarned,
	NotificationPaymentReceived,
	NotificationMessage,
	NotificationSystem,
}

func (t NotificationType) IsValid() bool {
	for _, known := range NotificationTypes {
		if t == known {
			return true
		}
	}
	return false
}

type Notification struct {
	ID        string           `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    string           `json:"userId" gorm:"type:uuid;not null;index:idx_notifications_user_read"`
	Type      NotificationType `json:"type" gorm:"type:varchar(32);not null"`
	Title     string           `json:"title" gorm:"size:255;not null"`
	Message   string           `json:"message" gorm:"type:text;not null"`
	Data      datatypes.JSON   `json:"data"`
	Read      bool             `json:"read" gorm:"not null;default:false;index:idx_notifications_user_read"`
	CreatedAt time.Time        `json:"createdAt" gorm:"autoCreateTime;index"`
	UpdatedAt time.Time        `json:"updatedAt" gorm:"autoUpdateTime"`

	// Relations
	User *User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Notification model
func (Notification) TableName() string {
	return "notifications"
}

// BeforeCreate assigns the opaque id. Ids are never rewritten afterwards.
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
