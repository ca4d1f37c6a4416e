package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"xhunt-server/config"
	"xhunt-server/database"
	"xhunt-server/models"
	"xhunt-server/types"
)

// Live event types pushed to connected clients.
const (
	EventNotificationCreated = "notification.created"
	EventUnreadCount         = "notification.unread_count"
)

// Publisher delivers live events to a user's open connections. It must not block.
type Publisher interface {
	Watching(userID string) bool
	Publish(userID, eventType string, data interface{})
}

type noopPublisher struct{}

func (noopPublisher) Watching(string) bool { return false }

func (noopPublisher) Publish(string, string, interface{}) {}

// NotificationService implements the notification endpoint's operations. Every
// operation is scoped to the caller passed in; nothing is shared between calls.
type NotificationService struct {
	db           *gorm.DB
	publisher    Publisher
	log          *zap.Logger
	defaultLimit int
	maxLimit     int
}

// NewNotificationService creates a new notification service
func NewNotificationService(db *gorm.DB, cfg config.NotificationsConfig, publisher Publisher, log *zap.Logger) *NotificationService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	defaultLimit, maxLimit := cfg.DefaultPageLimit, cfg.MaxPageLimit
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &NotificationService{
		db:           db,
		publisher:    publisher,
		log:          log,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// ListFilter is a parsed list query.
type ListFilter struct {
	Type  *models.NotificationType
	Read  *bool
	Page  int
	Limit int
}

// ListResult is one page of the caller's notifications.
type ListResult struct {
	Notifications []models.Notification `json:"notifications"`
	Pagination    types.Pagination      `json:"pagination"`
	UnreadCount   int64                 `json:"unreadCount"`
}

// ParseListFilter turns raw query values into a filter. Bad type/read values are
// validation errors; bad page/limit values fall back to the defaults and limit is
// capped at the configured maximum.
func (s *NotificationService) ParseListFilter(typ, read, page, limit string) (ListFilter, error) {
	f := ListFilter{Page: 1, Limit: s.defaultLimit}
	var verr types.ValidationError

	if typ != "" {
		t := models.NotificationType(typ)
		if t.IsValid() {
			f.Type = &t
		} else {
			verr.Add("type", typeMessage())
		}
	}
	if read != "" {
		b, err := strconv.ParseBool(read)
		if err != nil {
			verr.Add("read", "must be true or false")
		} else {
			f.Read = &b
		}
	}
	if n, err := strconv.Atoi(page); err == nil && n > 0 {
		f.Page = n
	}
	if n, err := strconv.Atoi(limit); err == nil && n > 0 {
		f.Limit = min(n, s.maxLimit)
	}

	return f, verr.OrNil()
}

// List returns the caller's notifications, newest first, plus the caller's
// unread total which ignores the read filter.
func (s *NotificationService) List(ctx context.Context, caller *models.User, f ListFilter) (*ListResult, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = s.defaultLimit
	}

	filtered := func(db *gorm.DB) *gorm.DB {
		db = db.Where("user_id = ?", caller.ID)
		if f.Type != nil {
			db = db.Where("type = ?", *f.Type)
		}
		if f.Read != nil {
			db = db.Where("read = ?", *f.Read)
		}
		return db
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Notification{}).Scopes(filtered).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}

	pagination := types.NewPagination(f.Page, f.Limit, total)
	notifications := make([]models.Notification, 0)
	err := s.db.WithContext(ctx).
		Scopes(filtered).
		Order("created_at DESC, id DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit).
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	unread, err := s.UnreadCount(ctx, caller.ID)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Notifications: notifications,
		Pagination:    pagination,
		UnreadCount:   unread,
	}, nil
}

// UnreadCount counts the user's unread notifications.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// CreateNotificationInput is the create payload.
type CreateNotificationInput struct {
	UserID  string                  `json:"userId" validate:"required"`
	Type    models.NotificationType `json:"type" validate:"required,notification_type"`
	Title   string                  `json:"title" validate:"notblank,max=255"`
	Message string                  `json:"message" validate:"notblank,max=5000"`
	Data    map[string]interface{}  `json:"data"`
}

// Create stores a notification for input.UserID. Non-admin callers may only
// target themselves.
func (s *NotificationService) Create(ctx context.Context, caller *models.User, input CreateNotificationInput) (*models.Notification, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	if !caller.IsAdmin() && input.UserID != caller.ID {
		return nil, types.NewError(types.ErrForbidden, "Cannot create notifications for other users")
	}

	targetMissing := types.NewError(types.ErrNotFound, "Target user not found")
	if input.UserID != caller.ID {
		if _, err := uuid.Parse(input.UserID); err != nil {
			return nil, targetMissing
		}
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", input.UserID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("lookup target user: %w", err)
		}
		if count == 0 {
			return nil, targetMissing
		}
	}

	var data datatypes.JSON
	if input.Data != nil {
		raw, err := json.Marshal(input.Data)
		if err != nil {
			return nil, (&types.ValidationError{}).Add("data", "must be a JSON object")
		}
		data = datatypes.JSON(raw)
	}

	notification := &models.Notification{
		UserID:  input.UserID,
		Type:    input.Type,
		Title:   strings.TrimSpace(input.Title),
		Message: strings.TrimSpace(input.Message),
		Data:    data,
		Read:    false,
	}
	if err := s.db.WithContext(ctx).Create(notification).Error; err != nil {
		// The target can disappear between the lookup and the insert.
		if database.IsForeignKeyViolation(err) {
			return nil, targetMissing
		}
		return nil, fmt.Errorf("create notification: %w", err)
	}

	notificationsCreated.WithLabelValues(string(notification.Type)).Inc()
	s.log.Info("notification created",
		zap.String("notification_id", notification.ID),
		zap.String("user_id", notification.UserID),
		zap.String("created_by", caller.ID),
		zap.String("type", string(notification.Type)),
	)

	if s.publisher.Watching(notification.UserID) {
		s.publisher.Publish(notification.UserID, EventNotificationCreated, notification)
	}
	s.publishUnreadCount(ctx, notification.UserID)

	return notification, nil
}

// MarkRead sets read=true on the given ids that belong to the caller in one
// statement. Ids owned by others or missing are skipped, not reported.
func (s *NotificationService) MarkRead(ctx context.Context, caller *models.User, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, types.NewError(types.ErrBadRequest, "notificationIds must be a non-empty array")
	}
	valid := validIDs(ids)
	if len(valid) == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id IN ? AND user_id = ?", valid, caller.ID).
		Update("read", true)
	if result.Error != nil {
		return 0, fmt.Errorf("mark notifications read: %w", result.Error)
	}

	notificationsMarkedRead.Add(float64(result.RowsAffected))
	s.publishUnreadCount(ctx, caller.ID)
	return result.RowsAffected, nil
}

// MarkAllRead sets read=true on every unread notification of the caller.
func (s *NotificationService) MarkAllRead(ctx context.Context, caller *models.User) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", caller.ID, false).
		Update("read", true)
	if result.Error != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", result.Error)
	}

	notificationsMarkedRead.Add(float64(result.RowsAffected))
	s.publishUnreadCount(ctx, caller.ID)
	return result.RowsAffected, nil
}

// Archive permanently deletes the given ids that belong to the caller. There is
// no archived state; the rows are gone afterwards.
func (s *NotificationService) Archive(ctx context.Context, caller *models.User, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, types.NewError(types.ErrBadRequest, "notificationIds must be a non-empty array")
	}
	valid := validIDs(ids)
	if len(valid) == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).
		Where("id IN ? AND user_id = ?", valid, caller.ID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("archive notifications: %w", result.Error)
	}

	notificationsDeleted.Add(float64(result.RowsAffected))
	s.publishUnreadCount(ctx, caller.ID)
	return result.RowsAffected, nil
}

// UpdateNotificationInput lists the writable fields. Anything else in the body is ignored.
type UpdateNotificationInput struct {
	Read *bool `json:"read"`
}

// Update applies input to one of the caller's notifications.
func (s *NotificationService) Update(ctx context.Context, caller *models.User, id string, input UpdateNotificationInput) (*models.Notification, error) {
	if id == "" {
		return nil, types.NewError(types.ErrBadRequest, "Notification id is required")
	}
	if input.Read != nil && !*input.Read {
		return nil, (&types.ValidationError{}).Add("read", "can only be set to true")
	}

	notification, err := s.findOwned(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	if input.Read != nil && !notification.Read {
		if err := s.db.WithContext(ctx).Model(notification).Update("read", true).Error; err != nil {
			return nil, fmt.Errorf("update notification: %w", err)
		}
		notification.Read = true
		notificationsMarkedRead.Inc()
		s.publishUnreadCount(ctx, caller.ID)
	}

	return notification, nil
}

// Delete removes one of the caller's notifications.
func (s *NotificationService) Delete(ctx context.Context, caller *models.User, id string) error {
	if id == "" {
		return types.NewError(types.ErrBadRequest, "Notification id is required")
	}

	notification, err := s.findOwned(ctx, caller, id)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(notification).Error; err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}

	notificationsDeleted.Inc()
	if !notification.Read {
		s.publishUnreadCount(ctx, caller.ID)
	}
	return nil
}

// findOwned loads a notification only if the caller owns it. Missing and
// foreign ids produce the same NotFound.
func (s *NotificationService) findOwned(ctx context.Context, caller *models.User, id string) (*models.Notification, error) {
	notFound := types.NewError(types.ErrNotFound, "Notification not found")
	if _, err := uuid.Parse(id); err != nil {
		return nil, notFound
	}

	var notification models.Notification
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, caller.ID).
		First(&notification).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("find notification: %w", err)
	}
	return &notification, nil
}

func (s *NotificationService) publishUnreadCount(ctx context.Context, userID string) {
	if !s.publisher.Watching(userID) {
		return
	}
	count, err := s.UnreadCount(ctx, userID)
	if err != nil {
		s.log.Warn("unread count for live update failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	s.publisher.Publish(userID, EventUnreadCount, map[string]int64{"unreadCount": count})
}

// validIDs drops ids that cannot name a row so they never reach a uuid column.
func validIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			out = append(out, id)
		}
	}
	return out
}
