package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"harambee/models"

	"go.uber.org/zap"
)

// NotificationService pushes payment events to realtime channels.
type NotificationService interface {
	NotifyMember(ctx context.Context, memberID string, n models.Notification) error
	NotifyRechargeLink(ctx context.Context, token string, n models.Notification) error
}

// Publisher delivers a message on a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) error
}

// DefaultNotificationService is the production implementation.
type DefaultNotificationService struct {
	publisher Publisher
	logger    *zap.Logger
}

func NewDefaultNotificationService(publisher Publisher, logger *zap.Logger) (*DefaultNotificationService, error) {
	if publisher == nil || logger == nil {
		return nil, errors.New("notification service initialization error: publisher or logger is nil")
	}
	return &DefaultNotificationService{publisher: publisher, logger: logger}, nil
}

func MemberChannel(memberID string) string {
	return fmt.Sprintf("member-%s", memberID)
}

func RechargeChannel(token string) string {
	return fmt.Sprintf("recharge-%s", token)
}

func (s *DefaultNotificationService) NotifyMember(ctx context.Context, memberID string, n models.Notification) error {
	if memberID == "" {
		return nil
	}
	return s.publish(ctx, MemberChannel(memberID), n)
}

func (s *DefaultNotificationService) NotifyRechargeLink(ctx context.Context, token string, n models.Notification) error {
	if token == "" {
		return nil
	}
	return s.publish(ctx, RechargeChannel(token), n)
}

func (s *DefaultNotificationService) publish(ctx context.Context, channel string, n models.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if err := s.publisher.Publish(ctx, channel, n); err != nil {
		s.logger.Warn("notification publish failed",
			zap.String("channel", channel),
			zap.String("type", n.Type),
			zap.Error(err))
		return fmt.Errorf("publish %s to %s: %w", n.Type, channel, err)
	}
	s.logger.Debug("notification published", zap.String("channel", channel), zap.String("type", n.Type))
	return nil
}
