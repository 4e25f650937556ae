package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/helpdesk-labs/support-rewards/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StopNotificationWorker drains in-flight deliveries for up to grace.
func StopNotificationWorker(notificationService *service.NotificationService, grace time.Duration, logger *zap.Logger) {
	if notificationService == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := notificationService.Shutdown(ctx); err != nil {
		logger.Warn("notifications still in flight at shutdown", zap.Error(err))
	}
}
