package sync

import (
	"context"

	"go.uber.org/zap"
)

// Notification is an in-app alert surfaced to the teacher.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

// Notifier surfaces in-app notifications to collaborators.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type publisher interface {
	Publish(ctx context.Context, channel string, value interface{}) error
}

// ChannelNotifier publishes notifications on a Redis pub/sub channel, where
// UI processes pick them up.
type ChannelNotifier struct {
	pub     publisher
	channel string
	logger  *zap.Logger
}

// NewChannelNotifier constructs a ChannelNotifier.
func NewChannelNotifier(pub publisher, channel string, logger *zap.Logger) *ChannelNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChannelNotifier{pub: pub, channel: channel, logger: logger}
}

// Notify publishes the notification. Delivery is best effort.
func (n *ChannelNotifier) Notify(ctx context.Context, notification Notification) {
	if err := n.pub.Publish(ctx, n.channel, notification); err != nil {
		n.logger.Warn("failed to publish notification", zap.Error(err))
		return
	}
	n.logger.Info("notification published",
		zap.String("title", notification.Title), zap.String("kind", notification.Kind))
}
