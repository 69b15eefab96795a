package notify

import (
	"context"

	"github.com/miniis3/lotteryd/internal/farcaster"
	"github.com/miniis3/lotteryd/pkg/logger"
)

// Managed delivers through the managed Farcaster API, which holds the
// notification tokens itself and supports broadcast via an empty FID list.
type Managed struct {
	client    *farcaster.Client
	targetURL string
	log       *logger.Logger
}

var _ Notifier = (*Managed)(nil)

// NewManaged creates the managed-service notifier.
func NewManaged(client *farcaster.Client, targetURL string, log *logger.Logger) *Managed {
	if log == nil {
		log = logger.NewDefault("notify")
	}
	return &Managed{client: client, targetURL: targetURL, log: log}
}

func (m *Managed) Send(ctx context.Context, fids []int64, n Notification) (DeliveryState, error) {
	deliveries, err := m.client.PublishNotification(ctx, fids, n.Title, n.Body, m.targetURL)
	if err != nil {
		return StateError, err
	}
	if deliveries == 0 {
		return StateNoToken, nil
	}
	return StateSuccess, nil
}
