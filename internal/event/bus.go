package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pot-code/coursegate/internal/infrastructure/driver"
	"github.com/pot-code/coursegate/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// Bus publishes events on a pub/sub channel shared by every instance and
// forwards what it receives to the local hub
type Bus struct {
	PubSub  driver.PubSub
	Channel string
	Hub     *Hub
}

var _ Publisher = &Bus{}

func NewBus(PubSub driver.PubSub, Channel string, Hub *Hub) *Bus {
	return &Bus{PubSub: PubSub, Channel: Channel, Hub: Hub}
}

// Publish implement Publisher, falls back to local delivery when the channel is unreachable
func (b *Bus) Publish(ctx context.Context, e Event) {
	raw, err := json.Marshal(e)
	if err == nil {
		err = b.PubSub.Publish(ctx, b.Channel, raw)
	}
	if err != nil {
		logging.ExtractLoggerFromContext(ctx).Warn("failed to publish event, delivering locally",
			zap.String("event.kind", string(e.Kind)),
			zap.Error(err))
		b.Hub.Publish(ctx, e)
	}
}

// StartForwarder subscribes to the channel until ctx is done
func (b *Bus) StartForwarder(ctx context.Context) error {
	logger := logging.ExtractLoggerFromContext(ctx)
	err := b.PubSub.Subscribe(ctx, b.Channel, func(payload []byte) {
		var e Event
		if err := json.Unmarshal(payload, &e); err != nil {
			logger.Warn("bad event payload", zap.Error(err))
			return
		}
		b.Hub.Publish(ctx, e)
	})
	if err != nil {
		return fmt.Errorf("event forwarder: %w", err)
	}
	return nil
}
