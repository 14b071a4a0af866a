// Package bus provides event bus implementations for ChurnShield.
package bus

import (
	"fmt"

	"github.com/neha-iitjdh/ChurnShield-AI/internal/domain"
)

// New creates an event bus based on configuration.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel", "":
		return NewChannelBus(cfg.ChannelBufferSize), nil
	case "nats":
		return NewNATSBus(cfg)
	default:
		return nil, fmt.Errorf("unsupported bus type: %s", cfg.Type)
	}
}
