package events

import (
	"log/slog"

	"complaint-service/internal/config"
)

// Producer publishes domain events to a broker. The key groups related
// events (e.g. the complaint ID) for backends that partition by key.
type Producer interface {
	Publish(key string, event interface{}) error
	Close() error
}

// New builds the configured producer. An empty backend disables eventing;
// callers treat a nil producer as "skip publishing".
func New(cfg config.EventsConfig, logger *slog.Logger) (Producer, error) {
	switch cfg.Backend {
	case "nats":
		return NewNATSProducer(cfg.URL, cfg.Subject, logger)
	case "kafka":
		return NewKafkaProducer(cfg.Brokers, cfg.Topic, logger)
	default:
		return nil, nil
	}
}
