package cmd

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/layer-3/sudomode/adapters/events"
	"github.com/layer-3/sudomode/adapters/store"
	"github.com/layer-3/sudomode/adapters/tokenizer"
	"github.com/layer-3/sudomode/internal/config"
	"github.com/layer-3/sudomode/ports"
	"github.com/redis/go-redis/v9"
)

// backends holds the storage and messaging connections of a running server
type backends struct {
	Sessions ports.SessionStore
	Events   ports.EventPublisher

	logger  watermill.LoggerAdapter
	redis   *redis.Client
	closers []func() error
}

func openBackends(ctx context.Context, cfg config.Config, logger watermill.LoggerAdapter) (*backends, error) {
	b := &backends{logger: logger}

	if err := b.openSessions(ctx, cfg); err != nil {
		b.Close()
		return nil, err
	}
	if err := b.openEvents(ctx, cfg); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *backends) openSessions(ctx context.Context, cfg config.Config) error {
	opts := []store.Option{store.WithTTL(cfg.Session.TTL)}

	switch cfg.Session.Backend {
	case config.BackendRedis:
		client, err := b.redisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		b.Sessions = store.NewRedisStore(client, opts...)
	case config.BackendBolt:
		s, err := store.NewBoltStoreFromFile(cfg.Bolt.Path, opts...)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, s.Close)
		b.Sessions = s
	default:
		b.Sessions = store.NewMemoryStore(opts...)
	}

	b.logger.Info("Session store ready", watermill.LogFields{"backend": cfg.Session.Backend})
	return nil
}

func (b *backends) openEvents(ctx context.Context, cfg config.Config) error {
	var publisher message.Publisher

	switch cfg.Events.Backend {
	case config.EventsRedis:
		client, err := b.redisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		publisher, err = redisstream.NewPublisher(redisstream.PublisherConfig{Client: client}, b.logger)
		if err != nil {
			return fmt.Errorf("failed to create Redis publisher: %w", err)
		}
	case config.EventsGoChannel:
		pubSub := gochannel.NewGoChannel(gochannel.Config{}, b.logger)
		if err := b.logEvents(ctx, pubSub); err != nil {
			return err
		}
		publisher = pubSub
	default:
		b.Events = events.NopPublisher{}
		return nil
	}

	b.closers = append(b.closers, publisher.Close)
	b.Events = events.NewWatermillPublisher(publisher)
	return nil
}

// logEvents subscribes to every topic and logs what is published, for in-process setups
func (b *backends) logEvents(ctx context.Context, sub message.Subscriber) error {
	for _, topic := range []string{events.TopicLogin, events.TopicLogout, events.TopicSudoActivated} {
		messages, err := sub.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}

		go func(topic string, messages <-chan *message.Message) {
			for msg := range messages {
				b.logger.Info("Event published", watermill.LogFields{
					"topic":   topic,
					"uuid":    msg.UUID,
					"payload": string(msg.Payload),
				})
				msg.Ack()
			}
		}(topic, messages)
	}
	return nil
}

// redisClient returns the shared redis client, connecting on first use
func (b *backends) redisClient(ctx context.Context, url string) (*redis.Client, error) {
	if b.redis != nil {
		return b.redis, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	b.redis = client
	return client, nil
}

// Close releases the backends in reverse order of opening
func (b *backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// signingKey loads the session cookie key, or generates a key valid for this process only
func signingKey(path string, logger watermill.LoggerAdapter) (*ecdsa.PrivateKey, error) {
	if path != "" {
		return tokenizer.LoadSigningKey(path)
	}

	logger.Info("No signing key configured, sessions will not survive a restart", nil)
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}
