// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RedisFeed implements Publisher and Subscriber on a Redis list, giving
// at-least-once delivery with competing consumers.
type RedisFeed struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewRedisFeed(client *redis.Client) *RedisFeed {
	return &RedisFeed{
		client: client,
		log:    log.Logger.With().Str("module", "feed").Logger(),
	}
}

func (f *RedisFeed) Publish(ctx context.Context, event SearchResultEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	if err := f.client.LPush(ctx, SearchResultTopic, raw).Err(); err != nil {
		return errors.Wrap(err, "publish event")
	}
	return nil
}

func (f *RedisFeed) Subscribe(ctx context.Context, topic string) (<-chan SearchResultEvent, error) {
	out := make(chan SearchResultEvent)

	go func() {
		defer close(out)
		for {
			res, err := f.client.BRPop(ctx, 5*time.Second, topic).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				f.log.Error().Err(err).Str("topic", topic).Msg("feed read failed")
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
					return
				}
				continue
			}
			// BRPOP returns [key, value]
			if len(res) != 2 {
				continue
			}

			var event SearchResultEvent
			if err := json.Unmarshal([]byte(res[1]), &event); err != nil {
				f.log.Warn().Err(err).Msg("dropping malformed event")
				continue
			}

			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
