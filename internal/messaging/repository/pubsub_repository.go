package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"marketplace_messaging_service/internal/messaging/domain"
	"marketplace_messaging_service/pkg/logger"

	"github.com/go-redis/redis/v8"
)

// Channel layout. NewMessage and typing are thread scoped, thread-list
// updates go to the user's own channel.
func threadMessageChannel(threadID string) string { return "chat:thread:" + threadID + ":messages" }
func threadTypingChannel(threadID string) string  { return "chat:thread:" + threadID + ":typing" }
func threadReadChannel(threadID string) string    { return "chat:thread:" + threadID + ":reads" }
func userThreadsChannel(userID string) string     { return "chat:user:" + userID + ":threads" }

// Subscription handle for one channel registration. Close unsubscribes
// and stops the delivery goroutine; safe across repeated
// subscribe/close cycles of a client connection.
type Subscription interface {
	Close() error
}

// EventPublisher definition event channel write side.
// Delivery is best-effort: nothing is queued for absent subscribers,
// catch-up is a subsequent List call.
type EventPublisher interface {
	PublishNewMessage(ctx context.Context, ev domain.NewMessageEvent) error
	PublishTyping(ctx context.Context, ev domain.TypingEvent) error
	PublishRead(ctx context.Context, ev domain.ReadEvent) error
	PublishThreadUpdate(ctx context.Context, userID string, ev domain.ThreadUpdateEvent) error
}

// EventSubscriber definition event channel read side
type EventSubscriber interface {
	SubscribeThreadMessages(ctx context.Context, threadID string, handler func(domain.NewMessageEvent)) (Subscription, error)
	SubscribeThreadTyping(ctx context.Context, threadID string, handler func(domain.TypingEvent)) (Subscription, error)
	SubscribeThreadReads(ctx context.Context, threadID string, handler func(domain.ReadEvent)) (Subscription, error)
	SubscribeUserThreads(ctx context.Context, userID string, handler func(domain.ThreadUpdateEvent)) (Subscription, error)
}

// RedisPubSub definition redis pub/sub event channel
type RedisPubSub struct {
	client *redis.Client
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{client: client}
}

func (r *RedisPubSub) publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channel, data).Err()
}

// PublishNewMessage deliver the durable message to thread subscribers
func (r *RedisPubSub) PublishNewMessage(ctx context.Context, ev domain.NewMessageEvent) error {
	return r.publish(ctx, threadMessageChannel(ev.ThreadID), ev)
}

// PublishTyping ephemeral typing ping, a missed one simply expires
func (r *RedisPubSub) PublishTyping(ctx context.Context, ev domain.TypingEvent) error {
	return r.publish(ctx, threadTypingChannel(ev.ThreadID), ev)
}

// PublishRead read receipt for thread subscribers
func (r *RedisPubSub) PublishRead(ctx context.Context, ev domain.ReadEvent) error {
	return r.publish(ctx, threadReadChannel(ev.ThreadID), ev)
}

// PublishThreadUpdate thread-list summary on the user's own channel
func (r *RedisPubSub) PublishThreadUpdate(ctx context.Context, userID string, ev domain.ThreadUpdateEvent) error {
	return r.publish(ctx, userThreadsChannel(userID), ev)
}

// SubscribeThreadMessages register a handler for the thread's new-message stream
func (r *RedisPubSub) SubscribeThreadMessages(ctx context.Context, threadID string, handler func(domain.NewMessageEvent)) (Subscription, error) {
	return subscribe(ctx, r.client, threadMessageChannel(threadID), handler)
}

// SubscribeThreadTyping register a handler for the thread's typing stream
func (r *RedisPubSub) SubscribeThreadTyping(ctx context.Context, threadID string, handler func(domain.TypingEvent)) (Subscription, error) {
	return subscribe(ctx, r.client, threadTypingChannel(threadID), handler)
}

// SubscribeThreadReads register a handler for the thread's read receipts
func (r *RedisPubSub) SubscribeThreadReads(ctx context.Context, threadID string, handler func(domain.ReadEvent)) (Subscription, error) {
	return subscribe(ctx, r.client, threadReadChannel(threadID), handler)
}

// SubscribeUserThreads register a handler for the user's thread-list updates
func (r *RedisPubSub) SubscribeUserThreads(ctx context.Context, userID string, handler func(domain.ThreadUpdateEvent)) (Subscription, error) {
	return subscribe(ctx, r.client, userThreadsChannel(userID), handler)
}

type redisSubscription struct {
	sub *redis.PubSub
}

func (s *redisSubscription) Close() error {
	return s.sub.Close()
}

// subscribe confirms the registration before returning, then decodes
// and dispatches until the subscription closes or ctx is cancelled.
func subscribe[T any](ctx context.Context, client *redis.Client, channel string, handler func(T)) (Subscription, error) {
	sub := client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}

	go func() {
		ch := sub.Channel()

		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}

				var ev T
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					logger.Log.Error(fmt.Sprintf("%s , drop undecodable event: %v", channel, err))
					continue
				}
				handler(ev)
			case <-ctx.Done():
				logger.Log.Info(fmt.Sprintf("%s , sub close", channel))
				sub.Close()
				return
			}
		}
	}()

	return &redisSubscription{sub: sub}, nil
}
