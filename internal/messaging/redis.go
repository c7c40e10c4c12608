package messaging

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"robocar-service/internal/logger"
	"robocar-service/internal/types"

	"github.com/redis/go-redis/v9"
)

const (
	// MoveListKey is the list remote clients LPUSH move commands onto.
	MoveListKey = "robocar:move"
	// StateHash holds the published state; change notifications go out on the channel of the same name.
	StateHash = "robocar"
)

type Callbacks struct {
	MoveCallback func(types.MoveCommand) error
}

type RedisClient struct {
	client    *redis.Client
	callbacks Callbacks
	logger    *logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewRedisClient(host string, port int, l *logger.Logger, callbacks Callbacks) *RedisClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%d", host, port),
			DB:   0,
		}),
		callbacks: callbacks,
		logger:    l,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SetCallbacks replaces the command callbacks. Call before StartListening.
func (r *RedisClient) SetCallbacks(callbacks Callbacks) {
	r.callbacks = callbacks
}

func (r *RedisClient) Connect() error {
	r.logger.Infof("Attempting to connect to Redis at %s", r.client.Options().Addr)

	if err := r.client.Ping(r.ctx).Err(); err != nil {
		r.logger.Warnf("Redis connection failed: %v", err)
		return fmt.Errorf("redis connection failed: %w", err)
	}
	r.logger.Infof("Successfully connected to Redis")

	// Commands queued while the service was down are stale
	if n, err := r.client.Del(r.ctx, MoveListKey).Result(); err != nil {
		r.logger.Warnf("Failed to clear %s: %v", MoveListKey, err)
	} else if n > 0 {
		r.logger.Infof("Discarded stale move commands from %s", MoveListKey)
	}
	return nil
}

// StartListening starts the command listeners after system initialization is complete
func (r *RedisClient) StartListening() error {
	r.logger.Infof("Starting Redis listeners")

	r.wg.Add(1)
	go r.listCommandListener(MoveListKey, r.handleMoveCommand)

	return nil
}

func (r *RedisClient) listCommandListener(key string, handler func(string) error) {
	defer r.wg.Done()
	r.logger.Infof("Starting list command listener for %s", key)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Context cancelled, exiting %s listener", key)
			return
		default:
		}

		// Short timeout so cancellation is noticed between commands
		result, err := r.client.BRPop(r.ctx, 5*time.Second, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || r.ctx.Err() != nil {
				r.logger.Infof("Context cancelled, exiting %s listener", key)
				return
			}
			r.logger.Warnf("Error reading from %s list: %v", key, err)
			select {
			case <-r.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if len(result) >= 2 { // BRPOP returns [key, value]
			value := result[1]
			r.logger.Debugf("Received command from %s: %s", key, value)
			if err := handler(value); err != nil {
				r.logger.Warnf("Error handling %s command: %v", key, err)
			}
		}
	}
}

func (r *RedisClient) handleMoveCommand(value string) error {
	if r.callbacks.MoveCallback == nil {
		return nil
	}
	cmd, err := ParseMovePayload(value)
	if err != nil {
		r.logger.Infof("Invalid move command value: %s", value)
		return err
	}
	return r.callbacks.MoveCallback(cmd)
}

// ParseMovePayload parses a move list entry: "stop", "<direction>" or "<direction>:<milliseconds>".
func ParseMovePayload(value string) (types.MoveCommand, error) {
	name, msStr, hasDuration := strings.Cut(strings.TrimSpace(value), ":")

	var duration time.Duration
	if hasDuration {
		ms, err := strconv.ParseInt(strings.TrimSpace(msStr), 10, 64)
		if err != nil {
			return types.MoveCommand{}, fmt.Errorf("invalid move duration %q", msStr)
		}
		if duration, err = types.MoveDuration(ms); err != nil {
			return types.MoveCommand{}, fmt.Errorf("invalid move duration %q: %w", msStr, err)
		}
	}

	cmd, err := types.ParseMoveCommand(name, duration)
	if err != nil {
		return types.MoveCommand{}, fmt.Errorf("invalid move command %q: %w", value, err)
	}
	return cmd, nil
}

func (r *RedisClient) publishHashSet(hash, field string, value interface{}, channel, payload string) error {
	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, hash, field, value)
	pipe.Publish(r.ctx, channel, payload)
	_, err := pipe.Exec(r.ctx)
	return err
}

// PublishState stores the lifecycle state with its timestamp and notifies subscribers.
func (r *RedisClient) PublishState(state types.SystemState) error {
	r.logger.Infof("Publishing robocar state: %s", state)
	timestamp := time.Now().Format(time.RFC3339)

	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, StateHash, "state", string(state))
	pipe.HSet(r.ctx, StateHash, "state:timestamp", timestamp)
	pipe.Publish(r.ctx, StateHash, "state")
	if _, err := pipe.Exec(r.ctx); err != nil {
		r.logger.Warnf("Failed to publish robocar state: %v", err)
		return err
	}
	r.logger.Debugf("Successfully published robocar state with timestamp: %s", timestamp)
	return nil
}

// PublishDirection stores the commanded direction, "none" when stopped.
func (r *RedisClient) PublishDirection(direction string) error {
	r.logger.Debugf("Publishing direction: %s", direction)
	if err := r.publishHashSet(StateHash, "direction", direction, StateHash, "direction"); err != nil {
		r.logger.Warnf("Failed to publish direction: %v", err)
		return err
	}
	return nil
}

// GetState returns the last published state, or init when none was stored.
func (r *RedisClient) GetState() (types.SystemState, error) {
	state, err := r.client.HGet(r.ctx, StateHash, "state").Result()
	if errors.Is(err, redis.Nil) {
		return types.StateInit, nil
	}
	if err != nil {
		return types.StateInit, fmt.Errorf("failed to get robocar state: %w", err)
	}
	return types.SystemState(state), nil
}

func (r *RedisClient) Close() error {
	r.logger.Infof("Closing Redis client")
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Infof("All Redis goroutines finished")
	case <-time.After(5 * time.Second):
		r.logger.Warnf("Timeout waiting for Redis goroutines to finish")
	}

	return r.client.Close()
}
