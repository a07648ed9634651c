// Package redis backs the coordination store (C1) with Redis: token
// buckets as integer strings, halt sets as Redis sets, sliding status
// windows as sorted sets scored by wall-clock time, and the last-50 list
// as a capped Redis list.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"crawlctl/internal/domain/entity"
)

const (
	keyHalted        = "halted"
	keyTempHalted    = "temp_halted"
	keyKnownSources  = "inbound_sources"
	windowLast50Size = 50

	// counterNumResized/counterResizeErrors are the literal §6 global
	// status-recording counters: every outcome RecordOutcome sees
	// (HTTP-level or, when the processor reports a decode result,
	// post-decode) increments exactly one of these, mirroring the
	// original's StatsManager.record_message.
	counterNumResized   = "num_resized"
	counterResizeErrors = "resize_errors"
)

// Store implements repository.CoordinationStore against a single Redis
// instance via go-redis/v9.
type Store struct {
	client *redis.Client
}

// New dials Redis at addr and verifies connectivity with a PING.
func New(ctx context.Context, addr string) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}

	return &Store{client: client}, nil
}

func tokenKey(source entity.Source) string    { return "currtokens:" + source.String() }
func overrideKey(source entity.Source) string { return "override_rate:" + source.String() }
func successKey(source entity.Source) string  { return counterNumResized + ":" + source.String() }
func errorKey(source entity.Source) string    { return counterResizeErrors + ":" + source.String() }
func errorCodeKey(source entity.Source, code string) string {
	return counterResizeErrors + ":" + source.String() + ":" + code
}
func last50Key(source entity.Source) string { return "statuslast50req:" + source.String() }

func windowKey(source entity.Source, window time.Duration) (string, error) {
	switch window {
	case 60 * time.Second:
		return "status60s:" + source.String(), nil
	case time.Hour:
		return "status1hr:" + source.String(), nil
	case 12 * time.Hour:
		return "status12hr:" + source.String(), nil
	default:
		return "", fmt.Errorf("redis: unsupported window %s", window)
	}
}

func (s *Store) DecrementToken(ctx context.Context, source entity.Source) (int64, error) {
	val, err := s.client.Decr(ctx, tokenKey(source)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: decrement token %s: %w", source, err)
	}
	return val, nil
}

func (s *Store) SetTokens(ctx context.Context, tokens map[entity.Source]int64) error {
	if len(tokens) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for source, n := range tokens {
		pipe.Set(ctx, tokenKey(source), n, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set tokens: %w", err)
	}
	return nil
}

func (s *Store) GetOverrides(ctx context.Context, sources []entity.Source) (map[entity.Source]float64, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	pipe := s.client.Pipeline()
	cmds := make(map[entity.Source]*redis.StringCmd, len(sources))
	for _, source := range sources {
		cmds[source] = pipe.Get(ctx, overrideKey(source))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("redis: get overrides: %w", err)
	}

	out := make(map[entity.Source]float64, len(sources))
	for source, cmd := range cmds {
		val, err := cmd.Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis: get override %s: %w", source, err)
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			continue
		}
		out[source] = f
	}
	return out, nil
}

func (s *Store) SetOverride(ctx context.Context, source entity.Source, rate float64) error {
	if err := s.client.Set(ctx, overrideKey(source), rate, 0).Err(); err != nil {
		return fmt.Errorf("redis: set override %s: %w", source, err)
	}
	return nil
}

func (s *Store) AddKnownSource(ctx context.Context, source entity.Source) (bool, error) {
	added, err := s.client.SAdd(ctx, keyKnownSources, source.String()).Result()
	if err != nil {
		return false, fmt.Errorf("redis: add known source %s: %w", source, err)
	}
	return added > 0, nil
}

func (s *Store) KnownSources(ctx context.Context) ([]entity.Source, error) {
	members, err := s.client.SMembers(ctx, keyKnownSources).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: known sources: %w", err)
	}
	return toSources(members), nil
}

func (s *Store) RecordOutcome(ctx context.Context, outcome entity.Outcome) error {
	now := outcome.Timestamp
	if now.IsZero() {
		now = time.Now()
	}
	member := outcome.Code + ":" + strconv.FormatInt(now.UnixNano(), 10)

	pipe := s.client.Pipeline()
	if outcome.Expected() {
		pipe.Incr(ctx, counterNumResized)
		pipe.Incr(ctx, successKey(outcome.Source))
	} else {
		pipe.Incr(ctx, counterResizeErrors)
		pipe.Incr(ctx, errorKey(outcome.Source))
		pipe.Incr(ctx, errorCodeKey(outcome.Source, outcome.Code))
	}

	for _, window := range []time.Duration{60 * time.Second, time.Hour, 12 * time.Hour} {
		key, err := windowKey(outcome.Source, window)
		if err != nil {
			return err
		}
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.Unix()), Member: member})
		pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(now.Add(-window).Unix(), 10))
	}

	pipe.LPush(ctx, last50Key(outcome.Source), outcome.Code)
	pipe.LTrim(ctx, last50Key(outcome.Source), 0, windowLast50Size-1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: record outcome for %s: %w", outcome.Source, err)
	}
	return nil
}

func (s *Store) Window60s(ctx context.Context, source entity.Source, now time.Time) ([]entity.Outcome, error) {
	key, _ := windowKey(source, 60*time.Second)
	members, err := s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(now.Add(-60*time.Second).Unix(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: window60s %s: %w", source, err)
	}
	return parseWindowMembers(source, members), nil
}

func (s *Store) ReapWindow(ctx context.Context, source entity.Source, window time.Duration, cutoff time.Time) error {
	key, err := windowKey(source, window)
	if err != nil {
		return err
	}
	if err := s.client.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff.Unix(), 10)).Err(); err != nil {
		return fmt.Errorf("redis: reap window %s: %w", source, err)
	}
	return nil
}

func (s *Store) Last50(ctx context.Context, source entity.Source) ([]string, error) {
	codes, err := s.client.LRange(ctx, last50Key(source), 0, windowLast50Size-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: last50 %s: %w", source, err)
	}
	return codes, nil
}

func (s *Store) AddHalt(ctx context.Context, set string, source entity.Source) error {
	if err := s.client.SAdd(ctx, set, source.String()).Err(); err != nil {
		return fmt.Errorf("redis: add halt %s/%s: %w", set, source, err)
	}
	return nil
}

func (s *Store) RemoveHalt(ctx context.Context, set string, source entity.Source) error {
	if err := s.client.SRem(ctx, set, source.String()).Err(); err != nil {
		return fmt.Errorf("redis: remove halt %s/%s: %w", set, source, err)
	}
	return nil
}

func (s *Store) HaltedSources(ctx context.Context, set string) ([]entity.Source, error) {
	members, err := s.client.SMembers(ctx, set).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: halted sources %s: %w", set, err)
	}
	return toSources(members), nil
}

func (s *Store) IsHalted(ctx context.Context, set string, source entity.Source) (bool, error) {
	ok, err := s.client.SIsMember(ctx, set, source.String()).Result()
	if err != nil {
		return false, fmt.Errorf("redis: is halted %s/%s: %w", set, source, err)
	}
	return ok, nil
}

func (s *Store) IncrCounter(ctx context.Context, key string, delta int64) (int64, error) {
	val, err := s.client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: incr counter %s: %w", key, err)
	}
	return val, nil
}

func (s *Store) GetCounter(ctx context.Context, key string) (int64, error) {
	val, err := s.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis: get counter %s: %w", key, err)
	}
	return val, nil
}

func (s *Store) SuccessErrorCounts(ctx context.Context, source entity.Source) (int64, int64, error) {
	pipe := s.client.Pipeline()
	successCmd := pipe.Get(ctx, successKey(source))
	errorCmd := pipe.Get(ctx, errorKey(source))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return 0, 0, fmt.Errorf("redis: success/error counts %s: %w", source, err)
	}

	successes, err := successCmd.Int64()
	if err != nil && err != redis.Nil {
		return 0, 0, err
	}
	errs, err := errorCmd.Int64()
	if err != nil && err != redis.Nil {
		return 0, 0, err
	}
	return successes, errs, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func toSources(members []string) []entity.Source {
	out := make([]entity.Source, len(members))
	for i, m := range members {
		out[i] = entity.Source(m)
	}
	return out
}

func parseWindowMembers(source entity.Source, members []string) []entity.Outcome {
	outcomes := make([]entity.Outcome, 0, len(members))
	for _, m := range members {
		code := m
		for i := len(m) - 1; i >= 0; i-- {
			if m[i] == ':' {
				code = m[:i]
				break
			}
		}
		outcomes = append(outcomes, entity.Outcome{Source: source, Code: code})
	}
	return outcomes
}
