package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/miniis3/lotteryd/internal/farcaster"
)

// RedisStore implements Store on Redis. The key prefix isolates this app's
// keys from other projects sharing the instance.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis using a URL (redis:// or rediss://).
func NewRedisStore(ctx context.Context, url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{rdb: rdb, prefix: prefix}, nil
}

// Close releases the connection pool.
func (s *RedisStore) Close() error { return s.rdb.Close() }

func (s *RedisStore) key(parts ...string) string {
	return s.prefix + strings.Join(parts, "")
}

func (s *RedisStore) SetAddressFID(ctx context.Context, address string, fid int64) error {
	return s.rdb.Set(ctx, s.key(keyAddressFID, strings.ToLower(address)), fid, 0).Err()
}

func (s *RedisStore) FIDByAddress(ctx context.Context, address string) (int64, error) {
	val, err := s.rdb.Get(ctx, s.key(keyAddressFID, strings.ToLower(address))).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	fid, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt fid mapping for %s: %w", address, err)
	}
	return fid, nil
}

func (s *RedisStore) SetNotificationDetails(ctx context.Context, fid int64, details farcaster.NotificationDetails) error {
	encoded, err := json.Marshal(details)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(keyNotification, strconv.FormatInt(fid, 10)), encoded, 0).Err()
}

func (s *RedisStore) NotificationDetails(ctx context.Context, fid int64) (*farcaster.NotificationDetails, error) {
	val, err := s.rdb.Get(ctx, s.key(keyNotification, strconv.FormatInt(fid, 10))).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var details farcaster.NotificationDetails
	if err := json.Unmarshal([]byte(val), &details); err != nil {
		return nil, fmt.Errorf("corrupt notification details for fid %d: %w", fid, err)
	}
	return &details, nil
}

func (s *RedisStore) DeleteNotificationDetails(ctx context.Context, fid int64) error {
	return s.rdb.Del(ctx, s.key(keyNotification, strconv.FormatInt(fid, 10))).Err()
}

func (s *RedisStore) AddUserFID(ctx context.Context, fid int64) error {
	return s.rdb.SAdd(ctx, s.key(keyUsers), fid).Err()
}

func (s *RedisStore) RemoveUserFID(ctx context.Context, fid int64) error {
	return s.rdb.SRem(ctx, s.key(keyUsers), fid).Err()
}

func (s *RedisStore) AllUserFIDs(ctx context.Context) ([]int64, error) {
	members, err := s.rdb.SMembers(ctx, s.key(keyUsers)).Result()
	if err != nil {
		return nil, err
	}
	fids := make([]int64, 0, len(members))
	for _, m := range members {
		fid, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		fids = append(fids, fid)
	}
	return fids, nil
}

func (s *RedisStore) AddParticipant(ctx context.Context, round uint64, p Participant) error {
	key := s.key(keyParticipants, strconv.FormatUint(round, 10))

	list, err := s.participants(ctx, key)
	if err != nil {
		return err
	}
	for _, existing := range list {
		if existing.Number == p.Number {
			return nil
		}
	}
	list = append(list, p)

	encoded, err := json.Marshal(list)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, key, encoded, 0).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, key, participantTTL).Err()
}

func (s *RedisStore) Participants(ctx context.Context, round uint64) ([]Participant, error) {
	return s.participants(ctx, s.key(keyParticipants, strconv.FormatUint(round, 10)))
}

func (s *RedisStore) participants(ctx context.Context, key string) ([]Participant, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var list []Participant
	if err := json.Unmarshal([]byte(val), &list); err != nil {
		return nil, fmt.Errorf("corrupt participant list at %s: %w", key, err)
	}
	return list, nil
}

func (s *RedisStore) SetUserInfo(ctx context.Context, fid int64, info UserInfo) error {
	encoded, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(keyUserInfo, strconv.FormatInt(fid, 10)), encoded, 0).Err()
}

func (s *RedisStore) UserInfo(ctx context.Context, fid int64) (*UserInfo, error) {
	val, err := s.rdb.Get(ctx, s.key(keyUserInfo, strconv.FormatInt(fid, 10))).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var info UserInfo
	if err := json.Unmarshal([]byte(val), &info); err != nil {
		return nil, fmt.Errorf("corrupt user info for fid %d: %w", fid, err)
	}
	return &info, nil
}
