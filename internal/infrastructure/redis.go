package infrastructure

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ccheney/problem-lifecycle/internal/application"
	"github.com/ccheney/problem-lifecycle/internal/domain"
)

const (
	defaultUsersKey  = "problemctl:users"
	defaultInboxCap  = 500
	userKeyPrefix    = "problemctl:user:"
	inboxKeyPrefix   = "problemctl:inbox:"
	inboxEntrySep    = "|"
	redisPingTimeout = 5 * time.Second
)

// RedisConfig holds the configuration for the Redis adapters.
type RedisConfig struct {
	Addr            string
	Password        string
	DB              int
	UsersKey        string
	InboxCap        int
	MaxRetries      int
	MinRetryBackoff time.Duration
	MaxRetryBackoff time.Duration
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	PoolSize        int
}

// DefaultRedisConfig returns a RedisConfig with sensible defaults.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:            "localhost:6379",
		UsersKey:        defaultUsersKey,
		InboxCap:        defaultInboxCap,
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolSize:        10,
	}
}

// NewRedisClient connects and pings.
func NewRedisClient(config *RedisConfig) (*redis.Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.Addr == "" {
		return nil, fmt.Errorf("addr cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:            config.Addr,
		Password:        config.Password,
		DB:              config.DB,
		MaxRetries:      config.MaxRetries,
		MinRetryBackoff: config.MinRetryBackoff,
		MaxRetryBackoff: config.MaxRetryBackoff,
		DialTimeout:     config.DialTimeout,
		ReadTimeout:     config.ReadTimeout,
		WriteTimeout:    config.WriteTimeout,
		PoolSize:        config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// RedisUserDirectory implements UserDirectoryPort. User ids live in one set;
// display names in a hash per user.
type RedisUserDirectory struct {
	client   redis.UniversalClient
	usersKey string
}

// NewRedisUserDirectory creates a new RedisUserDirectory.
func NewRedisUserDirectory(client redis.UniversalClient, usersKey string) *RedisUserDirectory {
	if usersKey == "" {
		usersKey = defaultUsersKey
	}
	return &RedisUserDirectory{client: client, usersKey: usersKey}
}

// AddUser registers a user.
func (d *RedisUserDirectory) AddUser(ctx context.Context, id domain.ActorId, fullname string) error {
	_, err := d.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, d.usersKey, id.String())
		pipe.HSet(ctx, userKeyPrefix+id.String(), "fullname", fullname)
		return nil
	})
	if err != nil {
		return domain.NewStorageError(domain.ErrCodeStorage, "failed to add user: "+err.Error())
	}
	return nil
}

// AllUserIds enumerates every registered user in id order.
func (d *RedisUserDirectory) AllUserIds(ctx context.Context) ([]domain.ActorId, error) {
	members, err := d.client.SMembers(ctx, d.usersKey).Result()
	if err != nil {
		return nil, domain.NewStorageError(domain.ErrCodeStorage, "failed to list users: "+err.Error())
	}

	ids := make([]domain.ActorId, len(members))
	for i, m := range members {
		ids[i] = domain.ActorId(m)
	}
	sortActorIds(ids)
	return ids, nil
}

// FullName returns the display name of a user; unknown users have none.
func (d *RedisUserDirectory) FullName(ctx context.Context, id domain.ActorId) (string, error) {
	name, err := d.client.HGet(ctx, userKeyPrefix+id.String(), "fullname").Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", domain.NewStorageError(domain.ErrCodeStorage, "failed to fetch user: "+err.Error())
	}
	return name, nil
}

// RedisNotificationInbox implements NotificationDispatcherPort as a capped
// list per user.
type RedisNotificationInbox struct {
	client redis.UniversalClient
	cap    int
	logger application.LoggerPort
}

// NewRedisNotificationInbox creates a new RedisNotificationInbox.
func NewRedisNotificationInbox(client redis.UniversalClient, inboxCap int, logger application.LoggerPort) *RedisNotificationInbox {
	if inboxCap <= 0 {
		inboxCap = defaultInboxCap
	}
	return &RedisNotificationInbox{client: client, cap: inboxCap, logger: logger}
}

// Notify pushes href onto every recipient's inbox in one pipeline.
// Failures are logged only.
func (n *RedisNotificationInbox) Notify(ctx context.Context, userIds []domain.ActorId, href string) {
	if len(userIds) == 0 {
		return
	}

	entry := strconv.FormatInt(time.Now().UnixMicro(), 10) + inboxEntrySep + href
	_, err := n.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range userIds {
			key := inboxKeyPrefix + id.String()
			pipe.LPush(ctx, key, entry)
			pipe.LTrim(ctx, key, 0, int64(n.cap-1))
		}
		return nil
	})
	if err != nil {
		n.logger.Error("notification_delivery_failed", map[string]interface{}{
			"href":       href,
			"recipients": len(userIds),
			"error":      err.Error(),
		})
	}
}

// ListForUser returns the user's notifications, newest first.
func (n *RedisNotificationInbox) ListForUser(ctx context.Context, userID domain.ActorId, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	entries, err := n.client.LRange(ctx, inboxKeyPrefix+userID.String(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, domain.NewStorageError(domain.ErrCodeStorage, "failed to list notifications: "+err.Error())
	}

	out := make([]Notification, 0, len(entries))
	for i, entry := range entries {
		micros, href, ok := strings.Cut(entry, inboxEntrySep)
		if !ok {
			continue
		}
		ts, _ := strconv.ParseInt(micros, 10, 64)
		out = append(out, Notification{
			ID:        int64(len(entries) - i),
			UserID:    userID.String(),
			Href:      href,
			CreatedAt: time.UnixMicro(ts).UTC(),
		})
	}
	return out, nil
}

func sortActorIds(ids []domain.ActorId) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
