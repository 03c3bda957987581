package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ticketshow/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	profileKeyPrefix  = "identity:profile:"
	notifiedKeyPrefix = "notify:"
)

type Config struct {
	Addr            string
	Password        string
	DB              int
	ProfileTTL      time.Duration
	NotificationTTL time.Duration
}

// ValkeyClient caches identity profiles and notification delivery markers
type ValkeyClient struct {
	client          *redis.Client
	profileTTL      time.Duration
	notificationTTL time.Duration
}

func NewValkeyClient(cfg Config) (*ValkeyClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return &ValkeyClient{
		client:          rdb,
		profileTTL:      cfg.ProfileTTL,
		notificationTTL: cfg.NotificationTTL,
	}, nil
}

// GetProfile returns a cached identity profile, or nil on a miss
func (v *ValkeyClient) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	raw, err := v.client.Get(ctx, profileKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup error: %w", err)
	}

	var user models.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("invalid profile in cache: %w", err)
	}
	return &user, nil
}

func (v *ValkeyClient) SetProfile(ctx context.Context, user *models.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return v.client.Set(ctx, profileKeyPrefix+user.ID, raw, v.profileTTL).Err()
}

// DeleteProfile evicts a cached profile after an identity change
func (v *ValkeyClient) DeleteProfile(ctx context.Context, userID string) error {
	return v.client.Del(ctx, profileKeyPrefix+userID).Err()
}

// WasNotified reports whether a delivery marker exists for key
func (v *ValkeyClient) WasNotified(ctx context.Context, key string) (bool, error) {
	n, err := v.client.Exists(ctx, notifiedKeyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("cache lookup error: %w", err)
	}
	return n > 0, nil
}

// MarkNotified records a successful delivery for key
func (v *ValkeyClient) MarkNotified(ctx context.Context, key string) error {
	return v.client.Set(ctx, notifiedKeyPrefix+key, time.Now().Unix(), v.notificationTTL).Err()
}

func (v *ValkeyClient) Ping(ctx context.Context) error {
	return v.client.Ping(ctx).Err()
}

func (v *ValkeyClient) Close() error {
	return v.client.Close()
}
