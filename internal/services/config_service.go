package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/config"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/notify"
)

// IConfigService defines the interface for accessing runtime configuration.
type IConfigService interface {
	GetAllPublic(ctx context.Context) (map[string]interface{}, error)
	Get(ctx context.Context, key string) (interface{}, error)
	GetString(ctx context.Context, key string, defaultValue string) string
	GetBool(ctx context.Context, key string, defaultValue bool) bool
	Load(ctx context.Context) error
	SubscribeToChanges(ctx context.Context) error
	SetConfigValue(ctx context.Context, key string, value interface{}, isPublic bool) error
	NotifySettings() notify.Settings
}

const (
	configCollection    = "configuration"
	configUpdateChannel = "config_updates"
)

// Runtime-editable config keys. Each falls back to the .env value when no
// database override exists.
const (
	ConfigKeyNotificationsEnabled = "NOTIFICATIONS_ENABLED"
	ConfigKeySiteBaseURL          = "SITE_BASE_URL"
	ConfigKeyEmailFrom            = "EMAIL_FROM"
	ConfigKeySiteName             = "SITE_NAME"
)

// configService implements IConfigService. Values live in Mongo, are cached
// in memory, and reload on Redis pub/sub notifications.
type configService struct {
	db    *mongo.Database
	cfg   *config.Config // initial defaults loaded from .env
	rdb   *redis.Client
	cache map[string]interface{}
	mutex sync.RWMutex
}

// NewConfigService creates a new ConfigService.
func NewConfigService(db *mongo.Database, initialCfg *config.Config, rdb *redis.Client) IConfigService {
	s := &configService{
		db:    db,
		cfg:   initialCfg,
		rdb:   rdb,
		cache: make(map[string]interface{}),
	}
	if err := s.Load(context.Background()); err != nil {
		log.Printf("WARNING: Failed to load initial config from DB: %v. Using defaults from .env", err)
	}
	go func() {
		if err := s.SubscribeToChanges(context.Background()); err != nil {
			log.Printf("CRITICAL: Config Pub/Sub listener stopped: %v", err)
		}
	}()
	return s
}

// ConfigEntry represents a document in the configuration collection.
type ConfigEntry struct {
	Key    string      `bson:"key"`
	Value  interface{} `bson:"value"`
	Public bool        `bson:"public"`
}

// Load fetches all config entries from DB and populates the in-memory cache.
func (s *configService) Load(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	collection := s.db.Collection(configCollection)
	cursor, err := collection.Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to query config collection: %w", err)
	}
	defer cursor.Close(ctx)

	newCache := make(map[string]interface{})
	for cursor.Next(ctx) {
		var entry ConfigEntry
		if err := cursor.Decode(&entry); err == nil {
			newCache[entry.Key] = entry.Value
		} else {
			log.Printf("Warning: Failed to decode config entry during load: %v", err)
		}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("error iterating config cursor: %w", err)
	}

	s.cache = newCache
	log.Printf("Loaded %d entries into config cache from DB.", len(s.cache))
	return nil
}

// GetAllPublic retrieves all configuration parameters marked as public.
func (s *configService) GetAllPublic(ctx context.Context) (map[string]interface{}, error) {
	publicConfig := map[string]interface{}{}
	collection := s.db.Collection(configCollection)
	cursor, err := collection.Find(ctx, bson.M{"public": true})
	if err != nil {
		return nil, fmt.Errorf("failed to query public config from DB: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var entry ConfigEntry
		if err := cursor.Decode(&entry); err == nil {
			publicConfig[entry.Key] = entry.Value
		} else {
			log.Printf("Warning: Failed to decode public config entry: %v", err)
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating public config cursor: %w", err)
	}

	if _, exists := publicConfig["APP_NAME"]; !exists {
		publicConfig["APP_NAME"] = s.cfg.AppName
	}

	return publicConfig, nil
}

// Get retrieves a configuration value from the cache, falling back to the
// initial .env defaults for known keys.
func (s *configService) Get(ctx context.Context, key string) (interface{}, error) {
	s.mutex.RLock()
	val, exists := s.cache[key]
	s.mutex.RUnlock()

	if exists {
		return val, nil
	}

	switch key {
	case "APP_NAME", ConfigKeySiteName:
		return s.cfg.AppName, nil
	case ConfigKeySiteBaseURL:
		return s.cfg.SiteBaseURL, nil
	case ConfigKeyEmailFrom:
		return s.cfg.SmtpFromAddress, nil
	case ConfigKeyNotificationsEnabled:
		return true, nil
	default:
		return nil, fmt.Errorf("config key '%s' not found", key)
	}
}

func (s *configService) GetString(ctx context.Context, key string, defaultValue string) string {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	if strVal, ok := val.(string); ok && strVal != "" {
		return strVal
	}
	return defaultValue
}

func (s *configService) GetBool(ctx context.Context, key string, defaultValue bool) bool {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	if boolVal, ok := val.(bool); ok {
		return boolVal
	}
	log.Printf("Warning: Config key '%s' is not a boolean, using default.", key)
	return defaultValue
}

// NotifySettings returns the notification settings snapshot dispatchers work
// from. Called at the start of each dispatch so runtime config edits take
// effect without restarting.
func (s *configService) NotifySettings() notify.Settings {
	ctx := context.Background()
	return notify.Settings{
		Enabled:     s.GetBool(ctx, ConfigKeyNotificationsEnabled, true),
		SiteName:    s.GetString(ctx, ConfigKeySiteName, s.cfg.AppName),
		BaseURL:     s.GetString(ctx, ConfigKeySiteBaseURL, s.cfg.SiteBaseURL),
		FromAddress: s.GetString(ctx, ConfigKeyEmailFrom, s.cfg.SmtpFromAddress),
	}
}

// SubscribeToChanges listens for update messages on Redis Pub/Sub and reloads
// the cache on each notification.
func (s *configService) SubscribeToChanges(ctx context.Context) error {
	if s.rdb == nil {
		log.Println("Redis client not configured, cannot subscribe to config changes.")
		return nil
	}

	pubsub := s.rdb.Subscribe(ctx, configUpdateChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to receive confirmation from Redis Pub/Sub subscription: %w", err)
	}

	ch := pubsub.Channel()
	log.Println("Subscribed to Redis channel for config updates:", configUpdateChannel)

	for msg := range ch {
		log.Printf("Received config update notification on channel %s: %s", msg.Channel, msg.Payload)
		if err := s.Load(context.Background()); err != nil {
			log.Printf("ERROR reloading config from DB after notification: %v", err)
		}
	}

	log.Println("Config Pub/Sub listener stopped.")
	return nil
}

// SetConfigValue upserts a config value in the DB and publishes an update.
func (s *configService) SetConfigValue(ctx context.Context, key string, value interface{}, isPublic bool) error {
	collection := s.db.Collection(configCollection)
	filter := bson.M{"key": key}
	update := bson.M{
		"$set": bson.M{
			"key":    key,
			"value":  value,
			"public": isPublic,
		},
	}
	opts := options.Update().SetUpsert(true)

	if _, err := collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert config key '%s' in DB: %w", key, err)
	}

	if s.rdb != nil {
		if err := s.rdb.Publish(ctx, configUpdateChannel, key).Err(); err != nil {
			log.Printf("Warning: Failed to publish config update notification for key '%s': %v", key, err)
		}
	}

	log.Printf("Updated config key '%s' and published notification.", key)
	return nil
}
