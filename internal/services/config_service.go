package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zsleinadg/WebCarros/internal/config"
	"github.com/zsleinadg/WebCarros/internal/models"
	"github.com/zsleinadg/WebCarros/internal/validation"
)

// IConfigService defines the interface for accessing configuration.
type IConfigService interface {
	GetAllPublic(ctx context.Context) (map[string]interface{}, error)
	Get(ctx context.Context, key string) (interface{}, error)
	GetInt(ctx context.Context, key string, defaultValue int) int
	GetString(ctx context.Context, key string, defaultValue string) string
	GetBool(ctx context.Context, key string, defaultValue bool) bool
	GetDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration
	Load(ctx context.Context) error
	SubscribeToChanges(ctx context.Context) error
	SetConfigValue(ctx context.Context, key string, value interface{}, isPublic bool) error
	GetAPIEndpointConfig(ctx context.Context, endpoint string, isAuthenticated bool) (*models.APIEndpointConfig, error)
}

const (
	configCollection    = "configuration"
	apiConfigCollection = "api_endpoints_config"
	configUpdateChannel = "config_updates"
)

// configService caches the configuration and api_endpoints_config
// collections in memory and reloads them on Redis Pub/Sub notifications.
// Request paths never touch the database.
type configService struct {
	db       *mongo.Database
	cfg      *config.Config // .env defaults, the floor under DB values
	rdb      *redis.Client
	cache    map[string]interface{}
	apiCache map[string]*models.APIEndpointConfig
	mutex    sync.RWMutex
}

// NewConfigService loads the cache and starts the Pub/Sub listener.
func NewConfigService(database *mongo.Database, initialCfg *config.Config, rdb *redis.Client) IConfigService {
	s := &configService{
		db:       database,
		cfg:      initialCfg,
		rdb:      rdb,
		cache:    make(map[string]interface{}),
		apiCache: make(map[string]*models.APIEndpointConfig),
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

func (s *configService) loadGeneralEntries(ctx context.Context) (map[string]interface{}, error) {
	cursor, err := s.db.Collection(configCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to query config collection: %w", err)
	}
	defer cursor.Close(ctx)

	entries := make(map[string]interface{})
	for cursor.Next(ctx) {
		var entry ConfigEntry
		if decodeErr := cursor.Decode(&entry); decodeErr != nil {
			log.Printf("Warning: Failed to decode config entry during load: %v", decodeErr)
			continue
		}
		entries[entry.Key] = entry.Value
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating config cursor: %w", err)
	}
	return entries, nil
}

func (s *configService) loadEndpointEntries(ctx context.Context) (map[string]*models.APIEndpointConfig, error) {
	cursor, err := s.db.Collection(apiConfigCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to query API endpoint configs: %w", err)
	}
	defer cursor.Close(ctx)

	entries := make(map[string]*models.APIEndpointConfig)
	for cursor.Next(ctx) {
		var entry models.APIEndpointConfig
		if decodeErr := cursor.Decode(&entry); decodeErr != nil {
			log.Printf("Warning: Failed to decode API config entry during load: %v", decodeErr)
			continue
		}
		entries[endpointCacheKey(entry.Endpoint, entry.AuthRequired)] = &entry
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating API config cursor: %w", err)
	}
	return entries, nil
}

func endpointCacheKey(endpoint string, authenticated bool) string {
	return fmt.Sprintf("%s#%t", endpoint, authenticated)
}

// Load replaces both in-memory caches from the database.
func (s *configService) Load(ctx context.Context) error {
	general, err := s.loadGeneralEntries(ctx)
	if err != nil {
		return err
	}

	// Endpoint overrides are optional; a failure here must not take
	// down the general reload.
	endpoints, epErr := s.loadEndpointEntries(ctx)
	if epErr != nil {
		log.Printf("Error loading API endpoint configs: %v", epErr)
	}

	s.mutex.Lock()
	s.cache = general
	if epErr == nil {
		s.apiCache = endpoints
	}
	s.mutex.Unlock()

	log.Printf("Loaded %d general config entries and %d API configs into cache from DB.", len(general), len(endpoints))
	return nil
}

// GetAllPublic returns every config entry marked public, merged over
// the built-in public defaults (app name, UF list, image constraints)
// so the frontend always gets a complete document.
func (s *configService) GetAllPublic(ctx context.Context) (map[string]interface{}, error) {
	publicConfig := map[string]interface{}{
		"APP_NAME":            s.cfg.AppName,
		"UF_OPTIONS":          validation.UFOptions,
		"IMAGE_MAX_SIZE":      s.cfg.ImageMaxSizeBytes,
		"IMAGE_CONTENT_TYPES": []string{"image/jpeg", "image/png"},
		"IMAGE_BASE_URL":      s.cfg.ImageBaseS3URL,
	}

	cursor, err := s.db.Collection(configCollection).Find(ctx, bson.M{"public": true})
	if err != nil {
		return nil, fmt.Errorf("failed to query public config from DB: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var entry ConfigEntry
		if decodeErr := cursor.Decode(&entry); decodeErr != nil {
			log.Printf("Warning: Failed to decode public config entry: %v", decodeErr)
			continue
		}
		publicConfig[entry.Key] = entry.Value
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating public config cursor: %w", err)
	}
	return publicConfig, nil
}

// Get reads a value from the cache, falling back to a small set of .env
// defaults. Sensitive values are deliberately not reachable this way.
func (s *configService) Get(ctx context.Context, key string) (interface{}, error) {
	s.mutex.RLock()
	val, exists := s.cache[key]
	s.mutex.RUnlock()
	if exists {
		return val, nil
	}

	switch key {
	case "APP_NAME":
		return s.cfg.AppName, nil
	case "IMAGE_MAX_DIMENSION":
		return s.cfg.ImageMaxDimension, nil
	default:
		return nil, fmt.Errorf("config key '%s' not found", key)
	}
}

// asInt coerces the numeric types Mongo may hand back for a stored int.
func asInt(val interface{}) (int, bool) {
	switch v := val.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func (s *configService) GetString(ctx context.Context, key string, defaultValue string) string {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	if strVal, ok := val.(string); ok {
		return strVal
	}
	log.Printf("Warning: Config key '%s' is not a string, using default.", key)
	return defaultValue
}

func (s *configService) GetInt(ctx context.Context, key string, defaultValue int) int {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	if n, ok := asInt(val); ok {
		return n
	}
	log.Printf("Warning: Config key '%s' is not an integer type (%T), using default.", key, val)
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

// GetDuration reads a value stored as a number of seconds.
func (s *configService) GetDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	if n, ok := asInt(val); ok {
		return time.Duration(n) * time.Second
	}
	log.Printf("Warning: Config key '%s' is not a numeric type for duration (%T), using default.", key, val)
	return defaultValue
}

// SubscribeToChanges blocks on the Redis update channel and reloads the
// cache on every notification.
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

	log.Println("Subscribed to Redis channel for config updates:", configUpdateChannel)
	for msg := range pubsub.Channel() {
		log.Printf("Received config update notification on channel %s: %s", msg.Channel, msg.Payload)
		if err := s.Load(context.Background()); err != nil {
			log.Printf("ERROR reloading config from DB after notification: %v", err)
		}
	}

	log.Println("Config Pub/Sub listener stopped.")
	return nil
}

// SetConfigValue upserts a config entry and notifies the other
// processes through Redis.
func (s *configService) SetConfigValue(ctx context.Context, key string, value interface{}, isPublic bool) error {
	update := bson.M{"$set": bson.M{"key": key, "value": value, "public": isPublic}}
	_, err := s.db.Collection(configCollection).UpdateOne(
		ctx, bson.M{"key": key}, update, options.Update().SetUpsert(true))
	if err != nil {
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

// GetAPIEndpointConfig returns the cached override for an endpoint, or
// nil when defaults apply. Authenticated lookups fall back to the guest
// entry. Never queries the database per request.
func (s *configService) GetAPIEndpointConfig(ctx context.Context, endpoint string, isAuthenticated bool) (*models.APIEndpointConfig, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if cfg, ok := s.apiCache[endpointCacheKey(endpoint, isAuthenticated)]; ok {
		return cfg, nil
	}
	if isAuthenticated {
		if cfg, ok := s.apiCache[endpointCacheKey(endpoint, false)]; ok {
			return cfg, nil
		}
	}
	return nil, nil
}
