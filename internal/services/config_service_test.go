package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/zsleinadg/WebCarros/internal/config"
	"github.com/zsleinadg/WebCarros/internal/models"
	"github.com/zsleinadg/WebCarros/internal/utils"
	"github.com/zsleinadg/WebCarros/internal/validation"
)

func setupConfigServiceTest(t *testing.T) (IConfigService, *mongo.Database, func()) {
	t.Helper()
	dbName := fmt.Sprintf("testdb_config_service_%d", time.Now().UnixNano())
	database := utils.SetupTestDB(t, dbName, "configuration", "api_endpoints_config")
	cfg := &config.Config{
		AppName:           "WebCarros",
		ImageMaxSizeBytes: 5 * 1024 * 1024,
		ImageBaseS3URL:    "https://cdn.example.com",
		ImageMaxDimension: 2048,
	}
	// Redis intentionally nil: tests reload the cache explicitly
	svc := NewConfigService(database, cfg, nil)

	cleanup := func() {
		client := database.Client()
		if err := database.Drop(context.Background()); err != nil {
			t.Logf("Failed to drop database %s: %v", dbName, err)
		}
		if err := client.Disconnect(context.Background()); err != nil {
			t.Logf("Failed to disconnect MongoDB client: %v", err)
		}
	}
	return svc, database, cleanup
}

func TestConfigService_CRUD(t *testing.T) {
	svc, _, cleanup := setupConfigServiceTest(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, svc.SetConfigValue(ctx, "test_key", "test_value", true))
	require.NoError(t, svc.Load(ctx))

	val, err := svc.Get(ctx, "test_key")
	require.NoError(t, err)
	assert.Equal(t, "test_value", val)

	_, err = svc.Get(ctx, "does_not_exist")
	assert.Error(t, err)

	require.NoError(t, svc.SetConfigValue(ctx, "int_key", 42, false))
	require.NoError(t, svc.SetConfigValue(ctx, "bool_key", true, false))
	require.NoError(t, svc.SetConfigValue(ctx, "duration_key", int64(60), false))
	require.NoError(t, svc.Load(ctx))

	assert.Equal(t, 42, svc.GetInt(ctx, "int_key", 0))
	assert.True(t, svc.GetBool(ctx, "bool_key", false))
	assert.Equal(t, 60*time.Second, svc.GetDuration(ctx, "duration_key", 0))
}

func TestConfigService_EnvFallbacks(t *testing.T) {
	svc, _, cleanup := setupConfigServiceTest(t)
	defer cleanup()
	ctx := context.Background()

	// Known keys fall back to .env defaults when absent from the DB
	assert.Equal(t, "WebCarros", svc.GetString(ctx, "APP_NAME", "other"))
	assert.Equal(t, 2048, svc.GetInt(ctx, "IMAGE_MAX_DIMENSION", 0))

	// Unknown keys get the caller's default
	assert.Equal(t, 7, svc.GetInt(ctx, "notfound", 7))
	assert.False(t, svc.GetBool(ctx, "notfound", false))
	assert.Equal(t, 5*time.Second, svc.GetDuration(ctx, "notfound", 5*time.Second))
}

func TestConfigService_GetAllPublic(t *testing.T) {
	svc, _, cleanup := setupConfigServiceTest(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, svc.SetConfigValue(ctx, "MAINTENANCE_BANNER", "Voltamos logo", true))
	require.NoError(t, svc.SetConfigValue(ctx, "SMTP_PASSWORD", "secret", false))

	pub, err := svc.GetAllPublic(ctx)
	require.NoError(t, err)

	// Built-in defaults are always present
	assert.Equal(t, "WebCarros", pub["APP_NAME"])
	assert.Equal(t, validation.UFOptions, pub["UF_OPTIONS"])
	assert.Equal(t, int64(5*1024*1024), pub["IMAGE_MAX_SIZE"])
	assert.Equal(t, []string{"image/jpeg", "image/png"}, pub["IMAGE_CONTENT_TYPES"])
	assert.Equal(t, "https://cdn.example.com", pub["IMAGE_BASE_URL"])

	// DB entries merge in, private ones stay out
	assert.Equal(t, "Voltamos logo", pub["MAINTENANCE_BANNER"])
	_, leaked := pub["SMTP_PASSWORD"]
	assert.False(t, leaked)
}

func TestConfigService_GetAPIEndpointConfig(t *testing.T) {
	svc, database, cleanup := setupConfigServiceTest(t)
	defer cleanup()
	ctx := context.Background()

	guestCfg := &models.APIEndpointConfig{
		Base:         models.Base{ID: "cars-search-guest"},
		Endpoint:     "/v1/cars",
		AuthRequired: false,
		RateLimitSoft: &models.RateLimitConfig{
			BucketSize:      10,
			TokenRefillRate: 1,
		},
	}
	authCfg := &models.APIEndpointConfig{
		Base:         models.Base{ID: "draft-images-auth"},
		Endpoint:     "/v1/dashboard/draft/images",
		AuthRequired: true,
		RateLimitHard: &models.RateLimitConfig{
			BucketSize:      5,
			TokenRefillRate: 1,
		},
	}
	coll := database.Collection("api_endpoints_config")
	_, err := coll.InsertOne(ctx, guestCfg)
	require.NoError(t, err)
	_, err = coll.InsertOne(ctx, authCfg)
	require.NoError(t, err)
	require.NoError(t, svc.Load(ctx))

	got, err := svc.GetAPIEndpointConfig(ctx, "/v1/dashboard/draft/images", true)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "draft-images-auth", got.ID)

	// Authenticated lookup falls back to the guest entry
	got, err = svc.GetAPIEndpointConfig(ctx, "/v1/cars", true)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "cars-search-guest", got.ID)

	// Unknown endpoint means defaults apply
	got, err = svc.GetAPIEndpointConfig(ctx, "/v1/unknown", false)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNewConfigService_ConstructorReturnsPromptly(t *testing.T) {
	dbName := fmt.Sprintf("testdb_config_ctor_%d", time.Now().UnixNano())
	database := utils.SetupTestDB(t, dbName, "configuration")
	defer func() {
		client := database.Client()
		_ = database.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	}()

	// The constructor owns the initial load and the change subscription;
	// the subscription loop blocks forever, so it must not run on the
	// caller's goroutine.
	done := make(chan IConfigService, 1)
	go func() {
		done <- NewConfigService(database, &config.Config{AppName: "WebCarros"}, nil)
	}()

	select {
	case svc := <-done:
		assert.Equal(t, "WebCarros", svc.GetString(context.Background(), "APP_NAME", "other"))
	case <-time.After(5 * time.Second):
		t.Fatal("NewConfigService did not return; the change subscription must run in the background")
	}
}
