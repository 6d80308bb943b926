package credentials

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lockcode-manager/core/database"
	"lockcode-manager/core/devices"
	"lockcode-manager/core/settings"
	"lockcode-manager/core/store"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) PutSetting(ctx context.Context, key, value string) error {
	return m.Called(ctx, key, value).Error(0)
}

func setup(t *testing.T, writer Writer, source settings.Source) (*fiber.App, *settings.Cache) {
	t.Helper()
	cache := settings.NewCache(source, time.Hour)
	app := fiber.New()
	require.NoError(t, NewFeature(writer, cache, zap.NewNop()).Load(app))
	return app, cache
}

func put(t *testing.T, app *fiber.App, key, body string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("PUT", "/settings/"+key, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func TestHandleSet(t *testing.T) {
	ctx := context.Background()
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	st := store.New(db)
	require.NoError(t, st.Migrate(ctx))

	app, cache := setup(t, st, settings.Chain{st, settings.Static{devices.SettingAccessToken: "from-config"}})

	// Warm the cache with the static value.
	got, err := cache.Get(ctx, devices.SettingAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "from-config", got)

	status, body := put(t, app, devices.SettingAccessToken, `{"value":" rotated-token "}`)
	assert.Equal(t, fiber.StatusNoContent, status)
	assert.NotContains(t, body, "rotated-token")

	stored, found, err := st.GetSetting(ctx, devices.SettingAccessToken)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "rotated-token", stored)

	got, err = cache.Get(ctx, devices.SettingAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "rotated-token", got)
}

func TestHandleSet_Rejects(t *testing.T) {
	writer := new(mockWriter)
	app, _ := setup(t, writer, settings.Static{})

	status, body := put(t, app, "server.api_key", `{"value":"x"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, body, ErrUnknownKey.Error())

	status, _ = put(t, app, devices.SettingClientID, `{"value":""}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = put(t, app, devices.SettingClientID, `{"value":`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	writer.AssertNotCalled(t, "PutSetting", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleSet_WriteFailureKeepsCache(t *testing.T) {
	ctx := context.Background()
	writer := new(mockWriter)
	writer.On("PutSetting", mock.Anything, devices.SettingClientID, "new-id").Return(errors.New("database is locked"))
	source := settings.Static{devices.SettingClientID: "old-id"}
	app, cache := setup(t, writer, source)

	got, err := cache.Get(ctx, devices.SettingClientID)
	require.NoError(t, err)
	require.Equal(t, "old-id", got)

	status, body := put(t, app, devices.SettingClientID, `{"value":"new-id"}`)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.NotContains(t, body, "new-id")

	// The static source changes but the entry stays cached.
	source[devices.SettingClientID] = "changed"
	got, err = cache.Get(ctx, devices.SettingClientID)
	require.NoError(t, err)
	assert.Equal(t, "old-id", got)
	writer.AssertExpectations(t)
}
