package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/core/apikey"
)

func newTestRouter(store apikey.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Auth(store))
	r.POST("/v1/chat/completions", func(c *gin.Context) {
		key := c.MustGet(ContextKeyAPIKey).(*apikey.APIKey)
		c.JSON(http.StatusOK, gin.H{"key": key.Name})
	})
	r.POST("/v1/messages", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestAuth_MissingKey_Returns401(t *testing.T) {
	store := apikey.NewMemStore()
	r := newTestRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_AnthropicSchemaErrorOnMessagesPath(t *testing.T) {
	store := apikey.NewMemStore()
	r := newTestRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"type":"error"`)
}

func TestAuth_ValidBearerKey_Succeeds(t *testing.T) {
	store := apikey.NewMemStore()
	require.NoError(t, store.Create(t.Context(), &apikey.APIKey{
		Name: "ci", KeyHash: apikey.Hash("sk-live-ok"), IsActive: true,
	}))
	r := newTestRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	req.Header.Set("Authorization", "Bearer sk-live-ok")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"key":"ci"`)
}

func TestAuth_ValidXAPIKeyHeader_Succeeds(t *testing.T) {
	store := apikey.NewMemStore()
	require.NoError(t, store.Create(t.Context(), &apikey.APIKey{
		Name: "ci", KeyHash: apikey.Hash("sk-live-ok"), IsActive: true,
	}))
	r := newTestRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	req.Header.Set("X-Api-Key", "sk-live-ok")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_DisabledKey_Returns401(t *testing.T) {
	store := apikey.NewMemStore()
	require.NoError(t, store.Create(t.Context(), &apikey.APIKey{
		Name: "ci", KeyHash: apikey.Hash("sk-live-dead"), IsActive: false,
	}))
	r := newTestRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	req.Header.Set("Authorization", "Bearer sk-live-dead")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
