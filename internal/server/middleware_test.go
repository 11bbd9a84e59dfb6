package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/buildhub-payments/constants"
	"github.com/joseph-ayodele/buildhub-payments/internal/common"
	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
	"github.com/joseph-ayodele/buildhub-payments/internal/repository/repotest"
)

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), Recovery(repotest.Logger()))
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set(requestIDHeader, "abc")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "abc", body["request_id"])
	assert.Equal(t, "INTERNAL_ERROR", body["error"].(map[string]any)["code"])
}

func TestAuthStoresActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := common.AuthConfig{JWTSecret: "s3cret"}
	tok, expiresAt, err := GenerateToken(entity.Actor{ID: 29, Role: constants.RoleContractor}, cfg, 24*time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), expiresAt, time.Minute)

	var got entity.Actor
	var requestID string
	router := gin.New()
	router.Use(RequestID(), Auth(cfg))
	router.GET("/me", func(c *gin.Context) {
		got, _ = actorFrom(c)
		requestID = common.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, entity.Actor{ID: 29, Role: constants.RoleContractor}, got)
	assert.Equal(t, w.Header().Get(requestIDHeader), requestID)
}

func TestAuthIssuerMismatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tok, _, err := GenerateToken(entity.Actor{ID: 28, Role: constants.RoleHomeowner},
		common.AuthConfig{JWTSecret: "s3cret", Issuer: "elsewhere"}, time.Hour)
	require.NoError(t, err)

	router := gin.New()
	router.Use(Auth(common.AuthConfig{JWTSecret: "s3cret", Issuer: "buildhub"}))
	router.GET("/me", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
