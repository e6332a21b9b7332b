package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", HealthHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestIndexHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", IndexHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "MirrorBox")
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{}
	cfg.S3.BucketName = "mirrors"
	cfg.S3.Region = "us-east-1"
	cfg.S3.AccessKey = "key"
	cfg.S3.SecretKey = "secret"
	cfg.Mirror.MountRoot = "/mnt/mirror"
	cfg.DBPath = "/var/lib/mirrorbox/journal.db"

	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultAddr, cfg.HTTP.Addr)

	cfg.Mirror.MountRoot = ""
	assert.Error(t, cfg.Validate())
}
