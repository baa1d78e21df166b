package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitflux/flux/internal/logger"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func newSignedRouter(cfg *SignedTriggerConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.New("error")
	r := gin.New()
	r.Use(SignedTrigger(cfg, log))
	r.POST("/hook", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestSignedTriggerAcceptsValidSignature(t *testing.T) {
	cfg := &SignedTriggerConfig{
		SignatureHeader: "X-Hub-Signature-256",
		SignaturePrefix: "sha256=",
		Secret:          "s3cr3t",
	}
	r := newSignedRouter(cfg)

	body := []byte(`{"hello":"world"}`)
	req := httptest.NewRequest(http.MethodPost, "/hook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sign(cfg.Secret, body))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSignedTriggerRejectsMissingSignature(t *testing.T) {
	cfg := &SignedTriggerConfig{SignatureHeader: "X-Hub-Signature-256", SignaturePrefix: "sha256=", Secret: "s3cr3t"}
	r := newSignedRouter(cfg)

	req := httptest.NewRequest(http.MethodPost, "/hook", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSignedTriggerRejectsBadSignature(t *testing.T) {
	cfg := &SignedTriggerConfig{SignatureHeader: "X-Hub-Signature-256", SignaturePrefix: "sha256=", Secret: "s3cr3t"}
	r := newSignedRouter(cfg)

	req := httptest.NewRequest(http.MethodPost, "/hook", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSignedTriggerEnforcesTimestampTolerance(t *testing.T) {
	cfg := &SignedTriggerConfig{
		SignatureHeader:    "X-Hub-Signature-256",
		SignaturePrefix:    "sha256=",
		Secret:             "s3cr3t",
		TimestampHeader:    "X-Request-Timestamp",
		TimestampTolerance: time.Minute,
		RequireTimestamp:   true,
	}
	r := newSignedRouter(cfg)

	body := []byte(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/hook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sign(cfg.Secret, body))
	req.Header.Set("X-Request-Timestamp", time.Now().Add(-time.Hour).Format(time.RFC3339))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSignedTriggerPreservesBodyForDownstreamHandler(t *testing.T) {
	cfg := &SignedTriggerConfig{SignatureHeader: "X-Hub-Signature-256", SignaturePrefix: "sha256=", Secret: "s3cr3t"}
	gin.SetMode(gin.TestMode)
	log := logger.New("error")

	var seen string
	r := gin.New()
	r.Use(SignedTrigger(cfg, log))
	r.POST("/hook", func(c *gin.Context) {
		buf := new(bytes.Buffer)
		_, err := buf.ReadFrom(c.Request.Body)
		require.NoError(t, err)
		seen = buf.String()
		c.Status(http.StatusOK)
	})

	body := []byte(`{"a":1}`)
	req := httptest.NewRequest(http.MethodPost, "/hook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sign(cfg.Secret, body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, string(body), seen)
}
