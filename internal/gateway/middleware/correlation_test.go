package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("GeneratesIDWhenMissing", func(t *testing.T) {
		router := gin.New()
		router.Use(CorrelationID())

		var seen string
		router.GET("/test", func(c *gin.Context) {
			seen = GetCorrelationID(c)
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.NotEmpty(t, seen)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
		assert.Equal(t, seen, w.Header().Get(CorrelationIDHeader))
	})

	t.Run("PreservesProvidedID", func(t *testing.T) {
		router := gin.New()
		router.Use(CorrelationID())

		var seen string
		router.GET("/test", func(c *gin.Context) {
			seen = GetCorrelationID(c)
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(CorrelationIDHeader, "client-supplied-id")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "client-supplied-id", seen)
		assert.Equal(t, "client-supplied-id", w.Header().Get(CorrelationIDHeader))
	})

	t.Run("ReplacesOversizedID", func(t *testing.T) {
		router := gin.New()
		router.Use(CorrelationID())

		var seen string
		router.GET("/test", func(c *gin.Context) {
			seen = GetCorrelationID(c)
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(CorrelationIDHeader, strings.Repeat("x", 300))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
	})
}

func TestGetCorrelationID_AbsentReturnsEmpty(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, GetCorrelationID(c))
}
