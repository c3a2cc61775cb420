package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func serveCorrelation(header string) (*httptest.ResponseRecorder, string) {
	router := gin.New()
	router.Use(CorrelationID())

	var captured string
	router.GET("/test", func(c *gin.Context) {
		captured = c.GetString(CorrelationIDKey)
		c.Status(http.StatusOK)
	})

	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	if header != "" {
		req.Header.Set(CorrelationIDHeader, header)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr, captured
}

func TestCorrelationIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("GeneratesCorrelationIDIfNotProvided", func(t *testing.T) {
		rr, captured := serveCorrelation("")

		assert.Equal(t, http.StatusOK, rr.Code)
		headerID := rr.Header().Get(CorrelationIDHeader)
		_, err := uuid.Parse(headerID)
		assert.NoError(t, err, "generated correlation id should be a valid UUID")
		assert.Equal(t, headerID, captured)
	})

	t.Run("UsesCorrelationIDIfProvided", func(t *testing.T) {
		provided := "checkout-" + uuid.New().String()
		rr, captured := serveCorrelation(provided)

		assert.Equal(t, provided, rr.Header().Get(CorrelationIDHeader))
		assert.Equal(t, provided, captured)
	})

	t.Run("ReplacesOversizedCorrelationID", func(t *testing.T) {
		oversized := strings.Repeat("x", maxCorrelationIDLength+1)
		rr, captured := serveCorrelation(oversized)

		assert.NotEqual(t, oversized, captured)
		_, err := uuid.Parse(captured)
		assert.NoError(t, err)
		assert.Equal(t, captured, rr.Header().Get(CorrelationIDHeader))
	})
}

func TestGetCorrelationID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("ReturnsIDFromContextIfExists", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set(CorrelationIDKey, "abc")
		assert.Equal(t, "abc", GetCorrelationID(c))
	})

	t.Run("ReturnsEmptyStringIfNoIDInContext", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		assert.Empty(t, GetCorrelationID(c))
	})

	t.Run("ReturnsEmptyStringIfIDInContextIsNotString", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set(CorrelationIDKey, 12345)
		assert.Empty(t, GetCorrelationID(c))
	})
}
