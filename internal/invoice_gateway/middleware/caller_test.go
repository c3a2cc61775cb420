package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallerIdentityMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(captured *invoice.Address, found *bool) *gin.Engine {
		router := gin.New()
		router.Use(CorrelationID())
		router.Use(CallerIdentity())
		router.GET("/whoami", func(c *gin.Context) {
			*captured, *found = GetCaller(c)
			c.Status(http.StatusOK)
		})
		return router
	}

	t.Run("NormalizesValidAddress", func(t *testing.T) {
		var caller invoice.Address
		var found bool
		router := newRouter(&caller, &found)

		req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(CallerAddressHeader, "0xABCDEFabcdef0000000000000000000000000001")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, found)
		assert.Equal(t, invoice.Address("0xabcdefabcdef0000000000000000000000000001"), caller)
	})

	t.Run("AnonymousRequestContinues", func(t *testing.T) {
		var caller invoice.Address
		var found bool
		router := newRouter(&caller, &found)

		req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.False(t, found)
	})

	for name, header := range map[string]string{
		"MalformedAddress": "0x1234",
		"ZeroAddress":      string(invoice.ZeroAddress),
	} {
		t.Run(name, func(t *testing.T) {
			var caller invoice.Address
			var found bool
			router := newRouter(&caller, &found)

			req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
			req.Header.Set(CallerAddressHeader, header)
			req.Header.Set(CorrelationIDHeader, "corr-1")
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.False(t, found)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, "corr-1", body["correlation_id"])
			assert.Equal(t, "UNAUTHORIZED", body["error"].(map[string]interface{})["code"])
		})
	}
}
