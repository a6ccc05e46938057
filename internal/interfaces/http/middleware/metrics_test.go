package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observedRequest struct {
	method string
	route  string
	status int
}

type recordingObserver struct {
	mu       sync.Mutex
	requests []observedRequest
}

func (r *recordingObserver) ObserveHTTPRequest(method, route string, statusCode int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, observedRequest{method: method, route: route, status: statusCode})
}

func TestHTTPMetrics_RecordsRouteTemplate(t *testing.T) {
	obs := &recordingObserver{}

	router := gin.New()
	router.Use(HTTPMetrics(obs))
	router.GET("/api/orders/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.POST("/webhooks/shipstation", func(c *gin.Context) {
		c.Status(http.StatusUnauthorized)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/orders/42", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/webhooks/shipstation", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	require.Len(t, obs.requests, 3)
	assert.Equal(t, observedRequest{http.MethodGet, "/api/orders/:id", http.StatusOK}, obs.requests[0])
	assert.Equal(t, observedRequest{http.MethodPost, "/webhooks/shipstation", http.StatusUnauthorized}, obs.requests[1])
	assert.Equal(t, observedRequest{http.MethodGet, unmatchedRoute, http.StatusNotFound}, obs.requests[2])
}

func TestHTTPMetrics_NilObserver(t *testing.T) {
	router := gin.New()
	router.Use(HTTPMetrics(nil))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
