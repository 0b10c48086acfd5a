package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cppla/hongbao/apperr"
	"github.com/cppla/hongbao/identity"
	"github.com/cppla/hongbao/metrics"
	"github.com/cppla/hongbao/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubGate accepts exactly one token.
type stubGate struct{}

func (stubGate) Resolve(_ context.Context, token string) (identity.Identity, error) {
	if token == "good" {
		return identity.Identity{UserID: 9, Username: "alice", Token: token}, nil
	}
	return identity.Identity{}, apperr.ErrInvalidCredential
}

func (stubGate) RequiresCredential() bool { return true }

func whoAmI(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"id": c.MustGet(ContextUserIDKey), "name": c.GetString(ContextUsernameKey)})
}

func TestAuthRequired(t *testing.T) {
	r := gin.New()
	r.GET("/who", AuthRequired(stubGate{}), whoAmI)

	cases := []struct {
		name   string
		header string
		status int
		code   int
	}{
		{"missing", "", http.StatusUnauthorized, apperr.CodeMissingCredential},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, apperr.CodeBadAuthHeader},
		{"empty bearer", "Bearer   ", http.StatusUnauthorized, apperr.CodeMissingCredential},
		{"invalid", "Bearer bad", http.StatusUnauthorized, apperr.CodeInvalidCredential},
		{"valid", "bearer good", http.StatusOK, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/who", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			require.Equal(t, tc.status, w.Code)
			if tc.code != 0 {
				var body utils.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, tc.code, body.Code)
				assert.NotEmpty(t, body.Error)
			}
		})
	}
}

func TestAuthRequiredLocalGate(t *testing.T) {
	r := gin.New()
	r.GET("/who", AuthRequired(identity.LocalGate{}), whoAmI)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/who", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":0,"name":"local"}`, w.Body.String())
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(4) // burst 2
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	do := func() int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		return w.Code
	}
	assert.Equal(t, http.StatusOK, do())
	assert.Equal(t, http.StatusOK, do())
	assert.Equal(t, http.StatusTooManyRequests, do())

	now = now.Add(15 * time.Second)
	assert.Equal(t, http.StatusOK, do())

	now = now.Add(limiterIdle + time.Second)
	rl.allow("other")
	rl.mu.Lock()
	assert.Len(t, rl.limiters, 1, "idle limiters are evicted")
	rl.mu.Unlock()
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Metrics())
	r.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(utils.RequestIDKey)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/id", nil))
	assert.Len(t, w.Body.String(), 36)
	assert.Equal(t, w.Body.String(), w.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
}

func TestMetricsSurvivesPanic(t *testing.T) {
	r := gin.New()
	r.Use(utils.RecoveryWithZap(zap.NewNop(), false), Metrics())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	inFlight := testutil.ToFloat64(metrics.HTTPRequestsInFlight)
	counted := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/boom", "200"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	assert.Equal(t, inFlight, testutil.ToFloat64(metrics.HTTPRequestsInFlight), "in-flight gauge is released")
	// the writer status is still 200 when the deferred observer runs
	assert.Equal(t, counted+1, testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/boom", "200")))
}
