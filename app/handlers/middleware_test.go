package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"blackfong-core/app/domains"
	"blackfong-core/app/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// whoami echoes the derived requester
func whoami(c *gin.Context) {
	c.String(http.StatusOK, GetRequester(c).String())
}

func serve(router *gin.Engine, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	jwtService := services.NewJWTService("secret", time.Hour)
	userToken, err := jwtService.GenerateToken("bob")
	require.NoError(t, err)

	tests := []struct {
		name       string
		token      string
		jwt        *services.JWTService
		header     map[string]string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "open mode",
			wantStatus: http.StatusOK,
			wantBody:   "anonymous@192.0.2.1",
		},
		{
			name:       "static token",
			token:      "t0k",
			header:     map[string]string{TokenHeader: "t0k"},
			wantStatus: http.StatusOK,
			wantBody:   "operator",
		},
		{
			name:       "wrong static token",
			token:      "t0k",
			header:     map[string]string{TokenHeader: "t0K"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "bearer jwt",
			jwt:        jwtService,
			header:     map[string]string{"Authorization": "Bearer " + userToken},
			wantStatus: http.StatusOK,
			wantBody:   "bob",
		},
		{
			name:       "lowercase scheme",
			jwt:        jwtService,
			header:     map[string]string{"Authorization": "bearer " + userToken},
			wantStatus: http.StatusOK,
			wantBody:   "bob",
		},
		{
			name:       "bearer ignored without jwt secret",
			token:      "t0k",
			header:     map[string]string{"Authorization": "Bearer " + userToken},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "basic scheme",
			jwt:        jwtService,
			header:     map[string]string{"Authorization": "Basic Ym9iOnB3"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "token falls through to jwt",
			token:      "t0k",
			jwt:        jwtService,
			header:     map[string]string{TokenHeader: "nope", "Authorization": "Bearer " + userToken},
			wantStatus: http.StatusOK,
			wantBody:   "bob",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/who", AuthMiddleware(tt.token, tt.jwt), whoami)

			w := serve(router, tt.header)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestRequireOperator(t *testing.T) {
	router := gin.New()
	router.GET("/who", func(c *gin.Context) {
		SetRequester(c, domains.Requester(c.GetHeader("X-As")))
		c.Next()
	}, RequireOperator(), whoami)

	w := serve(router, map[string]string{"X-As": "node:edge-1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(router, map[string]string{"X-As": "operator"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "operator", w.Body.String())
}

func TestGetRequesterDefault(t *testing.T) {
	router := gin.New()
	router.GET("/who", whoami)

	w := serve(router, nil)
	assert.Equal(t, string(domains.Anonymous), w.Body.String())
}

func TestRateLimit(t *testing.T) {
	router := gin.New()
	router.GET("/who", RateLimit(rate.NewLimiter(rate.Every(time.Hour), 2)), whoami)

	assert.Equal(t, http.StatusOK, serve(router, nil).Code)
	assert.Equal(t, http.StatusOK, serve(router, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(router, nil).Code)

	unlimited := gin.New()
	unlimited.GET("/who", RateLimit(nil), whoami)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(unlimited, nil).Code)
	}
}
