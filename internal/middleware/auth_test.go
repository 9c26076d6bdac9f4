package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newAuthEngine(token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(BearerToken(token))
	engine.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return engine
}

func TestBearerToken(t *testing.T) {
	engine := newAuthEngine("secret")
	cases := []struct {
		header string
		code   int
	}{
		{header: "", code: http.StatusUnauthorized},
		{header: "Basic secret", code: http.StatusUnauthorized},
		{header: "Bearer wrong", code: http.StatusUnauthorized},
		{header: "Bearer secret", code: http.StatusOK},
		{header: "bearer secret", code: http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		require.Equal(t, tc.code, w.Code, tc.header)
	}
}

func TestBearerTokenDisabled(t *testing.T) {
	w := httptest.NewRecorder()
	newAuthEngine("").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(CORS([]string{"https://app.example"}))
	engine.OPTIONS("/ping", func(c *gin.Context) {})

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
