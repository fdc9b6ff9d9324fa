package middleware

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zagip/zagip-game/internal/common/cache"
	"github.com/zagip/zagip-game/internal/common/errors"
	"github.com/zagip/zagip-game/internal/domain"
	"github.com/zagip/zagip-game/internal/features/auth/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), ErrorHandler())
	r.GET("/t", handlers...)
	return r
}

func serve(t *testing.T, r *gin.Engine, header http.Header) (*httptest.ResponseRecorder, ErrorResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var body ErrorResponse
	if rec.Code >= http.StatusBadRequest {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func TestErrorHandlerRendersEnvelope(t *testing.T) {
	r := newEngine(func(c *gin.Context) {
		Fail(c, errors.NewItemNotFoundError(7))
	})

	rec, body := serve(t, r, http.Header{RequestIDHeader: {"req-1"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, errors.ErrCodeItemNotFound, body.Code)
	assert.Equal(t, "req-1", body.RequestID)
	assert.Equal(t, "/t", body.Path)
	assert.Equal(t, http.MethodGet, body.Method)
	assert.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))
}

func TestErrorHandlerHidesInfrastructureDetail(t *testing.T) {
	r := newEngine(func(c *gin.Context) {
		Fail(c, errors.NewDatabaseError("buy item", stderrors.New("pq: deadlock detected")))
	})

	rec, body := serve(t, r, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", body.Error)
	assert.NotContains(t, rec.Body.String(), "deadlock")
	assert.NotEmpty(t, body.RequestID)
}

func TestErrorHandlerWrapsPlainErrors(t *testing.T) {
	r := newEngine(func(c *gin.Context) {
		Fail(c, stderrors.New("boom"))
	})

	rec, body := serve(t, r, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, errors.ErrCodeInternal, body.Code)
}

func TestErrorHandlerRecoversPanics(t *testing.T) {
	r := newEngine(func(c *gin.Context) {
		panic("nil map write")
	})

	rec, body := serve(t, r, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, errors.ErrCodeInternal, body.Code)
	assert.NotContains(t, rec.Body.String(), "nil map")
}

func TestStatusCode(t *testing.T) {
	cases := []struct {
		err  *errors.AppError
		want int
	}{
		{errors.NewInvalidSignatureError(), http.StatusUnauthorized},
		{errors.NewSessionExpiredError(), http.StatusUnauthorized},
		{errors.NewNotOwnerError(1), http.StatusForbidden},
		{errors.NewCodeNotFoundError("X"), http.StatusNotFound},
		{errors.NewValidationError("price", "must be positive"), http.StatusBadRequest},
		{errors.NewInsufficientFundsError(1, 2), http.StatusBadRequest},
		{errors.NewAlreadyListedError(1), http.StatusConflict},
		{errors.NewCacheError("get", stderrors.New("x")), http.StatusServiceUnavailable},
		{errors.NewStorageError("put", stderrors.New("x")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(string(tc.err.Code), func(t *testing.T) {
			assert.Equal(t, tc.want, StatusCode(tc.err))
		})
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc "))
	assert.Empty(t, bearerToken("Bearer "))
	assert.Empty(t, bearerToken("Basic abc"))
	assert.Empty(t, bearerToken(""))
}

func TestRequireSessionAndAdmin(t *testing.T) {
	sessions := session.NewStore(cache.NewMemoryKV(), time.Hour)
	ctx := context.Background()
	userToken, err := sessions.Issue(ctx, session.Session{UserID: 3, TelegramID: 30, Role: domain.RoleUser})
	require.NoError(t, err)
	adminToken, err := sessions.Issue(ctx, session.Session{UserID: 4, TelegramID: 40, Role: domain.RoleAdmin})
	require.NoError(t, err)

	ok := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": UserID(c), "telegramId": TelegramID(c)})
	}
	user := newEngine(RequireSession(sessions), ok)
	admin := newEngine(RequireSession(sessions), RequireAdmin(), ok)

	rec, body := serve(t, user, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, errors.ErrCodeUnauthorized, body.Code)

	rec, _ = serve(t, user, http.Header{"Authorization": {"Bearer nope"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = serve(t, user, http.Header{"Authorization": {"Bearer " + userToken}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"userId":3,"telegramId":30}`, rec.Body.String())

	rec, body = serve(t, admin, http.Header{"Authorization": {"Bearer " + userToken}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, errors.ErrCodeForbidden, body.Code)

	rec, _ = serve(t, admin, http.Header{"Authorization": {"Bearer " + adminToken}})
	assert.Equal(t, http.StatusOK, rec.Code)
}
