package errors_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	apperrors "github.com/yashrajoria/shoppingcart-service/common/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(handler gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(apperrors.ErrorMiddleware())
	r.GET("/x", handler)
	return r
}

func TestErrorMiddleware_PlainErrorBecomes500(t *testing.T) {
	r := newRouter(func(c *gin.Context) {
		_ = c.Error(errors.New("dynamodb GetItem failed: connection reset"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"code":500,"message":"Internal server error"}`, w.Body.String())
	assert.Nil(t, apperrors.ErrInternalServer.Err, "shared sentinel must stay untouched")
}

func TestErrorMiddleware_AppErrorKeepsCode(t *testing.T) {
	r := newRouter(func(c *gin.Context) {
		_ = c.Error(apperrors.New(http.StatusServiceUnavailable, "Store unavailable", nil))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"code":503,"message":"Store unavailable"}`, w.Body.String())
}

func TestErrorMiddleware_RendersDetails(t *testing.T) {
	cause := errors.New("item not found")
	r := newRouter(func(c *gin.Context) {
		_ = c.Error(apperrors.ErrNotFound.Wrap(cause).WithDetails("Shopping cart item not found"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"code":404,"message":"Not found","details":"Shopping cart item not found"}`, w.Body.String())
	assert.Empty(t, apperrors.ErrNotFound.Details)
	assert.Nil(t, apperrors.ErrNotFound.Err)
}

func TestRecovery_PanicRendersInternalError(t *testing.T) {
	var status int
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Next()
		status = c.Writer.Status()
	})
	r.Use(apperrors.Recovery())
	r.GET("/x", func(*gin.Context) { panic("nil map") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, http.StatusInternalServerError, status, "outer middleware observes the status")
	assert.JSONEq(t, `{"code":500,"message":"Internal server error"}`, w.Body.String())
}

func TestErrorMiddleware_WrittenResponseWins(t *testing.T) {
	r := newRouter(func(c *gin.Context) {
		_ = c.Error(errors.New("ignored"))
		c.JSON(http.StatusNotFound, gin.H{"error": "Shopping cart item not found"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Shopping cart item not found"}`, w.Body.String())
}

func TestError_WrapAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := apperrors.ErrConflict.Wrap(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusConflict, err.Code)
	assert.Equal(t, "Conflict: boom", err.Error())
	assert.Nil(t, apperrors.ErrConflict.Err)
}
