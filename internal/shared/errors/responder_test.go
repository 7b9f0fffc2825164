package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMissing = errors.New("missing")

func serve(t *testing.T, r *Responder, err error) (*httptest.ResponseRecorder, ProblemDetail) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/products/delete", nil)
	r.RespondError(c, err)

	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	return rec, problem
}

func TestRespondErrorUsesMappers(t *testing.T) {
	r := NewResponder(func(err error) (ProblemDetail, bool) {
		if errors.Is(err, errMissing) {
			return ErrNotFound.WithDetail(err.Error()), true
		}
		return ProblemDetail{}, false
	})

	rec, problem := serve(t, r, errMissing)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ContentTypeProblemJSON, rec.Header().Get("Content-Type"))
	assert.Equal(t, TypeNotFound, problem.Type)
	assert.Equal(t, "/v1/products/delete", problem.Instance)
}

func TestRespondErrorFallsBackToInternal(t *testing.T) {
	rec, problem := serve(t, NewResponder(), errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "boom", problem.Detail)
}

func TestRespondErrorPassesProblemsThrough(t *testing.T) {
	rec, problem := serve(t, NewResponder(), ErrBadRequest.WithDetail("items required"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "items required", problem.Detail)
}

func TestWithExtensionCopies(t *testing.T) {
	base := ErrUpstream.WithExtension("a", 1)
	derived := base.WithExtension("b", 2)
	assert.Len(t, base.Extensions, 1)
	assert.Len(t, derived.Extensions, 2)
}
