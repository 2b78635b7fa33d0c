package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/seminar-portal/internal/models"
)

func TestErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err  error
		code int
		msg  string
	}{
		{fmt.Errorf("schedule: %w", models.ErrNotFound), http.StatusNotFound, "schedule: not found"},
		{models.ErrForbidden, http.StatusForbidden, "forbidden"},
		{fmt.Errorf("%w: content is empty", models.ErrValidation), http.StatusBadRequest, "validation failed: content is empty"},
		{models.ErrInvalidTransition, http.StatusConflict, "invalid status transition"},
		{models.ErrNotAttached, http.StatusConflict, "viewer is not attached to the chat channel"},
		{errors.New("pgx: connection refused"), http.StatusInternalServerError, "failed"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		Error(c, tc.err, "failed")

		assert.Equal(t, tc.code, w.Code)
		var body Body
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.False(t, body.Success)
		assert.Equal(t, tc.msg, body.Error)
	}
}
