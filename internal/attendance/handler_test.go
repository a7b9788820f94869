// internal/attendance/handler_test.go
package attendance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportCSV(t *testing.T) {
	tracker, _, clock := newTestTracker(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), false)
	ctx := context.Background()

	first, err := tracker.MarkEntry(ctx, "m1", "Alice")
	require.NoError(t, err)
	*clock = time.Date(2024, 3, 4, 13, 30, 0, 0, time.UTC)
	_, err = tracker.MarkExit(ctx, first)
	require.NoError(t, err)

	*clock = time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)
	_, err = tracker.MarkEntry(ctx, "m2", "Bob")
	require.NoError(t, err)

	router := chi.NewRouter()
	NewHandler(tracker).Routes(router)

	t.Run("member filter", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export.csv?memberId=m1", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
		body := rec.Body.String()
		assert.Contains(t, body, "2024-03-04,Alice,09:00:00,13:30:00,270")
		assert.NotContains(t, body, "Bob")
	})

	t.Run("month filter", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export.csv?year=2024&month=3", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "Alice")
		assert.NotContains(t, body, "Bob")
		// Header plus exactly one data row.
		assert.Len(t, strings.Split(strings.TrimSpace(body), "\n"), 2)
	})
}
