package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ticketpulse/ticketpulse/internal/domain"
	"github.com/ticketpulse/ticketpulse/internal/domain/mocks"
	"github.com/ticketpulse/ticketpulse/internal/http/middleware"
	"github.com/ticketpulse/ticketpulse/pkg/analytics"
	"github.com/ticketpulse/ticketpulse/pkg/logger"
	"github.com/ticketpulse/ticketpulse/pkg/ratelimiter"
)

func newTestMux(t *testing.T, service domain.AnalyticsService, limiter *ratelimiter.RateLimiter) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	NewAnalyticsHandler(service, limiter, logger.NewMockLogger(t)).RegisterRoutes(mux)
	return mux
}

func TestNewAnalyticsHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler := NewAnalyticsHandler(mocks.NewMockAnalyticsService(ctrl), nil, logger.NewMockLogger())

	assert.NotNil(t, handler)
	assert.IsType(t, &AnalyticsHandler{}, handler)
}

func TestAnalyticsHandler_handleQuery(t *testing.T) {
	dsl := analytics.NewDSL()
	dsl.Dimensions = []string{"city"}

	successResult := &domain.AnalyticsResult{
		RequestID: "req-1",
		DSL:       dsl,
		SQL:       "SELECT city AS city, COUNT(*) AS tickets FROM ticket_results GROUP BY city LIMIT :limit",
		Data: []analytics.Row{
			analytics.NewRow([]string{"city", "tickets"}, []interface{}{"Astana", int64(10)}),
		},
		ChartSpec: map[string]interface{}{"mark": "bar"},
		Summary:   "Found 1 rows of aggregated data. Grouped by: city. First result: tickets=10.",
	}

	tests := []struct {
		name           string
		method         string
		body           string
		setupMocks     func(*mocks.MockAnalyticsService)
		expectedStatus int
		expectedCode   string
		checkResponse  func(*testing.T, map[string]interface{})
	}{
		{
			name:   "successful query",
			method: http.MethodPost,
			body:   `{"query": "  tickets by city  "}`,
			setupMocks: func(m *mocks.MockAnalyticsService) {
				m.EXPECT().Query(gomock.Any(), "tickets by city", "req-1").Return(successResult, nil)
			},
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "req-1", body["request_id"])
				assert.Equal(t, successResult.SQL, body["sql"])
				assert.Equal(t, []interface{}{map[string]interface{}{"city": "Astana", "tickets": float64(10)}}, body["data"])
				assert.Equal(t, successResult.Summary, body["summary"])
				assert.Equal(t, map[string]interface{}{"mark": "bar"}, body["chart_spec"])
			},
		},
		{
			name:           "wrong method",
			method:         http.MethodGet,
			setupMocks:     func(m *mocks.MockAnalyticsService) {},
			expectedStatus: http.StatusMethodNotAllowed,
			expectedCode:   CodeMethodNotAllowed,
		},
		{
			name:           "malformed body",
			method:         http.MethodPost,
			body:           `{"query":`,
			setupMocks:     func(m *mocks.MockAnalyticsService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   CodeInvalidRequest,
			checkResponse: func(t *testing.T, body map[string]interface{}) {
				errBody := body["error"].(map[string]interface{})
				assert.Equal(t, "Invalid request payload", errBody["message"])
			},
		},
		{
			name:           "blank query",
			method:         http.MethodPost,
			body:           `{"query": "   "}`,
			setupMocks:     func(m *mocks.MockAnalyticsService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   CodeInvalidRequest,
			checkResponse: func(t *testing.T, body map[string]interface{}) {
				errBody := body["error"].(map[string]interface{})
				assert.Equal(t, "query is required", errBody["message"])
			},
		},
		{
			name:           "oversized query",
			method:         http.MethodPost,
			body:           `{"query": "` + strings.Repeat("a", domain.MaxQueryLength+1) + `"}`,
			setupMocks:     func(m *mocks.MockAnalyticsService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   CodeInvalidRequest,
		},
		{
			name:   "domain error is a client error",
			method: http.MethodPost,
			body:   `{"query": "tickets by a b c d e"}`,
			setupMocks: func(m *mocks.MockAnalyticsService) {
				m.EXPECT().Query(gomock.Any(), "tickets by a b c d e", "req-1").
					Return(nil, analytics.NewError(analytics.CodeDSLTooManyDimensions, "Too many dimensions", "Use up to 4"))
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   analytics.CodeDSLTooManyDimensions,
			checkResponse: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "req-1", body["request_id"])
				errBody := body["error"].(map[string]interface{})
				assert.Equal(t, "Too many dimensions", errBody["message"])
				assert.Equal(t, "Use up to 4", errBody["hint"])
			},
		},
		{
			name:   "wrapped domain error is a client error",
			method: http.MethodPost,
			body:   `{"query": "weekly trend"}`,
			setupMocks: func(m *mocks.MockAnalyticsService) {
				m.EXPECT().Query(gomock.Any(), "weekly trend", "req-1").
					Return(nil, errors.Join(errors.New("stage"), analytics.NewError(analytics.CodeSQLTimeout, "Analytics query timed out", "")))
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   analytics.CodeSQLTimeout,
		},
		{
			name:   "unexpected error is internal",
			method: http.MethodPost,
			body:   `{"query": "tickets by city"}`,
			setupMocks: func(m *mocks.MockAnalyticsService) {
				m.EXPECT().Query(gomock.Any(), "tickets by city", "req-1").
					Return(nil, errors.New("connection reset"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   CodeInternalError,
			checkResponse: func(t *testing.T, body map[string]interface{}) {
				errBody := body["error"].(map[string]interface{})
				assert.Equal(t, "connection reset", errBody["message"])
				assert.Equal(t, "Check backend logs for request details.", errBody["hint"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockService := mocks.NewMockAnalyticsService(ctrl)
			tt.setupMocks(mockService)
			mux := newTestMux(t, mockService, nil)

			req := httptest.NewRequest(tt.method, "/api/v1/analytics/query", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(middleware.RequestIDHeader, "req-1")
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "req-1", w.Header().Get(middleware.RequestIDHeader))
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

			if tt.expectedCode != "" {
				assert.Equal(t, "req-1", body["request_id"])
				errBody, ok := body["error"].(map[string]interface{})
				require.True(t, ok)
				assert.Equal(t, tt.expectedCode, errBody["code"])
			}
			if tt.checkResponse != nil {
				tt.checkResponse(t, body)
			}
		})
	}
}

func TestAnalyticsHandler_GeneratesRequestID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := mocks.NewMockAnalyticsService(ctrl)
	var seen string
	mockService.EXPECT().Query(gomock.Any(), "tickets", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, requestID string) (*domain.AnalyticsResult, error) {
			seen = requestID
			return &domain.AnalyticsResult{RequestID: requestID}, nil
		})

	mux := newTestMux(t, mockService, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analytics/query", strings.NewReader(`{"query":"tickets"}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(middleware.RequestIDHeader))
}

func TestAnalyticsHandler_RateLimited(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := mocks.NewMockAnalyticsService(ctrl)
	mockService.EXPECT().Query(gomock.Any(), "tickets", gomock.Any()).
		Return(&domain.AnalyticsResult{}, nil).Times(1)

	limiter := ratelimiter.New(clockwork.NewFakeClock(), 1, time.Minute)
	defer limiter.Stop()
	mux := newTestMux(t, mockService, limiter)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/analytics/query", strings.NewReader(`{"query":"tickets"}`))
		req.RemoteAddr = "198.51.100.4:1234"
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send().Code)

	w := send()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}
