package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetgeo/internal/types"
)

func TestError_AppErrorMapsStatus(t *testing.T) {
	cases := []struct {
		code   types.ErrorCode
		status int
	}{
		{types.ErrCodeValidationInvalidGeometry, http.StatusBadRequest},
		{types.ErrCodeNotFoundTrip, http.StatusNotFound},
		{types.ErrCodeUpstreamTileUnavailable, http.StatusBadGateway},
		{types.ErrCodeUpstreamRateLimited, http.StatusServiceUnavailable},
		{types.ErrCodeInternalCacheIO, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(types.WithRequestID(req.Context(), "req-1"))
			rec := httptest.NewRecorder()

			Error(rec, req, types.NewAppErrorWithDetails(tc.code, "boom", errors.New("hidden"),
				map[string]any{"k": "v"}))

			assert.Equal(t, tc.status, rec.Code)
			var body APIErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, string(tc.code), body.Error.Code)
			assert.Equal(t, "req-1", body.Error.RequestID)
			assert.Equal(t, "v", body.Error.Details["k"])
			assert.NotContains(t, rec.Body.String(), "hidden")
		})
	}
}

func TestError_GenericErrorIsOpaque(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.Contains(t, rec.Body.String(), string(types.ErrCodeInternalUnexpected))
}

func TestData_WrapsEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Data(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, []int{1, 2}, &ResponseMeta{Count: 2})

	assert.JSONEq(t, `{"data":[1,2],"meta":{"count":2}}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestRaw(t *testing.T) {
	rec := httptest.NewRecorder()
	Raw(rec, http.StatusOK, "image/png", []byte{0x89, 'P', 'N', 'G'})

	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, 4, rec.Body.Len())
}

type decodeTarget struct {
	Name string `json:"name"`
}

func TestDecodeJSON(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"name":"depot"}`, ""},
		{"empty", ``, "must not be empty"},
		{"syntax", `{"name":`, "JSON"},
		{"unknown field", `{"name":"a","extra":1}`, "unknown field"},
		{"wrong type", `{"name":5}`, "invalid value"},
		{"trailing value", `{"name":"a"}{"name":"b"}`, "single JSON object"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var dst decodeTarget
			err := DecodeJSON(httptest.NewRecorder(), req, &dst)
			if tc.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "depot", dst.Name)
				return
			}
			require.Error(t, err)
			assert.True(t, types.HasCode(err, errCodeValidationInvalidJSON))
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	body := `{"name":"` + strings.Repeat("x", maxRequestBodySize) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	err := DecodeJSON(httptest.NewRecorder(), req, &decodeTarget{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1MB")
}

func TestJSON_UnmarshallableValue(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, map[string]any{"c": make(chan int)})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "failed to marshal response")
}
