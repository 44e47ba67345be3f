// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/shelfwise/internal/database"
	"github.com/tomtom215/shelfwise/internal/logging"
	"github.com/tomtom215/shelfwise/internal/recommend"
)

func TestResponseWriter_Success(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	r = r.WithContext(logging.ContextWithRequestID(r.Context(), "req-1"))

	NewResponseWriter(w, r).Success(map[string]string{"message": "hello"})

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}

	var response APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if !response.Success || response.Error != nil {
		t.Errorf("response = %+v", response)
	}
	if response.Meta == nil || response.Meta.Timestamp.IsZero() {
		t.Fatal("Expected Meta with a timestamp")
	}
	if response.Meta.RequestID != "req-1" {
		t.Errorf("RequestID = %q, want req-1", response.Meta.RequestID)
	}
}

func TestResponseWriter_StatusCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		write func(rw *ResponseWriter)
		want  int
	}{
		{"created", func(rw *ResponseWriter) { rw.Created("x") }, http.StatusCreated},
		{"accepted", func(rw *ResponseWriter) { rw.Accepted("x") }, http.StatusAccepted},
		{"bad request", func(rw *ResponseWriter) { rw.BadRequest("x") }, http.StatusBadRequest},
		{"not found", func(rw *ResponseWriter) { rw.NotFound("x") }, http.StatusNotFound},
		{"conflict", func(rw *ResponseWriter) { rw.Conflict(ErrCodeConflict, "x") }, http.StatusConflict},
		{"unavailable", func(rw *ResponseWriter) { rw.ServiceUnavailable(ErrCodeServiceUnavailable, "x") }, http.StatusServiceUnavailable},
		{"database", func(rw *ResponseWriter) { rw.DatabaseError(errors.New("boom")) }, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			tt.write(NewResponseWriter(w, httptest.NewRequest(http.MethodGet, "/", nil)))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestResponseWriter_DatabaseErrorHidesCause(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	NewResponseWriter(w, httptest.NewRequest(http.MethodGet, "/", nil)).DatabaseError(errors.New("password=hunter2"))

	var response APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if response.Error.Code != ErrCodeDatabaseError || response.Error.Message != "A database error occurred" {
		t.Errorf("error = %+v", response.Error)
	}
}

func TestServiceError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{recommend.ErrInsufficientData, http.StatusServiceUnavailable, ErrCodeModelUnavailable},
		{recommend.ErrModelNotTrained, http.StatusServiceUnavailable, ErrCodeModelUnavailable},
		{fmt.Errorf("fetch ratings: %w", gobreaker.ErrOpenState), http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
		{gobreaker.ErrTooManyRequests, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
		{recommend.ErrTrainingInProgress, http.StatusConflict, ErrCodeTrainingInProgress},
		{fmt.Errorf("get book: %w", database.ErrNotFound), http.StatusNotFound, ErrCodeNotFound},
		{database.ErrDuplicateUsername, http.StatusConflict, ErrCodeConflict},
		{database.ErrInvalidScore, http.StatusBadRequest, ErrCodeValidationFailed},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, ErrCodeServiceUnavailable},
		{errors.New("disk full"), http.StatusInternalServerError, ErrCodeDatabaseError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			NewResponseWriter(w, httptest.NewRequest(http.MethodGet, "/", nil)).ServiceError(tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var response APIResponse
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if response.Success || response.Error == nil || response.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", response.Error, tt.wantCode)
			}
		})
	}
}
