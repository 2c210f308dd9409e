// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielhkuo/council/cliparse"
	"github.com/danielhkuo/council/models"
)

// TestAdminName is the administrator used across tests
const TestAdminName = "alex"

// Epoch is the fixed start time of FakeClock
var Epoch = time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)

// GetTestConfig returns a standard test configuration backed by a SQLite
// file in a per-test temporary directory
func GetTestConfig(t *testing.T) cliparse.Config {
	t.Helper()
	return cliparse.Config{
		Port:           3318,
		DatabaseType:   cliparse.DatabaseSQLite,
		DatabaseURL:    filepath.Join(t.TempDir(), "council.db"),
		AdminName:      TestAdminName,
		LogLevel:       "debug",
		AllowedOrigins: []string{"*"},
		Settings:       models.DefaultSettings(),
	}
}

// TestSettings returns settings with short timers and the given quorum
func TestSettings(required int) models.Settings {
	return models.Settings{
		RequiredMembers:   required,
		CountdownSeconds:  60,
		InterludeSeconds:  5,
		PreSessionSeconds: 3,
	}
}

// TestProposal builds an open proposal whose ordering key is offset from Epoch
func TestProposal(id, title, author string, offset time.Duration) *models.Proposal {
	return &models.Proposal{
		ID:           id,
		Title:        title,
		Author:       author,
		VoteDeadline: Epoch.Add(offset),
		Status:       models.StatusOpen,
		CreatedAt:    Epoch.UnixMilli(),
		Comments:     []models.Comment{},
	}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body any, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
