package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestPagePubError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *PagePubError
		expected string
	}{
		{
			name:     "error without cause",
			err:      New(CategoryConfig, SeverityFatal, "configuration invalid"),
			expected: "config (fatal): configuration invalid",
		},
		{
			name:     "error with cause",
			err:      Wrap(fmt.Errorf("file not found"), CategoryConfig, SeverityFatal, "failed to load config"),
			expected: "config (fatal): failed to load config: file not found",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := test.err.Error()
			if result != test.expected {
				t.Errorf("Error() = %q, want %q", result, test.expected)
			}
		})
	}
}

func TestPagePubError_WithContext(t *testing.T) {
	err := New(CategoryForge, SeverityWarning, "upsert failed").
		WithContext("repository", "test-repo").
		WithContext("path", "index.html")

	if err.Context == nil {
		t.Fatal("Context should not be nil")
	}

	if err.Context["repository"] != "test-repo" {
		t.Errorf("Context[repository] = %v, want test-repo", err.Context["repository"])
	}

	if err.Context["path"] != "index.html" {
		t.Errorf("Context[path] = %v, want index.html", err.Context["path"])
	}
}

func TestIsCategory(t *testing.T) {
	configErr := New(CategoryConfig, SeverityFatal, "config error")
	forgeErr := New(CategoryForge, SeverityWarning, "forge error")
	standardErr := fmt.Errorf("standard error")

	tests := []struct {
		name     string
		err      error
		category ErrorCategory
		expected bool
	}{
		{"config error matches config category", configErr, CategoryConfig, true},
		{"config error doesn't match forge category", configErr, CategoryForge, false},
		{"forge error matches forge category", forgeErr, CategoryForge, true},
		{"standard error doesn't match any category", standardErr, CategoryConfig, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsCategory(test.err, test.category)
			if result != test.expected {
				t.Errorf("IsCategory() = %v, want %v", result, test.expected)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	retryableErr := Retryable(CategoryNetwork, SeverityWarning, "timeout")
	nonRetryableErr := New(CategoryConfig, SeverityFatal, "invalid")
	standardErr := fmt.Errorf("standard error")

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"retryable error", retryableErr, true},
		{"non-retryable error", nonRetryableErr, false},
		{"standard error", standardErr, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsRetryable(test.err)
			if result != test.expected {
				t.Errorf("IsRetryable() = %v, want %v", result, test.expected)
			}
		})
	}
}

func TestConvenienceFunctions(t *testing.T) {
	t.Run("ConfigRequired", func(t *testing.T) {
		err := ConfigRequired("GITHUB_TOKEN")
		if err.Category != CategoryConfig {
			t.Errorf("Category = %v, want %v", err.Category, CategoryConfig)
		}
		if err.Severity != SeverityFatal {
			t.Errorf("Severity = %v, want %v", err.Severity, SeverityFatal)
		}
		if err.Context["field"] != "GITHUB_TOKEN" {
			t.Errorf("Context[field] = %v, want GITHUB_TOKEN", err.Context["field"])
		}
	})

	t.Run("ForgeNetworkError", func(t *testing.T) {
		cause := fmt.Errorf("timeout")
		err := ForgeNetworkError("get pages", cause)
		if err.Category != CategoryNetwork {
			t.Errorf("Category = %v, want %v", err.Category, CategoryNetwork)
		}
		if !err.Retryable {
			t.Error("ForgeNetworkError should be retryable")
		}
		if !stdErrors.Is(err, cause) {
			t.Errorf("Cause should match wrapped cause: %v", cause)
		}
	})

	t.Run("UpsertExhausted", func(t *testing.T) {
		err := UpsertExhausted("index.html", 3)
		if err.Category != CategoryPublish {
			t.Errorf("Category = %v, want %v", err.Category, CategoryPublish)
		}
		if err.Severity != SeverityFatal {
			t.Errorf("Severity = %v, want %v", err.Severity, SeverityFatal)
		}
		if err.Context["path"] != "index.html" {
			t.Errorf("Context[path] = %v, want index.html", err.Context["path"])
		}
		if err.Context["attempts"] != 3 {
			t.Errorf("Context[attempts] = %v, want 3", err.Context["attempts"])
		}
	})

	t.Run("StepFailed", func(t *testing.T) {
		cause := fmt.Errorf("boom")
		err := StepFailed("creating/updating repository", cause)
		if err.Context["step"] != "creating/updating repository" {
			t.Errorf("Context[step] = %v", err.Context["step"])
		}
		if !stdErrors.Is(err, cause) {
			t.Error("StepFailed should wrap its cause")
		}
	})
}
