package util

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "EAGAIN", err: syscall.EAGAIN, expected: true},
		{name: "EINTR", err: syscall.EINTR, expected: true},
		{name: "EIO", err: syscall.EIO, expected: true},
		{name: "ENOENT (not retryable)", err: syscall.ENOENT, expected: false},
		{name: "EACCES (not retryable)", err: syscall.EACCES, expected: false},
		{name: "database is locked", err: errors.New("database is locked (5)"), expected: true},
		{name: "timeout in message", err: errors.New("read timeout"), expected: true},
		{name: "generic error", err: errors.New("invalid argument"), expected: false},
		{
			name:     "PathError with EIO",
			err:      &os.PathError{Op: "open", Path: "/test", Err: syscall.EIO},
			expected: true,
		},
		{
			name:     "PathError with ENOENT",
			err:      &os.PathError{Op: "open", Path: "/test", Err: syscall.ENOENT},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryableError(tt.err); got != tt.expected {
				t.Errorf("IsRetryableError(%v) = %v, expected %v", tt.err, got, tt.expected)
			}
		})
	}
}

func fastRetry() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		InitialWait: 5 * time.Millisecond,
		MaxWait:     20 * time.Millisecond,
	}
}

func TestRetryWithBackoff_SuccessAfterRetries(t *testing.T) {
	attempts := 0
	result, err := RetryWithBackoff(context.Background(), fastRetry(), func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", syscall.EAGAIN
		}
		return "ok", nil
	}, "test operation")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result != "ok" {
		t.Errorf("Expected result 'ok', got: %s", result)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestRetryWithBackoff_FailureAfterMaxRetries(t *testing.T) {
	attempts := 0
	_, err := RetryWithBackoff(context.Background(), fastRetry(), func() (int, error) {
		attempts++
		return 0, syscall.EIO
	}, "test operation")

	if !errors.Is(err, syscall.EIO) {
		t.Errorf("Expected wrapped EIO, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestRetryWithBackoff_NonRetryableError(t *testing.T) {
	attempts := 0
	_, err := RetryWithBackoff(context.Background(), fastRetry(), func() (int, error) {
		attempts++
		return 0, syscall.ENOENT
	}, "test operation")

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := &RetryConfig{MaxAttempts: 5, InitialWait: time.Second, MaxWait: time.Second}
	attempts := 0
	err := Retry(ctx, cfg, func() error {
		attempts++
		return syscall.EAGAIN
	}, "cancelled operation")

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt before cancellation, got: %d", attempts)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "artifact.bin")

	if err := WriteFileAtomic(path, []byte("first"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic overwrite failed: %v", err)
	}

	data, err := RetryableReadFile(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("Expected 'second', got %q", data)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("Expected only the artifact in directory, found %d entries", len(entries))
	}
}
