package backup

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// RetryConfig controls exponential backoff for flaky backends.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultRetryConfig suits S3-class object stores.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2.0,
	}
}

// RetryableStore wraps a Store with retries on transient errors.
type RetryableStore struct {
	store  Store
	config RetryConfig
}

// NewRetryableStore wraps store with config.
func NewRetryableStore(store Store, config RetryConfig) *RetryableStore {
	return &RetryableStore{store: store, config: config}
}

func (r *RetryableStore) List(prefix string) ([]string, error) {
	var result []string
	err := r.retry("list", func() error {
		var err error
		result, err = r.store.List(prefix)
		return err
	})
	return result, err
}

func (r *RetryableStore) Get(key string) ([]byte, error) {
	var result []byte
	err := r.retry("get", func() error {
		var err error
		result, err = r.store.Get(key)
		return err
	})
	return result, err
}

func (r *RetryableStore) PutAtomic(key string, data []byte) error {
	return r.retry("put_atomic", func() error {
		return r.store.PutAtomic(key, data)
	})
}

func (r *RetryableStore) retry(op string, fn func() error) error {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt < r.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(r.delay(attempt))
		}
		attempts++
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			if !isRetryable(err) {
				break
			}
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, lastErr)
}

// delay implements exponential backoff with +-25% jitter.
func (r *RetryableStore) delay(attempt int) time.Duration {
	d := float64(r.config.BaseDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	if d > float64(r.config.MaxDelay) {
		d = float64(r.config.MaxDelay)
	}
	jitter := d * 0.25 * (2*float64(time.Now().UnixNano()%1000)/1000 - 1)
	return time.Duration(d + jitter)
}

var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporary failure",
	"service unavailable",
	"server error",
	"throttling",
	"SlowDown",
	"RequestTimeout",
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
