package utils

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	retryable := []error{
		errors.New("Protocol error (Page.navigate): Target closed"),
		errors.New("websocket: Connection closed"),
		errors.New("page evaluation timeout"),
		fmt.Errorf("read body: %w", syscall.ECONNRESET),
		fmt.Errorf("dial: %w", syscall.ETIMEDOUT),
		fmt.Errorf("navigate: %w", context.DeadlineExceeded),
		fmt.Errorf("%w: error writing file", ErrTransient),
	}
	for _, err := range retryable {
		assert.True(t, IsRetryable(err), err.Error())
	}

	terminal := []error{
		nil,
		errors.New("could not find a valid download link or content on the page"),
		errors.New("downloaded file is empty or an error page"),
		errors.New("unexpected status code: 404"),
	}
	for _, err := range terminal {
		assert.False(t, IsRetryable(err))
	}
}

func TestIsBrowserLost(t *testing.T) {
	assert.True(t, IsBrowserLost(errors.New("Protocol error: Connection closed")))
	assert.True(t, IsBrowserLost(errors.New("websocket: close 1006")))
	assert.False(t, IsBrowserLost(errors.New("timeout")))
	assert.False(t, IsBrowserLost(nil))
}
