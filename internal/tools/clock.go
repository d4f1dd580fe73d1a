package tools

import (
	"context"
	"time"
)

// TimeLayout is the format get_time answers with.
const TimeLayout = "2006-01-02 15:04:05"

// Clock is the get_time capability.
type Clock struct {
	now func() time.Time
}

// NewClock returns a get_time capability. A nil now uses time.Now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

func (c *Clock) Name() string { return "get_time" }

func (c *Clock) Description() string {
	return "Get the current local date and time."
}

func (c *Clock) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (c *Clock) Invoke(_ context.Context, _ map[string]any) (string, error) {
	return c.now().Format(TimeLayout), nil
}
