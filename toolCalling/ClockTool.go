package toolCalling

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// ClockTool reports the current time, optionally in a given IANA timezone.
type ClockTool struct{}

func NewClockTool() *ClockTool {
	return &ClockTool{}
}

func (h *ClockTool) Name() string {
	return "ClockTool"
}

func (h *ClockTool) Description() string {
	return "Returns the current date and time. Optionally accepts an IANA timezone name (e.g. 'Asia/Shanghai') and a Go time layout string."
}

func (h *ClockTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"timezone": map[string]interface{}{
				"type":        "string",
				"description": "IANA timezone name. Defaults to UTC.",
			},
			"format": map[string]interface{}{
				"type":        "string",
				"description": "Go time layout string. Defaults to RFC3339.",
			},
		},
	}
}

type clockArgs struct {
	Timezone string `mapstructure:"timezone"`
	Format   string `mapstructure:"format"`
}

func (h *ClockTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var a clockArgs
	if err := mapstructure.Decode(args, &a); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	loc := time.UTC
	if a.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(a.Timezone)
		if err != nil {
			return nil, fmt.Errorf("unknown timezone %q", a.Timezone)
		}
	}
	layout := a.Format
	if layout == "" {
		layout = time.RFC3339
	}

	now := time.Now().In(loc)
	return map[string]interface{}{
		"time":     now.Format(layout),
		"timezone": loc.String(),
		"unix":     now.Unix(),
	}, nil
}
