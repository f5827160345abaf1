package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/go-redis/redis/v8"

	"nse-metrics/internal/model"
)

// LatestRun returns the most recently cached run, or nil when none is cached.
func (rc *RunCache) LatestRun(ctx context.Context) (*model.RunResult, error) {
	var res model.RunResult
	ok, err := rc.getJSON(ctx, KeyLatestRun, &res)
	if err != nil || !ok {
		return nil, err
	}
	return &res, nil
}

// RunFor returns the cached run of one target date (YYYY-MM-DD).
func (rc *RunCache) RunFor(ctx context.Context, date string) (*model.RunResult, error) {
	var res model.RunResult
	ok, err := rc.getJSON(ctx, KeyRunPrefix+date, &res)
	if err != nil || !ok {
		return nil, err
	}
	return &res, nil
}

// BreadthFor returns the cached breadth of one date.
func (rc *RunCache) BreadthFor(ctx context.Context, date string) (*model.Breadth, error) {
	var b model.Breadth
	ok, err := rc.getJSON(ctx, KeyBreadthPrefix+date, &b)
	if err != nil || !ok {
		return nil, err
	}
	return &b, nil
}

func (rc *RunCache) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	var data string
	err := rc.cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		data, err = rc.client.Get(ctx, key).Result()
		if errors.Is(err, goredis.Nil) {
			data = ""
			return nil
		}
		return err
	})
	if err != nil {
		return false, fmt.Errorf("redis GET %s: %w", key, err)
	}
	if data == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(data), dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}
