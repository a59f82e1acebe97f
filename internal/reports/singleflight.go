package reports

import (
	"context"

	"golang.org/x/sync/singleflight"
)

var reportBuildGroup singleflight.Group

// singleflightBuild collapses concurrent report builds for the same cache key
// into one execution.
func singleflightBuild(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error, bool) {
	result, err, shared := reportBuildGroup.Do(key, func() (interface{}, error) {
		return fn(ctx)
	})
	return result, err, shared
}
