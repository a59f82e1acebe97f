package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type captureRepo struct {
	limit  int
	offset int
}

func (c *captureRepo) Timeline(ctx context.Context, f TimelineFilters, limit, offset int) ([]TimelineRow, int, error) {
	c.limit = limit
	c.offset = offset
	return nil, 0, nil
}

func TestTimelineClampsPaging(t *testing.T) {
	repo := &captureRepo{}
	svc := NewService(repo)
	ctx := context.Background()

	_, _, err := svc.Timeline(ctx, TimelineFilters{})
	require.NoError(t, err)
	require.Equal(t, 20, repo.limit)
	require.Zero(t, repo.offset)

	_, _, err = svc.Timeline(ctx, TimelineFilters{Page: 3, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, 10, repo.limit)
	require.Equal(t, 20, repo.offset)

	_, _, err = svc.Timeline(ctx, TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Equal(t, 50, repo.limit)
}
