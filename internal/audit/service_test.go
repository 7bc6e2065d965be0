package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	entries    []Entry
	lastOffset int
	lastLimit  int
	lastFilter TimelineFilters
}

func (s *stubRepo) ListWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]Entry, error) {
	s.lastFilter = filters
	s.lastOffset = offset
	s.lastLimit = limit
	if offset >= len(s.entries) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.entries) {
		end = len(s.entries)
	}
	return s.entries[offset:end], nil
}

func fakeEntries(n int) []Entry {
	out := make([]Entry, n)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = Entry{
			ID:         int64(n - i),
			AdminEmail: "admin@example.com",
			Action:     "CREATE_ROLE",
			Timestamp:  base.Add(-time.Duration(i) * time.Minute),
		}
	}
	return out
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubRepo{entries: fakeEntries(25)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, result.Entries, 10)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Zero(t, result.Paging.PrevPage)
	require.Equal(t, 11, repo.lastLimit)
	require.Equal(t, 0, repo.lastOffset)

	result, err = svc.Timeline(context.Background(), TimelineFilters{Page: 3, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, result.Entries, 5)
	require.False(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.PrevPage)
	require.Equal(t, 20, repo.lastOffset)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubRepo{entries: fakeEntries(5)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	require.Equal(t, 20, result.Paging.PageSize)

	result, err = svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Equal(t, 50, result.Paging.PageSize)
}

func TestTimelinePassesFilters(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)

	_, err := svc.Timeline(context.Background(), TimelineFilters{Action: "DELETE_ROLE", AdminID: 7})
	require.NoError(t, err)
	require.Equal(t, "DELETE_ROLE", repo.lastFilter.Action)
	require.Equal(t, int64(7), repo.lastFilter.AdminID)
}

func TestTimelineWithoutRepository(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.Timeline(context.Background(), TimelineFilters{})
	require.EqualError(t, err, "audit: repository not configured")
}
