package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"translation-orchestrator/internal/domain"
)

func intPtr(v int) *int { return &v }

func TestCollectPages_StopsWhenTotalReached(t *testing.T) {
	var requested []int
	pages := map[int]TaskPage{
		1: {Tasks: []domain.TaskRecord{{TaskID: 1}, {TaskID: 2}}, TotalPages: intPtr(3)},
		2: {Tasks: []domain.TaskRecord{{TaskID: 3}}, TotalPages: intPtr(3)},
		3: {Tasks: []domain.TaskRecord{{TaskID: 4}}, TotalPages: intPtr(3)},
	}

	tasks, err := collectPages(context.Background(), func(_ context.Context, page int) (TaskPage, error) {
		requested = append(requested, page)
		return pages[page], nil
	}, zerolog.Nop())

	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, requested)
	require.Len(t, tasks, 4)
}

func TestCollectPages_MissingTotalEndsListing(t *testing.T) {
	calls := 0
	tasks, err := collectPages(context.Background(), func(_ context.Context, page int) (TaskPage, error) {
		calls++
		return TaskPage{Tasks: []domain.TaskRecord{{TaskID: int64(page)}}}, nil
	}, zerolog.Nop())

	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Len(t, tasks, 1)
}

func TestCollectPages_DeduplicatesByTaskID(t *testing.T) {
	tasks, err := collectPages(context.Background(), func(_ context.Context, page int) (TaskPage, error) {
		if page == 1 {
			return TaskPage{Tasks: []domain.TaskRecord{{TaskID: 7, Locale: "de-DE"}, {TaskID: 8}}, TotalPages: intPtr(2)}, nil
		}
		return TaskPage{Tasks: []domain.TaskRecord{{TaskID: 7, Locale: "fr-FR"}, {TaskID: 9}}, TotalPages: intPtr(2)}, nil
	}, zerolog.Nop())

	require.NoError(t, err)
	require.Len(t, tasks, 3)
	require.Equal(t, "de-DE", tasks[0].Locale)
}

func TestCollectPages_FetchErrorPropagates(t *testing.T) {
	boom := domain.CommunicationFailure(errors.New("reset"), "list")
	_, err := collectPages(context.Background(), func(context.Context, int) (TaskPage, error) {
		return TaskPage{}, boom
	}, zerolog.Nop())

	require.ErrorIs(t, err, boom)
}

func TestCollectPages_RunawayListingFails(t *testing.T) {
	calls := 0
	_, err := collectPages(context.Background(), func(_ context.Context, page int) (TaskPage, error) {
		calls++
		return TaskPage{TotalPages: intPtr(page + 1)}, nil
	}, zerolog.Nop())

	require.Error(t, err)
	require.True(t, domain.IsFailureKind(err, domain.FailureCommunication))
	require.Equal(t, MaxPages, calls)
}

func TestCollectPages_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := collectPages(ctx, func(context.Context, int) (TaskPage, error) {
		t.Fatal("fetch must not be called")
		return TaskPage{}, nil
	}, zerolog.Nop())

	require.True(t, domain.IsFailureKind(err, domain.FailureCommunication))
}
