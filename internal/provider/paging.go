package provider

import (
	"context"

	"github.com/rs/zerolog"

	"translation-orchestrator/internal/domain"
)

// MaxPages stops listings from a provider that keeps reporting more pages.
const MaxPages = 10000

type pageFetcher func(ctx context.Context, page int) (TaskPage, error)

// collectPages requests pages starting at 1 until the provider reports a
// page count not beyond the current page, or no page count at all. Tasks
// repeated across pages are kept once, first occurrence wins.
func collectPages(ctx context.Context, fetch pageFetcher, log zerolog.Logger) ([]domain.TaskRecord, error) {
	seen := make(map[int64]struct{})
	tasks := make([]domain.TaskRecord, 0)

	for page := 1; ; page++ {
		if page > MaxPages {
			return tasks, domain.CommunicationFailure(nil, "task listing exceeded %d pages", MaxPages)
		}
		if err := ctx.Err(); err != nil {
			return tasks, domain.CommunicationFailure(err, "task listing interrupted")
		}

		result, err := fetch(ctx, page)
		if err != nil {
			return tasks, err
		}
		for _, task := range result.Tasks {
			if _, dup := seen[task.TaskID]; dup {
				continue
			}
			seen[task.TaskID] = struct{}{}
			tasks = append(tasks, task)
		}

		if result.TotalPages == nil {
			// An absent page count ends the listing. A malformed response
			// would look the same, so keep an eye on this.
			log.Debug().Int("page", page).Int("tasks", len(tasks)).Msg("provider omitted page count, ending task listing")
			return tasks, nil
		}
		if *result.TotalPages <= page {
			return tasks, nil
		}
	}
}
