package main

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"remoteworks-cleaner/internal/models/entities"
	"remoteworks-cleaner/internal/models/ports"
)

// consoleProgress печатает события прогресса построчно
func consoleProgress(w io.Writer) ports.ProgressSubscriber {
	var mu sync.Mutex
	return ports.ProgressFunc(func(e entities.ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()

		switch e.Phase {
		case entities.PhaseFound:
			fmt.Fprintf(w, "[%s] found %d\n", e.Collection, e.Found)
		case entities.PhaseCommitted:
			fmt.Fprintf(w, "[%s] deleted %d/%d\n", e.Collection, e.Deleted, e.Found)
		case entities.PhaseCompleted:
			fmt.Fprintf(w, "[%s] done: %d deleted\n", e.Collection, e.Deleted)
		case entities.PhaseDryRun:
			fmt.Fprintf(w, "[%s] dry run: %d would be deleted\n", e.Collection, e.Found)
		case entities.PhaseFailed:
			fmt.Fprintf(w, "[%s] failed: %d/%d deleted\n", e.Collection, e.Deleted, e.Found)
		}
	})
}

// printSummary выводит итог; при ошибке счетчики показывают частичный прогресс
func printSummary(w io.Writer, result *entities.CleanupResult, dryRun bool) {
	if result == nil {
		return
	}

	collections := make([]string, 0, len(result.Counters))
	for c := range result.Counters {
		collections = append(collections, c)
	}
	sort.Strings(collections)

	fmt.Fprintf(w, "\nStatus: %s\n", result.Status)
	for _, c := range collections {
		counters := result.Counters[c]
		fmt.Fprintf(w, "  %-24s found %6d  deleted %6d\n", c, counters.Found, counters.Deleted)
	}

	for _, job := range result.Jobs {
		for _, f := range job.CascadeFailures {
			fmt.Fprintf(w, "  warning: children of %s in %s not deleted: %s\n",
				f.Parent, f.Rule.ChildCollection, f.Message)
		}
	}

	if dryRun {
		fmt.Fprintln(w, "Dry run: nothing was deleted")
		return
	}
	fmt.Fprintf(w, "Deleted %d documents in %s\n", result.RecordsDeleted, result.ElapsedTime.Round(time.Millisecond))
}
