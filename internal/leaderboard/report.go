package leaderboard

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/Technolog796/DeathMath/internal/aggregate"
)

// WriteReport renders run scores as a markdown leaderboard. Models are
// ranked by overall accuracy.
func WriteReport(w io.Writer, scores []aggregate.ModelScore, elapsed time.Duration) error {
	ranked := make([]aggregate.ModelScore, len(scores))
	copy(ranked, scores)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Overall.Accuracy > ranked[j].Overall.Accuracy
	})

	if _, err := fmt.Fprintf(w, "# Leaderboard\n\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "| # | Model | Accuracy | Attempted | Correct | Cache hits | Failed | Data faults | Tokens |\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "|---|-------|----------|-----------|---------|------------|--------|-------------|--------|\n"); err != nil {
		return err
	}

	for i, ms := range ranked {
		o := ms.Overall
		if _, err := fmt.Fprintf(w, "| %d | %s | %.2f%% | %d | %d | %d | %d | %d | %d |\n",
			i+1, ms.Model, o.Accuracy*100, o.Attempted, o.Correct, o.CacheHits, o.Failed, o.DataFaults, ms.Tokens); err != nil {
			return err
		}
	}

	for _, ms := range ranked {
		if _, err := fmt.Fprintf(w, "\n## %s\n\n", ms.Model); err != nil {
			return err
		}
		for _, ds := range ms.Datasets {
			if _, err := fmt.Fprintf(w, "- %s: %.2f%% (%d/%d correct, %d cached, %d failed, %d data faults)\n",
				ds.Dataset, ds.Accuracy*100, ds.Correct, ds.Attempted, ds.CacheHits, ds.Failed, ds.DataFaults); err != nil {
				return err
			}
		}
	}

	_, err := fmt.Fprintf(w, "\nElapsed: %s\n", elapsed.Round(time.Second))
	return err
}
