// Package aggregate folds graded results into per-dataset and overall
// model scores. The fold is pure and order-independent: the same result
// set always produces the same scores.
package aggregate

import (
	"sort"

	"github.com/Technolog796/DeathMath/internal/scheduler"
)

// DatasetScore holds counts for one model on one dataset. Accuracy is
// correct/attempted; attempted excludes dataset-integrity faults and
// failed dispatches.
type DatasetScore struct {
	Dataset    string  `json:"dataset"`
	Attempted  int     `json:"attempted"`
	Correct    int     `json:"correct"`
	CacheHits  int     `json:"cache_hits"`
	Failed     int     `json:"failed"`
	DataFaults int     `json:"data_faults"`
	Accuracy   float64 `json:"accuracy"`
}

// ModelScore aggregates one model across all datasets.
type ModelScore struct {
	Model    string         `json:"model"`
	Datasets []DatasetScore `json:"datasets"`
	Overall  DatasetScore   `json:"overall"`
	Tokens   int            `json:"tokens"`
}

// Fold computes scores for every model present in results. Results may
// arrive in any order; output is sorted by model name, datasets by
// dataset name, so identical sets yield identical output.
func Fold(results []scheduler.GradedResult) []ModelScore {
	type key struct{ model, ds string }
	perDataset := make(map[key]*DatasetScore)
	tokens := make(map[string]int)

	for i := range results {
		r := &results[i]
		k := key{r.Model, r.Dataset}
		score, ok := perDataset[k]
		if !ok {
			score = &DatasetScore{Dataset: r.Dataset}
			perDataset[k] = score
		}
		tokens[r.Model] += r.Raw.PromptTokens + r.Raw.CompletionTokens

		switch r.Status {
		case scheduler.StatusFailed:
			score.Failed++
		case scheduler.StatusDataFault:
			score.DataFaults++
		default:
			score.Attempted++
			if r.Verdict.Correct {
				score.Correct++
			}
			if r.CacheHit {
				score.CacheHits++
			}
		}
	}

	byModel := make(map[string][]DatasetScore)
	for k, score := range perDataset {
		if score.Attempted > 0 {
			score.Accuracy = float64(score.Correct) / float64(score.Attempted)
		}
		byModel[k.model] = append(byModel[k.model], *score)
	}

	out := make([]ModelScore, 0, len(byModel))
	for model, scores := range byModel {
		sort.Slice(scores, func(i, j int) bool { return scores[i].Dataset < scores[j].Dataset })

		ms := ModelScore{Model: model, Datasets: scores, Tokens: tokens[model]}
		ms.Overall.Dataset = "overall"
		for _, s := range scores {
			ms.Overall.Attempted += s.Attempted
			ms.Overall.Correct += s.Correct
			ms.Overall.CacheHits += s.CacheHits
			ms.Overall.Failed += s.Failed
			ms.Overall.DataFaults += s.DataFaults
		}
		if ms.Overall.Attempted > 0 {
			ms.Overall.Accuracy = float64(ms.Overall.Correct) / float64(ms.Overall.Attempted)
		}
		out = append(out, ms)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}
