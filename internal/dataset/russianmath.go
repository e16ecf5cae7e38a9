package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

const defaultRussianMathPath = "data/russianmath"

// RussianMath loads Russian-language competition math problems with
// symbolic or numeric reference answers.
type RussianMath struct{}

type mathRow struct {
	ID      string `json:"id,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
	Task    string `json:"task"`
	Answer  string `json:"answer"`
	Gold    string `json:"gold,omitempty"`
	Subject string `json:"subject,omitempty"`
}

func (d *RussianMath) Name() string { return "russianmath" }

func (d *RussianMath) Kind() Kind { return KindSymbolic }

func (d *RussianMath) Load(ctx context.Context) ([]Example, error) {
	if ctx == nil {
		return nil, errors.New("russianmath: nil context")
	}

	path := strings.TrimSpace(os.Getenv("DEATHMATH_RUSSIANMATH_PATH"))
	if path == "" {
		path = defaultRussianMathPath
	}

	rows, err := readJSONL[mathRow](ctx, path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultRussianMathSample(), nil
		}
		return nil, fmt.Errorf("russianmath: load %q: %w", path, err)
	}

	out := make([]Example, 0, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		task := strings.TrimSpace(row.Task)
		if task == "" {
			continue
		}

		id := strings.TrimSpace(row.ID)
		if id == "" {
			id = strings.TrimSpace(row.TaskID)
		}
		if id == "" {
			id = fmt.Sprintf("russianmath-%d", i+1)
		}

		out = append(out, Example{
			Dataset:   d.Name(),
			ID:        id,
			Statement: task,
			Answer:    strings.TrimSpace(row.Answer),
			Canonical: strings.TrimSpace(row.Gold),
			Subject:   strings.TrimSpace(row.Subject),
		})
	}

	if len(out) == 0 {
		return defaultRussianMathSample(), nil
	}
	return out, nil
}

func defaultRussianMathSample() []Example {
	return []Example{
		{
			Dataset:   "russianmath",
			ID:        "russianmath-sample-1",
			Subject:   "algebra",
			Statement: "Решите уравнение 2x + 6 = 14. В ответе укажите x.",
			Answer:    "4",
		},
		{
			Dataset:   "russianmath",
			ID:        "russianmath-sample-2",
			Subject:   "arithmetic",
			Statement: "Вычислите 1/2 + 1/3. Ответ запишите обыкновенной дробью.",
			Answer:    "5/6",
		},
		{
			Dataset:   "russianmath",
			ID:        "russianmath-sample-3",
			Subject:   "geometry",
			Statement: "Найдите площадь прямоугольника со сторонами 7 и 12.",
			Answer:    "84",
		},
	}
}
