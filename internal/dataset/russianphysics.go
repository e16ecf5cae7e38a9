package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

const defaultRussianPhysicsPath = "data/russianphysics"

// RussianPhysics loads Russian-language physics problems with numeric
// reference answers (units live in the statement, not the answer).
type RussianPhysics struct{}

type physicsRow struct {
	ID      string `json:"id,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
	Task    string `json:"task"`
	Answer  string `json:"answer"`
	Subject string `json:"subject,omitempty"`
}

func (d *RussianPhysics) Name() string { return "russianphysics" }

func (d *RussianPhysics) Kind() Kind { return KindNumeric }

func (d *RussianPhysics) Load(ctx context.Context) ([]Example, error) {
	if ctx == nil {
		return nil, errors.New("russianphysics: nil context")
	}

	path := strings.TrimSpace(os.Getenv("DEATHMATH_RUSSIANPHYSICS_PATH"))
	if path == "" {
		path = defaultRussianPhysicsPath
	}

	rows, err := readJSONL[physicsRow](ctx, path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultRussianPhysicsSample(), nil
		}
		return nil, fmt.Errorf("russianphysics: load %q: %w", path, err)
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
			id = fmt.Sprintf("russianphysics-%d", i+1)
		}

		out = append(out, Example{
			Dataset:   d.Name(),
			ID:        id,
			Statement: task,
			Answer:    strings.TrimSpace(row.Answer),
			Subject:   strings.TrimSpace(row.Subject),
		})
	}

	if len(out) == 0 {
		return defaultRussianPhysicsSample(), nil
	}
	return out, nil
}

func defaultRussianPhysicsSample() []Example {
	return []Example{
		{
			Dataset:   "russianphysics",
			ID:        "russianphysics-sample-1",
			Subject:   "kinematics",
			Statement: "Тело движется равномерно со скоростью 5 м/с. Какой путь оно пройдёт за 8 с? Ответ дайте в метрах.",
			Answer:    "40",
		},
		{
			Dataset:   "russianphysics",
			ID:        "russianphysics-sample-2",
			Subject:   "dynamics",
			Statement: "На тело массой 2 кг действует сила 10 Н. Найдите ускорение тела в м/с².",
			Answer:    "5",
		},
	}
}
