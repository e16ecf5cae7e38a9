package dataset

import "context"

// Kind describes how a dataset's reference answers are compared.
type Kind string

const (
	KindNumeric  Kind = "numeric"
	KindSymbolic Kind = "symbolic"
	KindChoice   Kind = "choice"
)

// Example is one problem from a dataset. Immutable after load.
type Example struct {
	Dataset   string
	ID        string
	Statement string
	Answer    string
	// Canonical is a pre-normalized form of Answer for symbolic datasets;
	// empty when the raw answer is already canonical.
	Canonical string
	Subject   string
	Choices   []string
}

// Dataset yields an ordered sequence of examples.
type Dataset interface {
	Name() string
	Kind() Kind
	Load(ctx context.Context) ([]Example, error)
}

// ByName returns the named dataset, or false for an unknown name.
func ByName(name string) (Dataset, bool) {
	switch name {
	case "russianmath", "math":
		return &RussianMath{}, true
	case "russianphysics", "physics":
		return &RussianPhysics{}, true
	default:
		return nil, false
	}
}

// All returns every built-in dataset in evaluation order.
func All() []Dataset {
	return []Dataset{&RussianMath{}, &RussianPhysics{}}
}
