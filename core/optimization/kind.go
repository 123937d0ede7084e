package optimization

import "fmt"

// Kind selects the problem variant to formulate.
type Kind int

const (
	KindOperation Kind = iota
	KindStoragePlanning
	KindStoragePlanningBaseline
	KindLoadReduction
	KindPriceSensitivity
	KindMaximumLoad
	KindMinimumLoad
)

var kindNames = map[Kind]string{
	KindOperation:               "operation",
	KindStoragePlanning:         "storage_planning",
	KindStoragePlanningBaseline: "storage_planning_baseline",
	KindLoadReduction:           "load_reduction",
	KindPriceSensitivity:        "price_sensitivity",
	KindMaximumLoad:             "maximum_load",
	KindMinimumLoad:             "minimum_load",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a snake_case problem type name to its Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown problem type %q", ErrInvalidParameter, name)
}

// Kinds lists every problem kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindOperation,
		KindStoragePlanning,
		KindStoragePlanningBaseline,
		KindLoadReduction,
		KindPriceSensitivity,
		KindMaximumLoad,
		KindMinimumLoad,
	}
}

func (k Kind) planning() bool {
	return k == KindStoragePlanning || k == KindStoragePlanningBaseline
}
