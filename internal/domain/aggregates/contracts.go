package aggregates

import "fmt"

// TxOwnership says who opens the transaction around an aggregate write.
type TxOwnership string

const (
	TxOwnedByAggregate TxOwnership = "aggregate"
	TxOwnedByCaller    TxOwnership = "caller"
)

// ReadPolicy says where reports and scans over the aggregate's rows are served from.
type ReadPolicy string

const (
	// ReadsThroughAggregate routes scans and grouped counts through the aggregate itself.
	ReadsThroughAggregate ReadPolicy = "aggregate"
	// ReadsThroughRepos leaves read models to table repos.
	ReadsThroughRepos ReadPolicy = "repos"
)

// Contract is the declared policy of one aggregate.
type Contract struct {
	Name        string
	TxOwnership TxOwnership
	ReadPolicy  ReadPolicy
	// NaturalKey lists the columns that identify at most one row, in index order.
	NaturalKey []string
	Notes      string
}

type Aggregate interface {
	Contract() Contract
}

func (c Contract) OwnsWriteTx() bool { return c.TxOwnership == TxOwnedByAggregate }

func (c Contract) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("contract name is required")
	}
	switch c.TxOwnership {
	case TxOwnedByAggregate, TxOwnedByCaller:
	default:
		return fmt.Errorf("%s: unknown tx ownership %q", c.Name, c.TxOwnership)
	}
	switch c.ReadPolicy {
	case ReadsThroughAggregate, ReadsThroughRepos:
	default:
		return fmt.Errorf("%s: unknown read policy %q", c.Name, c.ReadPolicy)
	}
	seen := make(map[string]struct{}, len(c.NaturalKey))
	for _, col := range c.NaturalKey {
		if col == "" {
			return fmt.Errorf("%s: empty natural key column", c.Name)
		}
		if _, dup := seen[col]; dup {
			return fmt.Errorf("%s: duplicate natural key column %q", c.Name, col)
		}
		seen[col] = struct{}{}
	}
	return nil
}
