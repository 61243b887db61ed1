package aggregates

// Contract names an aggregate and the tables it alone writes. Table repos may still read
// those tables, and services must not mutate them directly.
type Contract struct {
	Name string
	// Tables are the tables the aggregate inserts into, updates or deletes from.
	Tables []string
	// ReplaysConflicts means version conflicts are retried inside the aggregate and only
	// an exhausted retry budget reaches the caller.
	ReplaysConflicts bool
	Notes            string
}

// Aggregate is implemented by every write boundary.
type Aggregate interface {
	Contract() Contract
}

func (c Contract) Writes(table string) bool {
	for _, t := range c.Tables {
		if t == table {
			return true
		}
	}
	return false
}
