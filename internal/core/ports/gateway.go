package ports

import "context"

// Row is a single record keyed by storage column name.
type Row = map[string]any

// Table names the remote relations this application is allowed to touch.
type Table string

const (
	TableUsers    Table = "users"
	TableServices Table = "services"
	TableBookings Table = "bookings"
)

// Known reports whether t belongs to the fixed table set.
func (t Table) Known() bool {
	switch t {
	case TableUsers, TableServices, TableBookings:
		return true
	}
	return false
}

// FilterOp is a row predicate understood by the remote store.
type FilterOp string

const (
	OpEq       FilterOp = "eq"
	OpILike    FilterOp = "ilike"
	OpContains FilterOp = "cs"
	OpGte      FilterOp = "gte"
)

// Filter restricts a query on one column. Contains uses Values; every other op uses Value.
type Filter struct {
	Column string
	Op     FilterOp
	Value  string
	Values []string
}

func Eq(column, value string) Filter { return Filter{Column: column, Op: OpEq, Value: value} }
func ILike(column, pattern string) Filter { return Filter{Column: column, Op: OpILike, Value: pattern} }
func Gte(column, value string) Filter { return Filter{Column: column, Op: OpGte, Value: value} }
func Contains(column string, values ...string) Filter {
	return Filter{Column: column, Op: OpContains, Values: values}
}

// Order is a single order-by clause.
type Order struct {
	Column     string
	Descending bool
}

func Asc(column string) Order { return Order{Column: column} }
func Desc(column string) Order { return Order{Column: column, Descending: true} }

// Query describes a filtered, sorted, limited read. Zero Limit means no limit;
// empty Columns selects every column.
type Query struct {
	Columns string
	Filters []Filter
	Order   []Order
	Limit   int
}

// Gateway is the thin client over the remote relational store. Every failure
// is returned as a *domain.StoreError tagged with ErrConnectionFailure,
// ErrConstraintViolation, ErrNotFound or ErrUnknown.
type Gateway interface {
	Insert(ctx context.Context, table Table, record Row) (Row, error)
	Select(ctx context.Context, table Table, q Query) ([]Row, error)
	// Fetch returns the row with the given id, or ErrNotFound.
	Fetch(ctx context.Context, table Table, id string) (Row, error)
	// Update patches the row with the given id and returns it, or ErrNotFound.
	Update(ctx context.Context, table Table, id string, patch Row) (Row, error)
	Count(ctx context.Context, table Table, filters ...Filter) (int64, error)
	// Ping issues the cheapest possible read to prove the store is reachable.
	Ping(ctx context.Context) error
}
