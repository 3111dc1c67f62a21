package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/servipro/booking-api/internal/core/domain"
	"github.com/servipro/booking-api/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory gateway
// ---------------------------------------------------------------------------

// fakeGateway evaluates queries against in-memory tables and enforces the
// same constraints as the remote store: unique users.email and the
// bookings foreign keys.
type fakeGateway struct {
	mu      sync.Mutex
	tables  map[ports.Table][]ports.Row
	seq     int
	calls   []string
	queries []ports.Query

	// Optional failure hooks, keyed by the operation they intercept.
	insertErr func(table ports.Table) error
	selectErr func(table ports.Table) error
	countErr  func(table ports.Table, filters []ports.Filter) error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{tables: make(map[ports.Table][]ports.Row)}
}

// seed stores rows as-is, round-tripped through JSON like real responses.
func (g *fakeGateway) seed(table ports.Table, rows ...ports.Row) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range rows {
		g.tables[table] = append(g.tables[table], jsonRow(r))
	}
}

func (g *fakeGateway) callCount(call string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (g *fakeGateway) rows(table ports.Table) []ports.Row {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ports.Row(nil), g.tables[table]...)
}

func (g *fakeGateway) lastQuery() ports.Query {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queries[len(g.queries)-1]
}

func (g *fakeGateway) Insert(_ context.Context, table ports.Table, record ports.Row) (ports.Row, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "insert:"+string(table))
	if g.insertErr != nil {
		if err := g.insertErr(table); err != nil {
			return nil, err
		}
	}

	row := jsonRow(record)
	switch table {
	case ports.TableUsers:
		for _, existing := range g.tables[table] {
			if existing["email"] == row["email"] {
				return nil, &domain.StoreError{
					Kind:       domain.ErrConstraintViolation,
					Code:       domain.CodeUniqueViolation,
					Constraint: "users_email_key",
					Message:    "duplicate key value violates unique constraint \"users_email_key\"",
				}
			}
		}
	case ports.TableBookings:
		if !g.exists(ports.TableUsers, row["client_id"]) {
			return nil, fkViolation("bookings_client_id_fkey")
		}
		if !g.exists(ports.TableServices, row["service_id"]) {
			return nil, fkViolation("bookings_service_id_fkey")
		}
	}

	g.seq++
	row["id"] = fmt.Sprintf("%s-%d", table, g.seq)
	if _, ok := row["created_at"]; !ok {
		row["created_at"] = time.Date(2024, 1, 1, 0, 0, g.seq, 0, time.UTC).Format(time.RFC3339)
	}
	g.tables[table] = append(g.tables[table], row)
	return copyRow(row), nil
}

func (g *fakeGateway) exists(table ports.Table, id any) bool {
	for _, r := range g.tables[table] {
		if r["id"] == id {
			return true
		}
	}
	return false
}

func fkViolation(constraint string) error {
	return &domain.StoreError{
		Kind:       domain.ErrConstraintViolation,
		Code:       domain.CodeForeignKeyViolation,
		Constraint: constraint,
		Message:    "insert or update violates foreign key constraint \"" + constraint + "\"",
	}
}

func (g *fakeGateway) Select(_ context.Context, table ports.Table, q ports.Query) ([]ports.Row, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "select:"+string(table))
	g.queries = append(g.queries, q)
	if g.selectErr != nil {
		if err := g.selectErr(table); err != nil {
			return nil, err
		}
	}

	var out []ports.Row
	for _, r := range g.tables[table] {
		if matchesAll(r, q.Filters) {
			out = append(out, copyRow(r))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		for _, o := range q.Order {
			c := compareValues(out[i][o.Column], out[j][o.Column])
			if c == 0 {
				continue
			}
			if o.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (g *fakeGateway) Fetch(_ context.Context, table ports.Table, id string) (ports.Row, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "fetch:"+string(table))
	for _, r := range g.tables[table] {
		if r["id"] == id {
			return copyRow(r), nil
		}
	}
	return nil, &domain.StoreError{Kind: domain.ErrNotFound, Code: domain.CodeNoRows}
}

func (g *fakeGateway) Update(_ context.Context, table ports.Table, id string, patch ports.Row) (ports.Row, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "update:"+string(table))
	for _, r := range g.tables[table] {
		if r["id"] == id {
			for k, v := range jsonRow(patch) {
				r[k] = v
			}
			return copyRow(r), nil
		}
	}
	return nil, &domain.StoreError{Kind: domain.ErrNotFound, Code: domain.CodeNoRows}
}

func (g *fakeGateway) Count(_ context.Context, table ports.Table, filters ...ports.Filter) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "count:"+string(table))
	if g.countErr != nil {
		if err := g.countErr(table, filters); err != nil {
			return 0, err
		}
	}
	var n int64
	for _, r := range g.tables[table] {
		if matchesAll(r, filters) {
			n++
		}
	}
	return n, nil
}

func (g *fakeGateway) Ping(context.Context) error { return nil }

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func jsonRow(r ports.Row) ports.Row {
	raw, err := json.Marshal(r)
	if err != nil {
		panic(err)
	}
	out := ports.Row{}
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	return out
}

func copyRow(r ports.Row) ports.Row {
	out := make(ports.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func matchesAll(r ports.Row, filters []ports.Filter) bool {
	for _, f := range filters {
		if !matches(r, f) {
			return false
		}
	}
	return true
}

func matches(r ports.Row, f ports.Filter) bool {
	v, ok := r[f.Column]
	if !ok || v == nil {
		return false
	}
	switch f.Op {
	case ports.OpEq:
		return fmt.Sprint(v) == f.Value
	case ports.OpILike:
		needle := strings.ToLower(strings.Trim(f.Value, "%"))
		return strings.Contains(strings.ToLower(fmt.Sprint(v)), needle)
	case ports.OpContains:
		list, _ := v.([]any)
		for _, want := range f.Values {
			found := false
			for _, have := range list {
				if fmt.Sprint(have) == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	case ports.OpGte:
		s, ok := v.(string)
		return ok && s >= f.Value
	}
	return false
}

func compareValues(a, b any) int {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
