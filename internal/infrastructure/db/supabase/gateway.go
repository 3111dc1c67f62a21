// Package supabase implements the remote data gateway over a hosted PostgREST
// endpoint. Every round trip runs through a circuit breaker and a tracing span,
// and every failure is classified into a *domain.StoreError.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/supabase-community/postgrest-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/servipro/booking-api/internal/api/metrics"
	"github.com/servipro/booking-api/internal/core/domain"
	"github.com/servipro/booking-api/internal/core/ports"
)

const (
	defaultBreakerFailures = 3
	defaultBreakerTimeout  = 10 * time.Second
	returnRepresentation   = "representation"
	countExact             = "exact"
)

// TableSource starts a query on a table. Both *supabase.Client and
// *postgrest.Client satisfy it.
type TableSource interface {
	From(table string) *postgrest.QueryBuilder
}

// BreakerSettings tunes the circuit breaker around the store.
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker once that many connection failures happen in a row.
	ConsecutiveFailures uint32
	// Timeout is how long the breaker stays open before letting a trial request through.
	Timeout time.Duration
}

// Gateway implements ports.Gateway.
type Gateway struct {
	source TableSource
	cb     *gobreaker.CircuitBreaker
	tracer trace.Tracer
	log    zerolog.Logger
}

func NewGateway(source TableSource, settings BreakerSettings, tracer trace.Tracer, log zerolog.Logger) *Gateway {
	return &Gateway{
		source: source,
		cb:     newBreaker("supabase", settings, log),
		tracer: tracer,
		log:    log,
	}
}

func newBreaker(name string, s BreakerSettings, log zerolog.Logger) *gobreaker.CircuitBreaker {
	failures := s.ConsecutiveFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultBreakerTimeout
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
		// Constraint violations and missing rows are answers, not outages.
		IsSuccessful: func(err error) bool {
			return err == nil || !isOutage(err)
		},
	})
}

// roundTrip runs fn inside a span and the breaker, then classifies the outcome.
func (g *Gateway) roundTrip(ctx context.Context, table ports.Table, op string, fn func() ([]byte, int64, error)) ([]byte, int64, error) {
	ctx, span := g.tracer.Start(ctx, "Gateway."+op, trace.WithAttributes(
		attribute.String("db.system", "postgrest"),
		attribute.String("db.sql.table", string(table)),
		attribute.String("db.operation", op),
	))
	defer span.End()
	start := time.Now()

	body, count, err := g.execute(ctx, table, fn)

	metrics.GatewayRequestDuration.WithLabelValues(string(table), op).Observe(time.Since(start).Seconds())
	result := "ok"
	if err != nil {
		result = domain.Kind(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		g.log.Debug().Err(err).Str("table", string(table)).Str("op", op).Str("error_kind", result).Msg("store round trip failed")
	}
	metrics.GatewayRequestsTotal.WithLabelValues(string(table), op, result).Inc()
	return body, count, err
}

func (g *Gateway) execute(ctx context.Context, table ports.Table, fn func() ([]byte, int64, error)) ([]byte, int64, error) {
	if !table.Known() {
		return nil, 0, &domain.StoreError{Kind: domain.ErrUnknown, Message: fmt.Sprintf("unknown table %q", table)}
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, classify(err)
	}
	type reply struct {
		body  []byte
		count int64
	}
	out, err := g.cb.Execute(func() (interface{}, error) {
		body, count, err := fn()
		if err != nil {
			return nil, err
		}
		return reply{body: body, count: count}, nil
	})
	if err != nil {
		return nil, 0, classify(err)
	}
	r := out.(reply)
	return r.body, r.count, nil
}

func (g *Gateway) Insert(ctx context.Context, table ports.Table, record ports.Row) (ports.Row, error) {
	body, _, err := g.roundTrip(ctx, table, "insert", func() ([]byte, int64, error) {
		return g.source.From(string(table)).
			Insert(record, false, "", returnRepresentation, "").
			Single().
			Execute()
	})
	if err != nil {
		return nil, err
	}
	return decodeObject(body)
}

func (g *Gateway) Select(ctx context.Context, table ports.Table, q ports.Query) ([]ports.Row, error) {
	columns := q.Columns
	if columns == "" {
		columns = "*"
	}
	body, _, err := g.roundTrip(ctx, table, "select", func() ([]byte, int64, error) {
		fb := applyFilters(g.source.From(string(table)).Select(columns, "", false), q.Filters)
		for _, o := range q.Order {
			fb = fb.Order(o.Column, &postgrest.OrderOpts{Ascending: !o.Descending})
		}
		if q.Limit > 0 {
			fb = fb.Limit(q.Limit, "")
		}
		return fb.Execute()
	})
	if err != nil {
		return nil, err
	}
	return decodeArray(body)
}

func (g *Gateway) Fetch(ctx context.Context, table ports.Table, id string) (ports.Row, error) {
	body, _, err := g.roundTrip(ctx, table, "fetch", func() ([]byte, int64, error) {
		return g.source.From(string(table)).
			Select("*", "", false).
			Eq("id", id).
			Single().
			Execute()
	})
	if err != nil {
		return nil, err
	}
	return decodeObject(body)
}

func (g *Gateway) Update(ctx context.Context, table ports.Table, id string, patch ports.Row) (ports.Row, error) {
	body, _, err := g.roundTrip(ctx, table, "update", func() ([]byte, int64, error) {
		return g.source.From(string(table)).
			Update(patch, returnRepresentation, "").
			Eq("id", id).
			Single().
			Execute()
	})
	if err != nil {
		return nil, err
	}
	return decodeObject(body)
}

// Count issues a head request and reads the exact total from Content-Range.
func (g *Gateway) Count(ctx context.Context, table ports.Table, filters ...ports.Filter) (int64, error) {
	_, count, err := g.roundTrip(ctx, table, "count", func() ([]byte, int64, error) {
		fb := g.source.From(string(table)).Select("*", countExact, true)
		return applyFilters(fb, filters).Execute()
	})
	return count, err
}

// Ping reads a single service id.
func (g *Gateway) Ping(ctx context.Context) error {
	_, _, err := g.roundTrip(ctx, ports.TableServices, "ping", func() ([]byte, int64, error) {
		return g.source.From(string(ports.TableServices)).
			Select("id", "", false).
			Limit(1, "").
			Execute()
	})
	return err
}

func applyFilters(fb *postgrest.FilterBuilder, filters []ports.Filter) *postgrest.FilterBuilder {
	for _, f := range filters {
		switch f.Op {
		case ports.OpEq:
			fb = fb.Eq(f.Column, f.Value)
		case ports.OpILike:
			fb = fb.Ilike(f.Column, f.Value)
		case ports.OpGte:
			fb = fb.Gte(f.Column, f.Value)
		case ports.OpContains:
			fb = fb.Contains(f.Column, f.Values)
		}
	}
	return fb
}

func decodeObject(body []byte) (ports.Row, error) {
	var row ports.Row
	if err := json.Unmarshal(body, &row); err != nil {
		return nil, &domain.StoreError{Kind: domain.ErrUnknown, Message: "decode response: " + err.Error()}
	}
	if row == nil {
		return nil, &domain.StoreError{Kind: domain.ErrNotFound, Message: "empty response"}
	}
	return row, nil
}

func decodeArray(body []byte) ([]ports.Row, error) {
	rows := []ports.Row{}
	if len(body) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &domain.StoreError{Kind: domain.ErrUnknown, Message: "decode response: " + err.Error()}
	}
	return rows, nil
}
