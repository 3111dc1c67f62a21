package service

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/servipro/booking-api/internal/core/domain"
	"github.com/servipro/booking-api/internal/core/ports"
)

// storeTimeLayouts are the timestamp shapes PostgREST emits for timestamptz and
// timestamp columns.
var storeTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02",
}

func stringToTimeHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	s := data.(string)
	for _, layout := range storeTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return nil, fmt.Errorf("unrecognised timestamp %q", s)
}

// decodeRow copies a store row into out, matching columns on json tags.
func decodeRow(row ports.Row, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       stringToTimeHook,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(row); err != nil {
		return &domain.StoreError{Kind: domain.ErrUnknown, Message: "decode row: " + err.Error()}
	}
	return nil
}

func decodeRows[T any](rows []ports.Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		var v T
		if err := decodeRow(row, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// translate tags a gateway failure with the domain error it represents and
// prefixes op, keeping the store cause reachable through errors.As.
func translate(op string, err error) error {
	switch {
	case domain.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrDuplicateEntity, err)
	case domain.IsForeignKeyViolation(err):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrBrokenReference, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// optional returns nil for blank text so the store keeps the column NULL.
func optional(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}
