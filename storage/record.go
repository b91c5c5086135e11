// Package storage implements the persistence gateway over named collections.
// Records are schemaless maps; equality filters compare values in textual form.
package storage

import (
	"chat-relay/contract"
	apperrors "chat-relay/errors"
	"fmt"
	"maps"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
)

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func checkCollection(collection string) error {
	if !identifier.MatchString(collection) {
		return fmt.Errorf("%w: invalid collection name %q", apperrors.ErrDataAccess, collection)
	}
	return nil
}

func checkFilters(filters []contract.Filter) error {
	for _, f := range filters {
		if !identifier.MatchString(f.Field) {
			return fmt.Errorf("%w: invalid filter field %q", apperrors.ErrDataAccess, f.Field)
		}
	}
	return nil
}

// prepareInsert copies the record and fills id and created_at when missing.
func prepareInsert(record contract.Record, now time.Time) contract.Record {
	out := make(contract.Record, len(record)+2)
	maps.Copy(out, record)
	if Text(out[FieldID]) == "" {
		out[FieldID] = uuid.NewString()
	}
	if Text(out[FieldCreatedAt]) == "" {
		out[FieldCreatedAt] = now.UTC().Format(time.RFC3339Nano)
	}
	return out
}

// merge applies a partial record. The id of a record never changes.
func merge(record, patch contract.Record) contract.Record {
	out := make(contract.Record, len(record)+len(patch))
	maps.Copy(out, record)
	for k, v := range patch {
		if k == FieldID {
			continue
		}
		out[k] = v
	}
	return out
}

func matches(record contract.Record, filters []contract.Filter) bool {
	for _, f := range filters {
		v, ok := record[f.Field]
		if !ok || Text(v) != f.Value {
			return false
		}
	}
	return true
}

// Text renders a record value the way filters compare it.
func Text(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case bool:
		return strconv.FormatBool(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(value), 'f', -1, 32)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case int32:
		return strconv.FormatInt(int64(value), 10)
	case fmt.Stringer:
		return value.String()
	default:
		return fmt.Sprint(value)
	}
}

// normalize converts values to the types a JSON or protobuf round trip yields,
// so a record reads back the same whatever backend stored it.
func normalize(record contract.Record) contract.Record {
	out := make(contract.Record, len(record))
	for k, v := range record {
		switch value := v.(type) {
		case int:
			out[k] = float64(value)
		case int32:
			out[k] = float64(value)
		case int64:
			out[k] = float64(value)
		case float32:
			out[k] = float64(value)
		case fmt.Stringer:
			out[k] = value.String()
		default:
			out[k] = value
		}
	}
	return out
}
