package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Result is the outcome of one item in a batch.
type Result[T any] struct {
	ID    string
	Value T
	Err   error
}

// OK reports whether the item succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// Process calls fn for each id in order and collects the results. Items are
// processed sequentially; once ctx is done the remaining items fail with the
// context error without calling fn.
func Process[T any](ctx context.Context, ids []string, fn func(ctx context.Context, id string) (T, error)) []Result[T] {
	results := make([]Result[T], 0, len(ids))
	for _, id := range ids {
		r := Result[T]{ID: id}
		if err := ctx.Err(); err != nil {
			r.Err = err
		} else {
			r.Value, r.Err = fn(ctx, id)
		}
		results = append(results, r)
	}
	return results
}

// Split partitions results into successes and failures, preserving order.
func Split[T any](results []Result[T]) (successes, failures []Result[T]) {
	for _, r := range results {
		if r.OK() {
			successes = append(successes, r)
		} else {
			failures = append(failures, r)
		}
	}
	return successes, failures
}

// ParseStringOrArray parses a parameter that can be either a single string or
// an array of strings. A string holding a JSON array of strings is accepted
// as that array, since some MCP clients stringify list arguments.
func ParseStringOrArray(param any, paramName string) ([]string, error) {
	if param == nil {
		return nil, fmt.Errorf("%s is required", paramName)
	}

	var result []string

	switch v := param.(type) {
	case string:
		if v == "" {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		if strings.HasPrefix(strings.TrimSpace(v), "[") {
			var list []string
			if err := json.Unmarshal([]byte(v), &list); err == nil {
				return ParseStringOrArray(list, paramName)
			}
		}
		result = []string{v}
	case []string:
		if len(v) == 0 {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		for i, s := range v {
			if s == "" {
				return nil, fmt.Errorf("%s[%d] cannot be empty", paramName, i)
			}
		}
		result = v
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string", paramName, i)
			}
			if str == "" {
				return nil, fmt.Errorf("%s[%d] cannot be empty", paramName, i)
			}
			result = append(result, str)
		}
	default:
		return nil, fmt.Errorf("%s must be a string or array of strings", paramName)
	}

	return result, nil
}
