package store

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// normalize 通过 BSON 编解码把 Go 值统一成存储中的类型，例如 int 变成 int32，time.Time 变成 DateTime
func normalize(m bson.M) (bson.M, error) {
	if len(m) == 0 {
		return bson.M{}, nil
	}
	data, err := bson.Marshal(m)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidCondition, "marshal condition failed: %v", err)
	}
	var result bson.M
	if err := bson.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrapf(ErrInvalidCondition, "unmarshal condition failed: %v", err)
	}
	return result, nil
}

// matchFilter 判断文档是否匹配过滤条件，filter 需要先经过 normalize
func matchFilter(doc any, filter bson.M) (bool, error) {
	for key, cond := range filter {
		var (
			ok  bool
			err error
		)
		switch key {
		case "$and":
			ok, err = matchLogical(doc, cond, func(results []bool) bool {
				for _, r := range results {
					if !r {
						return false
					}
				}
				return true
			})
		case "$or":
			ok, err = matchLogical(doc, cond, func(results []bool) bool {
				for _, r := range results {
					if r {
						return true
					}
				}
				return false
			})
		case "$nor":
			ok, err = matchLogical(doc, cond, func(results []bool) bool {
				for _, r := range results {
					if r {
						return false
					}
				}
				return true
			})
		default:
			if strings.HasPrefix(key, "$") {
				return false, errors.Wrapf(ErrInvalidCondition, "unsupported operator %s", key)
			}
			ok, err = matchField(lookupPath(doc, strings.Split(key, ".")), cond)
		}
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchLogical(doc any, cond any, combine func([]bool) bool) (bool, error) {
	items := arrayOf(cond)
	if len(items) == 0 {
		return false, errors.Wrap(ErrInvalidCondition, "logical operator requires a non-empty array")
	}
	results := make([]bool, 0, len(items))
	for _, item := range items {
		sub, ok := asM(item)
		if !ok {
			return false, errors.Wrapf(ErrInvalidCondition, "logical operator element must be a document, got %T", item)
		}
		r, err := matchFilter(doc, sub)
		if err != nil {
			return false, err
		}
		results = append(results, r)
	}
	return combine(results), nil
}

func asM(v any) (bson.M, bool) {
	switch d := v.(type) {
	case bson.M:
		return d, true
	case map[string]any:
		return d, true
	case bson.D:
		m := make(bson.M, len(d))
		for _, e := range d {
			m[e.Key] = e.Value
		}
		return m, true
	}
	return nil, false
}

func isOperatorDoc(cond any) (bson.M, bool) {
	m, ok := asM(cond)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

// lookupPath 按路径取值，遇到数组时对其中的文档展开，返回全部候选值
func lookupPath(value any, path []string) []any {
	if len(path) == 0 {
		return []any{value}
	}

	if doc := documentOf(value); doc != nil || rank(value) == rankDocument {
		for _, e := range doc {
			if e.Key == path[0] {
				return lookupPath(e.Value, path[1:])
			}
		}
		return nil
	}

	if items := arrayOf(value); items != nil {
		var result []any
		if idx, err := strconv.Atoi(path[0]); err == nil {
			if idx >= 0 && idx < len(items) {
				result = append(result, lookupPath(items[idx], path[1:])...)
			}
		}
		for _, item := range items {
			if rank(item) == rankDocument {
				result = append(result, lookupPath(item, path)...)
			}
		}
		return result
	}
	return nil
}

// expand 把数组候选值展开为数组本身和它的元素
func expand(values []any) []any {
	result := make([]any, 0, len(values))
	for _, v := range values {
		result = append(result, v)
		if items := arrayOf(v); items != nil {
			result = append(result, items...)
		}
	}
	return result
}

func matchEqual(values []any, cond any) bool {
	if cond == nil && len(values) == 0 {
		return true
	}
	for _, v := range expand(values) {
		if equalValues(v, cond) {
			return true
		}
	}
	return false
}

func matchCompare(values []any, cond any, accept func(int) bool) bool {
	for _, v := range expand(values) {
		if rank(v) == rank(cond) && accept(compareValues(v, cond)) {
			return true
		}
	}
	return false
}

func matchIn(values []any, cond any) (bool, error) {
	items := arrayOf(cond)
	if items == nil {
		return false, errors.Wrapf(ErrInvalidCondition, "$in/$nin requires an array, got %T", cond)
	}
	for _, item := range items {
		if matchEqual(values, item) {
			return true, nil
		}
	}
	return false, nil
}

func matchField(values []any, cond any) (bool, error) {
	ops, ok := isOperatorDoc(cond)
	if !ok {
		return matchEqual(values, cond), nil
	}

	for op, arg := range ops {
		var matched bool
		switch op {
		case "$eq":
			matched = matchEqual(values, arg)
		case "$ne":
			matched = !matchEqual(values, arg)
		case "$gt":
			matched = matchCompare(values, arg, func(c int) bool { return c > 0 })
		case "$gte":
			matched = matchCompare(values, arg, func(c int) bool { return c >= 0 })
		case "$lt":
			matched = matchCompare(values, arg, func(c int) bool { return c < 0 })
		case "$lte":
			matched = matchCompare(values, arg, func(c int) bool { return c <= 0 })
		case "$in":
			in, err := matchIn(values, arg)
			if err != nil {
				return false, err
			}
			matched = in
		case "$nin":
			in, err := matchIn(values, arg)
			if err != nil {
				return false, err
			}
			matched = !in
		case "$exists":
			want, ok := arg.(bool)
			if !ok {
				n, isNum := toFloat(arg)
				if !isNum {
					return false, errors.Wrapf(ErrInvalidCondition, "$exists requires a boolean, got %T", arg)
				}
				want = n != 0
			}
			matched = (len(values) > 0) == want
		default:
			return false, errors.Wrapf(ErrInvalidCondition, "unsupported operator %s", op)
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}
