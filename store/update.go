package store

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

func hasOperator(update bson.M) bool {
	for k := range update {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

func sortedKeys(m bson.M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// applyUpdate 在文档副本上执行更新，支持整体替换和 $set/$unset/$inc
func applyUpdate(doc bson.D, update bson.M) (bson.D, error) {
	if !hasOperator(update) {
		result := bson.D{}
		if id := IDOf(doc); id != nil {
			result = append(result, bson.E{Key: "_id", Value: id})
		}
		for _, k := range sortedKeys(update) {
			if k == "_id" {
				if !equalValues(update[k], IDOf(doc)) {
					return nil, errors.Wrap(ErrInvalidCondition, "replacement cannot change _id")
				}
				continue
			}
			result = append(result, bson.E{Key: k, Value: update[k]})
		}
		return result, nil
	}

	var current any = cloneDocument(doc)
	for _, op := range sortedKeys(update) {
		fields, ok := asM(update[op])
		if !ok {
			return nil, errors.Wrapf(ErrInvalidCondition, "%s requires a document, got %T", op, update[op])
		}
		for _, field := range sortedKeys(fields) {
			if field == "_id" || strings.HasPrefix(field, "_id.") {
				return nil, errors.Wrap(ErrInvalidCondition, "cannot update _id")
			}
			path := strings.Split(field, ".")
			var err error
			switch op {
			case "$set":
				current, err = setPath(current, path, fields[field])
			case "$unset":
				current = unsetPath(current, path)
			case "$inc":
				var base any
				if values := lookupExact(current, path); values != nil {
					base = values[0]
				}
				var sum any
				sum, err = addNumbers(base, fields[field])
				if err == nil {
					current, err = setPath(current, path, sum)
				}
			default:
				if !strings.HasPrefix(op, "$") {
					return nil, errors.Wrapf(ErrInvalidCondition, "cannot mix field %s with update operators", op)
				}
				return nil, errors.Wrapf(ErrInvalidCondition, "unsupported update operator %s", op)
			}
			if err != nil {
				return nil, err
			}
		}
	}
	return current.(bson.D), nil
}

func cloneDocument(doc bson.D) bson.D {
	result := make(bson.D, len(doc))
	copy(result, doc)
	return result
}

// lookupExact 按路径取值，不展开数组
func lookupExact(value any, path []string) []any {
	if len(path) == 0 {
		return []any{value}
	}
	if doc := documentOf(value); doc != nil {
		for _, e := range doc {
			if e.Key == path[0] {
				return lookupExact(e.Value, path[1:])
			}
		}
		return nil
	}
	if items := arrayOf(value); items != nil {
		idx, err := strconv.Atoi(path[0])
		if err != nil || idx < 0 || idx >= len(items) {
			return nil
		}
		return lookupExact(items[idx], path[1:])
	}
	return nil
}

func setPath(container any, path []string, value any) (any, error) {
	if len(path) == 0 {
		return value, nil
	}

	if container == nil {
		container = bson.D{}
	}

	if rank(container) == rankDocument {
		doc := cloneDocument(documentOf(container))
		for i, e := range doc {
			if e.Key == path[0] {
				v, err := setPath(e.Value, path[1:], value)
				if err != nil {
					return nil, err
				}
				doc[i].Value = v
				return doc, nil
			}
		}
		v, err := setPath(nil, path[1:], value)
		if err != nil {
			return nil, err
		}
		return append(doc, bson.E{Key: path[0], Value: v}), nil
	}

	if items := arrayOf(container); items != nil || rank(container) == rankArray {
		idx, err := strconv.Atoi(path[0])
		if err != nil || idx < 0 {
			return nil, errors.Wrapf(ErrInvalidCondition, "cannot use %q as array index", path[0])
		}
		result := make(bson.A, len(items))
		copy(result, items)
		for len(result) <= idx {
			result = append(result, nil)
		}
		v, err := setPath(result[idx], path[1:], value)
		if err != nil {
			return nil, err
		}
		result[idx] = v
		return result, nil
	}

	return nil, errors.Wrapf(ErrInvalidCondition, "cannot create field %s in %T", path[0], container)
}

func unsetPath(container any, path []string) any {
	if len(path) == 0 {
		return container
	}

	if rank(container) == rankDocument {
		doc := documentOf(container)
		result := make(bson.D, 0, len(doc))
		for _, e := range doc {
			if e.Key != path[0] {
				result = append(result, e)
				continue
			}
			if len(path) > 1 {
				result = append(result, bson.E{Key: e.Key, Value: unsetPath(e.Value, path[1:])})
			}
		}
		return result
	}

	if items := arrayOf(container); items != nil {
		idx, err := strconv.Atoi(path[0])
		if err != nil || idx < 0 || idx >= len(items) {
			return container
		}
		result := make(bson.A, len(items))
		copy(result, items)
		if len(path) == 1 {
			result[idx] = nil
		} else {
			result[idx] = unsetPath(result[idx], path[1:])
		}
		return result
	}
	return container
}

// addNumbers 执行 $inc，两个整数相加保持整数类型，否则转换为 float64
func addNumbers(base any, delta any) (any, error) {
	if base == nil {
		base = int32(0)
	}
	if _, ok := toFloat(delta); !ok {
		return nil, errors.Wrapf(ErrInvalidCondition, "$inc requires a number, got %T", delta)
	}
	if _, ok := toFloat(base); !ok {
		return nil, errors.Wrapf(ErrInvalidCondition, "cannot increment non-number %T", base)
	}

	x, xInt := toInt(base)
	y, yInt := toInt(delta)
	if xInt && yInt {
		sum := x + y
		_, base32 := base.(int32)
		_, delta32 := delta.(int32)
		if base32 && delta32 && sum >= math.MinInt32 && sum <= math.MaxInt32 {
			return int32(sum), nil
		}
		return sum, nil
	}

	fx, _ := toFloat(base)
	fy, _ := toFloat(delta)
	return fx + fy, nil
}
