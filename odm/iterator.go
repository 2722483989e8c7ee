package odm

import (
	"context"
	"iter"

	"github.com/hatlonely/nosqlx/store"
	"go.mongodb.org/mongo-driver/bson"
)

// Iterator 单次遍历的记录迭代器，使用完需要 Close
type Iterator struct {
	ctx     context.Context
	cursor  store.Cursor
	query   *Query
	current *Record
	err     error
}

// Next 读取下一条记录，结束或出错时返回 false
func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}
	if !it.cursor.Next(it.ctx) {
		it.current = nil
		return false
	}
	var doc bson.M
	if err := it.cursor.Decode(&doc); err != nil {
		it.err = err
		it.current = nil
		return false
	}
	r, err := it.query.rehydrate(doc)
	if err != nil {
		it.err = err
		it.current = nil
		return false
	}
	it.current = r
	return true
}

func (it *Iterator) Record() *Record {
	return it.current
}

func (it *Iterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.cursor.Err()
}

func (it *Iterator) Close() error {
	return it.cursor.Close(it.ctx)
}

// All 读取剩余的全部记录并关闭迭代器
func (it *Iterator) All() ([]*Record, error) {
	defer it.Close()
	var records []*Record
	for it.Next() {
		records = append(records, it.current)
	}
	return records, it.Err()
}

// Seq 以 range-over-func 的方式遍历，结束后关闭迭代器
func (it *Iterator) Seq() iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		defer it.Close()
		for it.Next() {
			if !yield(it.current, nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(nil, err)
		}
	}
}
