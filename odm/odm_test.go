package odm

import (
	"sync"
	"testing"
	"time"

	"github.com/hatlonely/nosqlx/store"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	tempSub = NewSubSchema().
		Key("subkey1", Key{}).
		Key("subkey2", Key{})
	xSub = NewSubSchema().
		Key("x_item1", Key{}).
		Key("x_item2", Key{})
	lazySub = NewSubSchema().
		Key("module_name", Key{}).
		Lazy("lazy_1").
		Lazy("lazy_2")
	tempSchema = NewSchema("charlie", "tempdb").
			Key("test_key_1", Key{}).
			Key("test_key_2", Key{}).
			Key("test_key_3", Key{}).
			Key("update_key1", Key{Type: "int"}).
			Sub("sub_collection", tempSub).
			List("list_collection", IntElem).
			List("sub_collection_list", SubElem(xSub)).
			Lazy("lazy_collection").
			Sub("lazy_sub_collection", lazySub)
	counterSchema = NewSchema("charlie", "counter").
			Key("name", Key{}).
			Key("count", Key{Type: "int", Default: 0})
)

// fakeClock 每次调用前进一秒
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestSession() *Session {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewSession(NewConnection(store.NewMemoryStore()), WithClock(clock.Now))
}

func TestRecordConstruction(t *testing.T) {
	Convey("NewRecord", t, func() {
		Convey("未提供的字段使用默认值", func() {
			r, err := NewRecord(counterSchema, nil, nil)
			So(err, ShouldBeNil)
			So(r.Get("name"), ShouldBeNil)
			So(r.Get("count"), ShouldEqual, 0)
			So(r.ID(), ShouldBeNil)
			So(r.Get(FieldTimeCreated), ShouldBeNil)
			So(r.Keys(), ShouldResemble, []string{"_id", "time_created", "time_updated", "name", "count"})

			r, err = NewRecord(tempSchema, nil, nil)
			So(err, ShouldBeNil)
			So(r.Sub("sub_collection"), ShouldNotBeNil)
			So(r.Sub("sub_collection").Get("subkey1"), ShouldBeNil)
			So(r.List("list_collection").Len(), ShouldEqual, 0)
			So(r.Lazy("lazy_collection").Len(), ShouldEqual, 0)
			So(r.Sub("lazy_sub_collection").Lazy("lazy_1"), ShouldNotBeNil)
		})

		Convey("可变默认值在实例之间不共享", func() {
			schema := NewSchema("db", "defaults").Key("tags", Key{Default: []any{"a"}})
			r1, _ := NewRecord(schema, nil, nil)
			r2, _ := NewRecord(schema, nil, nil)
			r1.Get("tags").([]any)[0] = "b"
			So(r2.Get("tags"), ShouldResemble, []any{"a"})
		})

		Convey("从原始数据递归构造", func() {
			r, err := NewRecord(tempSchema, nil, map[string]any{
				"test_key_1":      "v1",
				"unknown":         "ignored",
				"sub_collection":  map[string]any{"subkey1": "s1", "other": 1},
				"list_collection": []int{1, 2, 3},
				"sub_collection_list": bson.A{
					bson.M{"x_item1": "One", "x_item2": int32(2)},
				},
				"lazy_collection":     bson.D{{Key: "b", Value: 1}, {Key: "a", Value: 2}},
				"lazy_sub_collection": map[string]any{"module_name": "m", "lazy_1": map[string]any{"k": "v"}},
			})
			So(err, ShouldBeNil)
			So(r.GetString("test_key_1"), ShouldEqual, "v1")
			So(r.Get("unknown"), ShouldBeNil)
			So(r.Sub("sub_collection").Get("subkey1"), ShouldEqual, "s1")
			So(r.Sub("sub_collection").Get("other"), ShouldBeNil)
			So(r.List("list_collection").Items(), ShouldResemble, []any{1, 2, 3})

			item, ok := r.List("sub_collection_list").At(0).(*SubDocument)
			So(ok, ShouldBeTrue)
			So(item.Get("x_item1"), ShouldEqual, "One")
			So(item.GetInt("x_item2"), ShouldEqual, 2)

			So(r.Lazy("lazy_collection").Keys(), ShouldResemble, []string{"b", "a"})
			So(r.Sub("lazy_sub_collection").Lazy("lazy_1").Get("k"), ShouldEqual, "v")
		})

		Convey("列表字段收到非列表值", func() {
			_, err := NewRecord(tempSchema, nil, map[string]any{"list_collection": 1})
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "list_collection")
		})

		Convey("列表元素类型不匹配", func() {
			_, err := NewRecord(tempSchema, nil, map[string]any{"list_collection": []any{1, "x"}})
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)

			_, err = NewRecord(tempSchema, nil, map[string]any{"sub_collection_list": []any{"x"}})
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
		})

		Convey("嵌套字段收到非映射值", func() {
			_, err := NewRecord(tempSchema, nil, map[string]any{"sub_collection": "x"})
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
			_, err = NewRecord(tempSchema, nil, map[string]any{"lazy_collection": 1})
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
		})

		Convey("nil 视为未提供", func() {
			r, err := NewRecord(tempSchema, nil, map[string]any{"sub_collection": nil, "list_collection": nil})
			So(err, ShouldBeNil)
			So(r.Sub("sub_collection"), ShouldNotBeNil)
			So(r.List("list_collection").Len(), ShouldEqual, 0)
		})

		Convey("嵌套记录的 schema 不能用于顶层记录", func() {
			_, err := NewRecord(tempSub, nil, nil)
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
		})
	})
}

func TestRecordSet(t *testing.T) {
	Convey("Record.Set", t, func() {
		r, err := NewRecord(tempSchema, nil, nil)
		So(err, ShouldBeNil)

		Convey("赋值后立即可读", func() {
			for _, v := range []any{"x", 1, 2.5, nil, map[string]any{"a": 1}} {
				So(r.Set("test_key_1", v), ShouldBeNil)
				So(r.Get("test_key_1"), ShouldResemble, v)
				So(r.Map()["test_key_1"], ShouldResemble, v)
			}
		})

		Convey("未声明的字段返回 ErrInvalidArgument", func() {
			err := r.Set("nope", 1)
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
		})

		Convey("嵌套记录字段按键赋值", func() {
			sub := r.Sub("sub_collection")
			So(r.Set("sub_collection", map[string]any{"subkey1": 1, "subkey2": 2, "extra": 3}), ShouldBeNil)
			So(r.Sub("sub_collection"), ShouldEqual, sub)
			So(sub.Get("subkey1"), ShouldEqual, 1)
			So(sub.Get("subkey2"), ShouldEqual, 2)

			So(r.Set("sub_collection", map[string]any{"subkey1": "only"}), ShouldBeNil)
			So(sub.Get("subkey1"), ShouldEqual, "only")
			So(sub.Get("subkey2"), ShouldEqual, 2)

			other, err := NewSubDocument(tempSub, map[string]any{"subkey1": "a", "subkey2": "b"})
			So(err, ShouldBeNil)
			So(r.Set("sub_collection", other), ShouldBeNil)
			So(sub.Get("subkey2"), ShouldEqual, "b")

			err = r.Set("sub_collection", 1)
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
		})

		Convey("嵌套赋值失败时嵌套记录保持不变", func() {
			lazySubDoc := r.Sub("lazy_sub_collection")
			So(lazySubDoc.Set("module_name", "before"), ShouldBeNil)
			err := r.Set("lazy_sub_collection", map[string]any{"module_name": "after", "lazy_1": 1})
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
			So(lazySubDoc.Get("module_name"), ShouldEqual, "before")
		})

		Convey("嵌套赋值后之前取得的容器仍然有效", func() {
			inner := NewSubSchema().
				Key("name", Key{}).
				List("tags", StringElem).
				Lazy("meta")
			schema := NewSchema("charlie", "handles").Sub("inner", inner).Lazy("extra")
			rec, err := NewRecord(schema, nil, map[string]any{
				"inner": map[string]any{"tags": []any{"a"}, "meta": map[string]any{"k": 1}},
			})
			So(err, ShouldBeNil)

			tags := rec.Sub("inner").List("tags")
			meta := rec.Sub("inner").Lazy("meta")
			So(rec.Set("inner", map[string]any{"name": "n", "tags": "b", "meta": map[string]any{"k": 2}}), ShouldBeNil)
			So(tags.Items(), ShouldResemble, []any{"a", "b"})
			So(meta.Get("k"), ShouldEqual, 2)
			So(rec.Sub("inner").List("tags"), ShouldEqual, tags)
			So(rec.Sub("inner").Lazy("meta"), ShouldEqual, meta)

			So(tags.Append("c"), ShouldBeNil)
			So(rec.Sub("inner").List("tags").Len(), ShouldEqual, 3)

			extra := rec.Lazy("extra")
			So(rec.Set("extra", map[string]any{"x": 1}), ShouldBeNil)
			So(extra.Keys(), ShouldResemble, []string{"x"})
			So(rec.Lazy("extra"), ShouldEqual, extra)
		})

		Convey("列表字段追加或拼接", func() {
			So(r.Set("list_collection", 1), ShouldBeNil)
			So(r.Set("list_collection", []int{2, 3}), ShouldBeNil)
			So(r.List("list_collection").Items(), ShouldResemble, []any{1, 2, 3})

			err := r.Set("list_collection", []any{4, "x"})
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
			So(r.List("list_collection").Items(), ShouldResemble, []any{1, 2, 3})
		})

		Convey("嵌套记录列表追加嵌套记录", func() {
			item, err := NewSubDocument(xSub, map[string]any{"x_item1": "One", "x_item2": 2})
			So(err, ShouldBeNil)
			So(r.Set("sub_collection_list", item), ShouldBeNil)
			So(r.List("sub_collection_list").Len(), ShouldEqual, 1)

			wrong, _ := NewSubDocument(tempSub, nil)
			err = r.Set("sub_collection_list", wrong)
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
			So(r.List("sub_collection_list").Len(), ShouldEqual, 1)
		})

		Convey("映射字段整体替换", func() {
			r.Lazy("lazy_collection").Set("old", 1)
			So(r.Set("lazy_collection", map[string]any{"new": 2}), ShouldBeNil)
			So(r.Lazy("lazy_collection").Keys(), ShouldResemble, []string{"new"})

			err := r.Set("lazy_collection", nil)
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
		})
	})
}

func TestTypedList(t *testing.T) {
	Convey("TypedList", t, func() {
		l, err := NewTypedList(IntElem, 1, int32(2), int64(3))
		So(err, ShouldBeNil)
		So(l.Len(), ShouldEqual, 3)

		Convey("元素类型不匹配时列表不变", func() {
			err := l.Append("I am string")
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
			So(l.Items(), ShouldResemble, []any{1, int32(2), int64(3)})

			err = l.Append(nil)
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
			So(l.Len(), ShouldEqual, 3)
		})

		Convey("Pop", func() {
			v, ok := l.Pop()
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, int64(3))
			So(l.Len(), ShouldEqual, 2)
		})

		Convey("元素类型", func() {
			cases := []struct {
				elem Elem
				ok   any
				bad  any
			}{
				{StringElem, "s", 1},
				{FloatElem, 1.5, 1},
				{BoolElem, true, "true"},
				{TimeElem, time.Now(), "2024-01-01"},
				{ObjectIDElem, primitive.NewObjectID(), "abc"},
				{LazyElem, map[string]any{"a": 1}, 1},
				{SubElem(xSub), map[string]any{"x_item1": 1}, "x"},
			}
			for _, c := range cases {
				_, err := NewTypedList(c.elem, c.ok)
				So(err, ShouldBeNil)
				_, err = NewTypedList(c.elem, c.bad)
				So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
			}

			l, err := NewTypedList(AnyElem, 1, "a", nil)
			So(err, ShouldBeNil)
			So(l.Len(), ShouldEqual, 3)
		})

		Convey("ObjectID 作为单个元素追加", func() {
			schema := NewSchema("charlie", "refs").List("refs", ObjectIDElem)
			r, err := NewRecord(schema, nil, nil)
			So(err, ShouldBeNil)
			oid := primitive.NewObjectID()
			So(r.Set("refs", oid), ShouldBeNil)
			So(r.List("refs").Items(), ShouldResemble, []any{oid})
		})

		Convey("TimeElem 把存储中的时间转换成 time.Time", func() {
			now := time.Now().UTC().Truncate(time.Millisecond)
			l, err := NewTypedList(TimeElem, primitive.NewDateTimeFromTime(now))
			So(err, ShouldBeNil)
			So(l.At(0), ShouldEqual, now)
		})
	})
}

func TestLazyDocument(t *testing.T) {
	Convey("LazyDocument", t, func() {
		l := NewLazyDocument(map[string]any{"b": 2, "a": 1})
		So(l.Keys(), ShouldResemble, []string{"a", "b"})

		l.Set("c", 3)
		l.Set("a", 10)
		So(l.Keys(), ShouldResemble, []string{"a", "b", "c"})
		So(l.Get("a"), ShouldEqual, 10)

		l.Delete("b")
		_, ok := l.Lookup("b")
		So(ok, ShouldBeFalse)
		So(l.Document(), ShouldResemble, bson.D{{Key: "a", Value: 10}, {Key: "c", Value: 3}})
		So(l.Map(), ShouldResemble, map[string]any{"a": 10, "c": 3})
	})
}

func TestSchema(t *testing.T) {
	Convey("Schema", t, func() {
		Convey("隐式字段排在最前面", func() {
			schema := NewSchema("db", "c").Key("a", Key{})
			So(schema.Fields(), ShouldResemble, []string{"_id", "time_created", "time_updated", "a"})
			So(schema.FieldType("a"), ShouldEqual, "no_type")
			So(schema.IsRoot(), ShouldBeTrue)
			So(NewSubSchema().Fields(), ShouldBeEmpty)
		})

		Convey("重复声明替换原有声明", func() {
			schema := NewSchema("db", "c").Key("a", Key{Default: 1}).Key("time_created", Key{Type: "time"}).Key("a", Key{Default: 2})
			So(schema.Fields(), ShouldResemble, []string{"_id", "time_created", "time_updated", "a"})
			So(schema.FieldType("time_created"), ShouldEqual, "time")
			r, err := NewRecord(schema, nil, nil)
			So(err, ShouldBeNil)
			So(r.Get("a"), ShouldEqual, 2)
		})

		Convey("使用后不能再声明字段", func() {
			schema := NewSchema("db", "c")
			_, err := NewRecord(schema, nil, nil)
			So(err, ShouldBeNil)
			So(func() { schema.Key("a", Key{}) }, ShouldPanic)
		})

		Convey("嵌套字段必须使用嵌套记录的 schema", func() {
			So(func() { NewSchema("db", "a").Sub("b", NewSchema("db", "b")) }, ShouldPanic)
			So(func() { SubElem(NewSchema("db", "b")) }, ShouldPanic)
		})
	})
}

func TestObjectIDFrom(t *testing.T) {
	Convey("ObjectIDFrom", t, func() {
		oid := primitive.NewObjectID()
		v, err := ObjectIDFrom(oid)
		So(err, ShouldBeNil)
		So(v, ShouldEqual, oid)

		v, err = ObjectIDFrom(oid.Hex())
		So(err, ShouldBeNil)
		So(v, ShouldEqual, oid)

		_, err = ObjectIDFrom("not-hex")
		So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
		_, err = ObjectIDFrom(123)
		So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
	})
}
