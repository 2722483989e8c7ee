package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type backendCase struct {
	name string
	open func(t *testing.T) Store
}

func backendCases() []backendCase {
	return []backendCase{
		{"MemoryStore", func(t *testing.T) Store {
			return NewMemoryStore()
		}},
		{"BoltStore", func(t *testing.T) Store {
			s, err := NewBoltStoreWithOptions(&BoltStoreOptions{Path: filepath.Join(t.TempDir(), "test.db")})
			if err != nil {
				t.Fatal(err)
			}
			return s
		}},
		{"LevelDBStore", func(t *testing.T) Store {
			s, err := NewLevelDBStoreWithOptions(&LevelDBStoreOptions{Path: filepath.Join(t.TempDir(), "leveldb")})
			if err != nil {
				t.Fatal(err)
			}
			return s
		}},
		{"PebbleStore", func(t *testing.T) Store {
			s, err := NewPebbleStoreWithOptions(&PebbleStoreOptions{Path: filepath.Join(t.TempDir(), "pebble"), NoSync: true})
			if err != nil {
				t.Fatal(err)
			}
			return s
		}},
	}
}

func collect(ctx context.Context, cursor Cursor) []bson.M {
	var docs []bson.M
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			panic(err)
		}
		docs = append(docs, doc)
	}
	_ = cursor.Close(ctx)
	return docs
}

func seedUsers(ctx context.Context, c Collection) {
	users := []bson.D{
		{{Key: "_id", Value: 1}, {Key: "name", Value: "alice"}, {Key: "age", Value: 30}, {Key: "tags", Value: bson.A{"admin", "dev"}}},
		{{Key: "_id", Value: 2}, {Key: "name", Value: "bob"}, {Key: "age", Value: 25}, {Key: "address", Value: bson.D{{Key: "city", Value: "shanghai"}}}},
		{{Key: "_id", Value: 3}, {Key: "name", Value: "carol"}, {Key: "age", Value: 35}, {Key: "tags", Value: bson.A{"dev"}}},
	}
	for _, u := range users {
		if _, err := c.Insert(ctx, u); err != nil {
			panic(err)
		}
	}
}

func TestKVStore(t *testing.T) {
	for _, bc := range backendCases() {
		Convey(bc.name, t, func() {
			ctx := context.Background()
			s := bc.open(t)
			defer s.Close()
			c := s.Collection("test", "users")

			So(s.Ping(ctx), ShouldBeNil)

			Convey("Insert 自动生成 ObjectID", func() {
				id, err := c.Insert(ctx, bson.D{{Key: "name", Value: "dave"}})
				So(err, ShouldBeNil)
				_, ok := id.(primitive.ObjectID)
				So(ok, ShouldBeTrue)

				doc, err := c.FindOne(ctx, bson.M{"_id": id})
				So(err, ShouldBeNil)
				So(doc["name"], ShouldEqual, "dave")
			})

			Convey("Insert 重复 _id 返回 ErrDuplicateKey", func() {
				_, err := c.Insert(ctx, bson.D{{Key: "_id", Value: "k"}})
				So(err, ShouldBeNil)
				_, err = c.Insert(ctx, bson.D{{Key: "_id", Value: "k"}})
				So(errors.Is(err, ErrDuplicateKey), ShouldBeTrue)
			})

			Convey("数值相等的 _id 视为同一个 _id", func() {
				_, err := c.Insert(ctx, bson.D{{Key: "_id", Value: 1}, {Key: "name", Value: "int"}})
				So(err, ShouldBeNil)
				_, err = c.Insert(ctx, bson.D{{Key: "_id", Value: 1.0}, {Key: "name", Value: "float"}})
				So(errors.Is(err, ErrDuplicateKey), ShouldBeTrue)

				_, err = c.Insert(ctx, bson.D{{Key: "_id", Value: 2.5}})
				So(err, ShouldBeNil)

				for _, filter := range []bson.M{
					{"_id": 1},
					{"_id": int64(1)},
					{"_id": 1.0},
					{"_id": bson.M{"$eq": 1}},
				} {
					n, err := c.Count(ctx, filter)
					So(err, ShouldBeNil)
					So(n, ShouldEqual, 1)
				}

				doc, err := c.FindOne(ctx, bson.M{"_id": 2.5})
				So(err, ShouldBeNil)
				So(doc["_id"], ShouldEqual, 2.5)
				n, err := c.Count(ctx, bson.M{"_id": bson.M{"$gt": 2}})
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})

			Convey("Save 覆盖已有文档", func() {
				seedUsers(ctx, c)
				id, err := c.Save(ctx, bson.D{{Key: "_id", Value: 1}, {Key: "name", Value: "alice2"}})
				So(err, ShouldBeNil)
				So(id, ShouldEqual, 1)

				doc, err := c.FindOne(ctx, bson.M{"_id": 1})
				So(err, ShouldBeNil)
				So(doc["name"], ShouldEqual, "alice2")
				_, hasAge := doc["age"]
				So(hasAge, ShouldBeFalse)

				n, err := c.Count(ctx, nil)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 3)
			})

			Convey("FindOne 未找到返回 ErrRecordNotFound", func() {
				_, err := c.FindOne(ctx, bson.M{"name": "nobody"})
				So(err, ShouldEqual, ErrRecordNotFound)
			})

			Convey("Find 过滤", func() {
				seedUsers(ctx, c)
				cases := []struct {
					filter bson.M
					want   int
				}{
					{nil, 3},
					{bson.M{"name": "bob"}, 1},
					{bson.M{"age": bson.M{"$gte": 30}}, 2},
					{bson.M{"age": bson.M{"$gt": 25, "$lt": 35}}, 1},
					{bson.M{"tags": "dev"}, 2},
					{bson.M{"address.city": "shanghai"}, 1},
					{bson.M{"tags": bson.M{"$exists": false}}, 1},
					{bson.M{"name": bson.M{"$in": bson.A{"alice", "carol"}}}, 2},
					{bson.M{"name": bson.M{"$nin": bson.A{"alice", "carol"}}}, 1},
					{bson.M{"name": bson.M{"$ne": "alice"}}, 2},
					{bson.M{"$or": bson.A{bson.M{"name": "alice"}, bson.M{"age": 25}}}, 2},
					{bson.M{"$and": bson.A{bson.M{"tags": "dev"}, bson.M{"age": bson.M{"$lt": 32}}}}, 1},
					{bson.M{"$nor": bson.A{bson.M{"name": "alice"}}}, 2},
					{bson.M{"age": "30"}, 0},
				}
				for _, tc := range cases {
					cursor, err := c.Find(ctx, tc.filter)
					So(err, ShouldBeNil)
					So(len(collect(ctx, cursor)), ShouldEqual, tc.want)

					n, err := c.Count(ctx, tc.filter)
					So(err, ShouldBeNil)
					So(n, ShouldEqual, tc.want)
				}
			})

			Convey("Find 排序和分页", func() {
				seedUsers(ctx, c)
				cursor, err := c.Find(ctx, nil, WithOrderBy("age", true), WithOffset(1), WithLimit(1))
				So(err, ShouldBeNil)
				docs := collect(ctx, cursor)
				So(len(docs), ShouldEqual, 1)
				So(docs[0]["name"], ShouldEqual, "alice")

				cursor, err = c.Find(ctx, nil, WithLimit(2))
				So(err, ShouldBeNil)
				So(len(collect(ctx, cursor)), ShouldEqual, 2)
			})

			Convey("不支持的操作符返回 ErrInvalidCondition", func() {
				seedUsers(ctx, c)
				_, err := c.Find(ctx, bson.M{"age": bson.M{"$regex": "a"}})
				So(errors.Is(err, ErrInvalidCondition), ShouldBeTrue)
				_, err = c.Count(ctx, bson.M{"$where": "true"})
				So(errors.Is(err, ErrInvalidCondition), ShouldBeTrue)
			})

			Convey("Update $set/$inc/$unset", func() {
				seedUsers(ctx, c)
				result, err := c.Update(ctx, bson.M{"name": "bob"}, bson.M{
					"$set":   bson.M{"address.zip": "200000", "name": "bobby"},
					"$inc":   bson.M{"age": 1},
					"$unset": bson.M{"address.city": ""},
				}, false)
				So(err, ShouldBeNil)
				So(result.MatchedCount, ShouldEqual, 1)
				So(result.ModifiedCount, ShouldEqual, 1)

				doc, err := c.FindOne(ctx, bson.M{"_id": 2})
				So(err, ShouldBeNil)
				So(doc["name"], ShouldEqual, "bobby")
				So(doc["age"], ShouldEqual, int32(26))
				So(doc["address"], ShouldResemble, bson.M{"zip": "200000"})
			})

			Convey("Update multi", func() {
				seedUsers(ctx, c)
				result, err := c.Update(ctx, bson.M{"tags": "dev"}, bson.M{"$set": bson.M{"team": "core"}}, true)
				So(err, ShouldBeNil)
				So(result.MatchedCount, ShouldEqual, 2)

				n, err := c.Count(ctx, bson.M{"team": "core"})
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)

				result, err = c.Update(ctx, bson.M{"tags": "dev"}, bson.M{"$set": bson.M{"team": "core"}}, true)
				So(err, ShouldBeNil)
				So(result.MatchedCount, ShouldEqual, 2)
				So(result.ModifiedCount, ShouldEqual, 0)
			})

			Convey("Update 替换文档保留 _id", func() {
				seedUsers(ctx, c)
				_, err := c.Update(ctx, bson.M{"_id": 3}, bson.M{"name": "caroline"}, false)
				So(err, ShouldBeNil)
				doc, err := c.FindOne(ctx, bson.M{"_id": 3})
				So(err, ShouldBeNil)
				So(doc, ShouldResemble, bson.M{"_id": int32(3), "name": "caroline"})

				_, err = c.Update(ctx, bson.M{"_id": 3}, bson.M{"name": "x"}, true)
				So(errors.Is(err, ErrInvalidCondition), ShouldBeTrue)
				_, err = c.Update(ctx, bson.M{"_id": 3}, bson.M{"$set": bson.M{"_id": 4}}, false)
				So(errors.Is(err, ErrInvalidCondition), ShouldBeTrue)
			})

			Convey("Remove", func() {
				seedUsers(ctx, c)
				result, err := c.Remove(ctx, bson.M{"tags": "dev"})
				So(err, ShouldBeNil)
				So(result.DeletedCount, ShouldEqual, 2)

				result, err = c.Remove(ctx, nil)
				So(err, ShouldBeNil)
				So(result.DeletedCount, ShouldEqual, 1)

				n, err := c.Count(ctx, nil)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
			})

			Convey("集合之间相互隔离", func() {
				seedUsers(ctx, c)
				other := s.Collection("test", "users2")
				n, err := other.Count(ctx, nil)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)

				_, err = other.Insert(ctx, bson.D{{Key: "_id", Value: 1}})
				So(err, ShouldBeNil)
			})
		})
	}
}

func TestEncodeKey(t *testing.T) {
	Convey("encodeKey 保持整数顺序", t, func() {
		a, err := encodeKey(-5)
		So(err, ShouldBeNil)
		b, err := encodeKey(int32(3))
		So(err, ShouldBeNil)
		c, err := encodeKey(int64(3))
		So(err, ShouldBeNil)
		So(string(a) < string(b), ShouldBeTrue)
		So(b, ShouldResemble, c)
	})

	Convey("encodeKey 整数值的浮点数与整数相同", t, func() {
		i, err := encodeKey(int32(7))
		So(err, ShouldBeNil)
		f, err := encodeKey(7.0)
		So(err, ShouldBeNil)
		f32, err := encodeKey(float32(7))
		So(err, ShouldBeNil)
		So(f, ShouldResemble, i)
		So(f32, ShouldResemble, i)

		half, err := encodeKey(7.5)
		So(err, ShouldBeNil)
		So(half, ShouldNotResemble, i)
		So(half[0], ShouldEqual, byte('f'))
	})
}

func TestNewStoreWithOptions(t *testing.T) {
	Convey("NewStoreWithOptions", t, func() {
		s, err := NewStoreWithOptions(nil)
		So(err, ShouldNotBeNil)
		So(s, ShouldBeNil)
	})
}
