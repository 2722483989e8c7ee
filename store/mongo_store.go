package store

import (
	"context"
	"fmt"
	"time"

	"github.com/hatlonely/nosqlx/cfg/def"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoOptions MongoDB连接选项
// URI 非空时优先使用 URI，否则由 Hosts（为空时使用 Host:Port）和认证信息组装
type MongoOptions struct {
	URI         string        `cfg:"uri"`
	Host        string        `cfg:"host" def:"localhost"`
	Port        int           `cfg:"port" def:"27017" validate:"min=1,max=65535"`
	Hosts       []string      `cfg:"hosts"`
	ReplicaSet  string        `cfg:"replicaSet"`
	Username    string        `cfg:"username"`
	Password    string        `cfg:"password"`
	AuthSource  string        `cfg:"authSource" def:"admin"`
	Timeout     time.Duration `cfg:"timeout" def:"30s"`
	MaxPoolSize uint64        `cfg:"maxPoolSize" def:"100"`
	MinPoolSize uint64        `cfg:"minPoolSize"`
}

// MongoStore 基于 mongo-driver 的 Store 实现
type MongoStore struct {
	client  *mongo.Client
	timeout time.Duration
}

// clientOptions 把 MongoOptions 转换成驱动选项
func (o *MongoOptions) clientOptions() *options.ClientOptions {
	clientOptions := options.Client()
	if o.URI != "" {
		clientOptions.ApplyURI(o.URI)
	} else {
		hosts := o.Hosts
		if len(hosts) == 0 {
			hosts = []string{fmt.Sprintf("%s:%d", o.Host, o.Port)}
		}
		clientOptions.SetHosts(hosts)
		if o.ReplicaSet != "" {
			clientOptions.SetReplicaSet(o.ReplicaSet)
		}
		if o.Username != "" {
			clientOptions.SetAuth(options.Credential{
				Username:   o.Username,
				Password:   o.Password,
				AuthSource: o.AuthSource,
			})
		}
	}

	clientOptions.SetMaxPoolSize(o.MaxPoolSize)
	clientOptions.SetMinPoolSize(o.MinPoolSize)
	clientOptions.SetConnectTimeout(o.Timeout)
	clientOptions.SetServerSelectionTimeout(o.Timeout)
	return clientOptions
}

func NewMongoStoreWithOptions(opts *MongoOptions) (*MongoStore, error) {
	if opts == nil {
		opts = &MongoOptions{}
	}
	if err := def.SetDefaults(opts); err != nil {
		return nil, errors.WithMessage(err, "set mongo defaults failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, opts.clientOptions())
	if err != nil {
		return nil, errors.Wrap(err, "connect to mongodb failed")
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "ping mongodb failed")
	}

	return &MongoStore{client: client, timeout: opts.Timeout}, nil
}

// Client 返回底层驱动客户端
func (m *MongoStore) Client() *mongo.Client {
	return m.client
}

func (m *MongoStore) Collection(database string, collection string) Collection {
	return &mongoCollection{collection: m.client.Database(database).Collection(collection)}
}

func (m *MongoStore) Ping(ctx context.Context) error {
	return errors.Wrap(m.client.Ping(ctx, readpref.Primary()), "ping mongodb failed")
}

func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}

type mongoCollection struct {
	collection *mongo.Collection
}

func orEmpty(filter bson.M) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return filter
}

func (c *mongoCollection) Insert(ctx context.Context, doc bson.D) (any, error) {
	doc, id := withID(doc)
	if _, err := c.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, errors.Wrapf(ErrDuplicateKey, "insert %v", id)
		}
		return nil, errors.Wrap(err, "mongo insert failed")
	}
	return id, nil
}

func (c *mongoCollection) Save(ctx context.Context, doc bson.D) (any, error) {
	id := IDOf(doc)
	if id == nil {
		return c.Insert(ctx, doc)
	}
	_, err := c.collection.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return nil, errors.Wrap(err, "mongo replace failed")
	}
	return id, nil
}

func (c *mongoCollection) Update(ctx context.Context, filter bson.M, update bson.M, multi bool) (*UpdateResult, error) {
	var (
		result *mongo.UpdateResult
		err    error
	)
	if !hasOperator(update) {
		if multi {
			return nil, errors.Wrap(ErrInvalidCondition, "replacement document cannot update multiple documents")
		}
		result, err = c.collection.ReplaceOne(ctx, orEmpty(filter), update)
	} else if multi {
		result, err = c.collection.UpdateMany(ctx, orEmpty(filter), update)
	} else {
		result, err = c.collection.UpdateOne(ctx, orEmpty(filter), update)
	}
	if err != nil {
		return nil, errors.Wrap(err, "mongo update failed")
	}
	return &UpdateResult{
		MatchedCount:  result.MatchedCount,
		ModifiedCount: result.ModifiedCount,
		UpsertedCount: result.UpsertedCount,
		UpsertedID:    result.UpsertedID,
	}, nil
}

func (c *mongoCollection) Remove(ctx context.Context, filter bson.M) (*RemoveResult, error) {
	result, err := c.collection.DeleteMany(ctx, orEmpty(filter))
	if err != nil {
		return nil, errors.Wrap(err, "mongo delete failed")
	}
	return &RemoveResult{DeletedCount: result.DeletedCount}, nil
}

func (c *mongoCollection) Find(ctx context.Context, filter bson.M, opts ...QueryOption) (Cursor, error) {
	queryOpts := applyQueryOptions(opts)

	findOptions := options.Find()
	if queryOpts.OrderBy != "" {
		direction := 1
		if queryOpts.OrderDesc {
			direction = -1
		}
		findOptions.SetSort(bson.D{{Key: queryOpts.OrderBy, Value: direction}})
	}
	if queryOpts.Limit > 0 {
		findOptions.SetLimit(queryOpts.Limit)
	}
	if queryOpts.Offset > 0 {
		findOptions.SetSkip(queryOpts.Offset)
	}

	cursor, err := c.collection.Find(ctx, orEmpty(filter), findOptions)
	if err != nil {
		return nil, errors.Wrap(err, "mongo find failed")
	}
	return cursor, nil
}

func (c *mongoCollection) FindOne(ctx context.Context, filter bson.M) (bson.M, error) {
	var result bson.M
	if err := c.collection.FindOne(ctx, orEmpty(filter)).Decode(&result); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRecordNotFound
		}
		return nil, errors.Wrap(err, "mongo find one failed")
	}
	return result, nil
}

func (c *mongoCollection) Count(ctx context.Context, filter bson.M) (int64, error) {
	n, err := c.collection.CountDocuments(ctx, orEmpty(filter))
	if err != nil {
		return 0, errors.Wrap(err, "mongo count failed")
	}
	return n, nil
}
