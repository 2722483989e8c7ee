package odm

import (
	"context"

	"github.com/hatlonely/nosqlx/ref"
	"github.com/hatlonely/nosqlx/store"
	"github.com/pkg/errors"
)

// ConnectionOptions 连接选项，Store 为空时连接本地 27017 端口的 MongoDB
type ConnectionOptions struct {
	Store ref.TypeOptions `cfg:"store"`
}

// Connection 持有底层存储客户端，由创建者负责关闭
type Connection struct {
	store store.Store
}

func NewConnection(s store.Store) *Connection {
	return &Connection{store: s}
}

func NewConnectionWithOptions(options *ConnectionOptions) (*Connection, error) {
	if options == nil {
		options = &ConnectionOptions{}
	}
	storeOptions := options.Store
	if storeOptions.Type == "" {
		storeOptions = ref.TypeOptions{Namespace: store.Namespace, Type: "MongoStore"}
	}
	s, err := store.NewStoreWithOptions(&storeOptions)
	if err != nil {
		return nil, errors.WithMessage(err, "open connection failed")
	}
	return NewConnection(s), nil
}

func (c *Connection) Store() store.Store {
	return c.store
}

// Collection 返回 database 中名为 collection 的集合
func (c *Connection) Collection(database string, collection string) store.Collection {
	return c.store.Collection(database, collection)
}

func (c *Connection) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

func (c *Connection) Close() error {
	return c.store.Close()
}
