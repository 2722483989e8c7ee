package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hatlonely/nosqlx/cfg"
	"github.com/hatlonely/nosqlx/log"
	"github.com/hatlonely/nosqlx/odm"
	"github.com/hatlonely/nosqlx/ref"
	"github.com/hatlonely/nosqlx/store"
	"go.mongodb.org/mongo-driver/bson"
)

// 可以通过 NOSQLX_CONNECTION_STORE_TYPE=MongoStore 等环境变量覆盖
var demoConfig = []byte(`
connection:
  store:
    type: ObservableStore
    options:
      name: nosqlx_demo
      enableLogging: true
      logger:
        type: SLog
        options:
          level: debug
          format: text
      store:
        type: CacheStore
        options:
          ttl: 1m
          store:
            type: MemoryStore
          cache:
            type: FreeCache
            options:
              size: 1048576
`)

var statusSchema = odm.NewSubSchema().
	Key("msg", odm.Key{Type: "string", Default: "ok"}).
	Key("color", odm.Key{Type: "string", Default: "green"})

var inventorySchema = odm.NewSchema("kserver", "mac_store").
	Key("mac_address", odm.Key{Type: "string"}).
	Key("server_number", odm.Key{Type: "int"}).
	Key("client_ip", odm.Key{Type: "string"}).
	Key("client_interface", odm.Key{Type: "string", Default: "eth0"}).
	Key("control_port", odm.Key{Type: "int", Default: 5000}).
	Key("kick_id", odm.Key{Type: "string"}).
	Key("kick_token", odm.Key{Type: "string"}).
	Key("private_key", odm.Key{Type: "string"}).
	Sub("status", statusSchema).
	List("history", odm.SubElem(statusSchema)).
	Lazy("ip_info")

func main() {
	ctx := context.Background()

	fmt.Println("=== 示例1: 内存存储 ===")
	demoMemoryStore(ctx)

	fmt.Println("\n=== 示例2: 配置文件创建连接 ===")
	demoConfigConnection(ctx)

	fmt.Println("\n=== 示例3: 结构体定义模型 ===")
	demoStructSchema(ctx)
}

func demoMemoryStore(ctx context.Context) {
	conn, err := odm.NewConnectionWithOptions(&odm.ConnectionOptions{
		Store: ref.TypeOptions{Namespace: store.Namespace, Type: "MemoryStore"},
	})
	if err != nil {
		fmt.Printf("创建连接失败: %v\n", err)
		return
	}
	defer conn.Close()

	runInventory(ctx, odm.NewSession(conn))
}

func demoConfigConnection(ctx context.Context) {
	config, err := cfg.NewConfigWithData(demoConfig, "yaml", cfg.WithEnvPrefix("NOSQLX"))
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		return
	}

	var options odm.ConnectionOptions
	if err := config.Sub("connection").ConvertTo(&options); err != nil {
		fmt.Printf("解析配置失败: %v\n", err)
		return
	}

	conn, err := odm.NewConnectionWithOptions(&options)
	if err != nil {
		fmt.Printf("创建连接失败: %v\n", err)
		return
	}
	defer conn.Close()

	if err := conn.Ping(ctx); err != nil {
		fmt.Printf("连接不可用: %v\n", err)
		return
	}

	runInventory(ctx, odm.NewSession(conn, odm.WithLogger(log.Default())))
}

func runInventory(ctx context.Context, session *odm.Session) {
	record, err := session.New(inventorySchema, map[string]any{
		"mac_address":   "00:1a:2b:3c:4d:5e",
		"server_number": 7,
		"client_ip":     "10.0.0.12",
		"kick_id":       "k-1001",
		"ip_info":       map[string]any{"country": "cn", "isp": "telecom"},
	})
	if err != nil {
		fmt.Printf("创建记录失败: %v\n", err)
		return
	}

	if err := record.List("history").Append(map[string]any{"msg": "registered"}); err != nil {
		fmt.Printf("追加历史失败: %v\n", err)
		return
	}

	id, err := session.Add(ctx, record)
	if err != nil {
		fmt.Printf("写入失败: %v\n", err)
		return
	}
	fmt.Printf("写入成功: %v\n", id)

	found, err := session.Query(inventorySchema).Get(ctx, id)
	if err != nil {
		fmt.Printf("查询失败: %v\n", err)
		return
	}
	fmt.Print(found.String())

	if _, err := found.Update(ctx, map[string]any{"status.msg": "kicked", "status.color": "red", "kick_token": "t-42"}); err != nil {
		fmt.Printf("更新失败: %v\n", err)
		return
	}

	it, err := session.Query(inventorySchema).Find(ctx, bson.M{"status.color": "red"}, odm.WithLimit(10))
	if err != nil {
		fmt.Printf("查询失败: %v\n", err)
		return
	}
	records, err := it.All()
	if err != nil {
		fmt.Printf("遍历失败: %v\n", err)
		return
	}
	for _, r := range records {
		buf, _ := json.MarshalIndent(r.JSONEncode(), "", "  ")
		fmt.Println(string(buf))
	}

	n, err := session.DropAll(ctx, inventorySchema)
	if err != nil {
		fmt.Printf("清理失败: %v\n", err)
		return
	}
	fmt.Printf("清理 %d 条记录\n", n)
}

type inventory struct {
	MacAddress   string `bson:"mac_address"`
	ServerNumber int    `bson:"server_number"`
	ClientIP     string `bson:"client_ip"`
	ControlPort  int    `bson:"control_port" def:"5000"`
	Status       struct {
		Msg   string `bson:"msg"`
		Color string `bson:"color"`
	} `bson:"status"`
}

func demoStructSchema(ctx context.Context) {
	schema, err := odm.SchemaFromStruct("kserver", "inventory", &inventory{})
	if err != nil {
		fmt.Printf("解析模型失败: %v\n", err)
		return
	}
	fmt.Printf("字段: %v\n", schema.Fields())

	session := odm.NewSession(odm.NewConnection(store.NewMemoryStore()))

	v := inventory{MacAddress: "00:aa:bb:cc:dd:ee", ServerNumber: 3, ClientIP: "10.0.0.3"}
	v.Status.Msg = "ok"
	record, err := odm.NewRecordFromStruct(schema, session, &v)
	if err != nil {
		fmt.Printf("创建记录失败: %v\n", err)
		return
	}
	if _, err := session.Add(ctx, record); err != nil {
		fmt.Printf("写入失败: %v\n", err)
		return
	}

	var out inventory
	if err := record.ScanStruct(&out); err != nil {
		fmt.Printf("读取失败: %v\n", err)
		return
	}
	fmt.Printf("读取结果: %+v\n", out)
}
