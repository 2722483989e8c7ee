package odm

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type inventoryStatus struct {
	Msg   string `bson:"msg"`
	Color string `bson:"color"`
}

type inventoryNetwork struct {
	ClientIP        string `bson:"client_ip"`
	ClientInterface string `bson:"client_interface" def:"eth0"`
}

type inventory struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	MacAddress       string             `bson:"mac_address"`
	ServerNumber     *int               `bson:"server_number"`
	ControlPort      int                `bson:"control_port" def:"5000" odm:"port"`
	Network          inventoryNetwork   `bson:",inline"`
	Status           inventoryStatus    `bson:"status"`
	Tags             []string           `bson:"tags"`
	History          []inventoryStatus  `bson:"history"`
	Extra            map[string]any     `bson:"extra"`
	Ignored          string             `bson:"-"`
	TimeCreated      time.Time          `bson:"time_created"`
	PrivateKey       []byte             `bson:"private_key"`
	privateNotMapped string
}

func TestSchemaFromStruct(t *testing.T) {
	schema, err := SchemaFromStruct("kserver", "mac_store", &inventory{})
	require.NoError(t, err)

	assert.Equal(t, "kserver", schema.Database())
	assert.Equal(t, "mac_store", schema.Collection())
	assert.Equal(t, []string{
		"_id", "time_created", "time_updated",
		"mac_address", "server_number", "control_port", "client_ip", "client_interface",
		"status", "tags", "history", "extra", "private_key",
	}, schema.Fields())

	tests := []struct {
		field string
		typ   string
	}{
		{"mac_address", "string"},
		{"server_number", "int"},
		{"control_port", "port"},
		{"status", "sub"},
		{"tags", "list"},
		{"history", "list"},
		{"extra", "lazy"},
		{"private_key", "[]uint8"},
		{"time_created", "no_type"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.typ, schema.FieldType(tt.field))
		})
	}

	r, err := NewRecord(schema, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 5000, r.Get("control_port"))
	assert.Equal(t, "eth0", r.Get("client_interface"))
	assert.Nil(t, r.Get("mac_address"))
	assert.Equal(t, StringElem, r.List("tags").Elem())
	assert.Equal(t, "sub", r.List("history").Elem().Name())
}

type treeNode struct {
	Name     string      `bson:"name"`
	Children []*treeNode `bson:"children"`
}

type linkedNode struct {
	Value int `bson:"value"`
	Next  *struct {
		Node *linkedNode `bson:"node"`
	} `bson:"next"`
}

func TestSchemaFromStructErrors(t *testing.T) {
	_, err := SchemaFromStruct("db", "c", 1)
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	type badInline struct {
		Value string `bson:",inline"`
	}
	_, err = SchemaFromStruct("db", "c", badInline{})
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	_, err = SchemaFromStruct("db", "nodes", treeNode{})
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	_, err = SchemaFromStruct("db", "nodes", linkedNode{})
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	type leaf struct {
		Name string `bson:"name"`
	}
	type pair struct {
		Left  leaf   `bson:"left"`
		Right *leaf  `bson:"right"`
		More  []leaf `bson:"more"`
	}
	schema, err := SchemaFromStruct("db", "pairs", pair{})
	require.NoError(t, err)
	assert.Equal(t, []string{FieldID, FieldTimeCreated, FieldTimeUpdated, "left", "right", "more"}, schema.Fields())

	sub, err := SchemaFromStruct("", "", inventoryStatus{})
	require.NoError(t, err)
	assert.False(t, sub.IsRoot())
	assert.Equal(t, []string{"msg", "color"}, sub.Fields())
}

func TestRecordStructRoundTrip(t *testing.T) {
	schema, err := SchemaFromStruct("kserver", "mac_store_round_trip", inventory{})
	require.NoError(t, err)

	in := inventory{
		MacAddress:  "00:00:FF:11:22:AF",
		ControlPort: 5000,
		Network:     inventoryNetwork{ClientIP: "127.0.0.1", ClientInterface: "eth0"},
		Status:      inventoryStatus{Msg: "Deadly", Color: "red"},
		Tags:        []string{"rack-1"},
		History:     []inventoryStatus{{Msg: "ok", Color: "green"}},
		Extra:       map[string]any{"k": "v"},
		TimeCreated: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PrivateKey:  []byte("key"),
	}

	r, err := NewRecordFromStruct(schema, nil, in)
	require.NoError(t, err)
	assert.Equal(t, "Deadly", r.Sub("status").GetString("msg"))
	assert.Equal(t, "127.0.0.1", r.GetString("client_ip"))
	assert.Equal(t, in.TimeCreated, r.GetTime(FieldTimeCreated))
	assert.Equal(t, 1, r.List("history").Len())

	var out inventory
	require.NoError(t, r.ScanStruct(&out))
	assert.Equal(t, in, out)
}
