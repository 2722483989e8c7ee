package odm

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ObjectIDFrom 把 ObjectID 或其十六进制字符串转换成 ObjectID
func ObjectIDFrom(v any) (primitive.ObjectID, error) {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id, nil
	case *primitive.ObjectID:
		if id != nil {
			return *id, nil
		}
	case string:
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return primitive.NilObjectID, invalidArgument("invalid ObjectID %q", id)
		}
		return oid, nil
	}
	return primitive.NilObjectID, invalidArgument("invalid ObjectID %v (%T)", v, v)
}
