package mongorepos

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/trezcool/darasa/core"
)

// Collections
const (
	schoolsCol   = "schools"
	classesCol   = "classes"
	subjectsCol  = "subjects"
	teachersCol  = "teachers"
	studentsCol  = "students"
	noticesCol   = "notices"
	complainsCol = "complains"
)

// Open connects to the replica set at uri and returns the named database.
// Transactions need a replica set (or a sharded cluster).
func Open(ctx context.Context, uri, dbName string) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongodb")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err = client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "pinging mongodb")
	}
	return client.Database(dbName), nil
}

// EnsureIndexes creates the collections' unique indexes. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		schoolsCol: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("email_unique")},
			{Keys: bson.D{{Key: "school_name", Value: 1}}, Options: options.Index().SetUnique(true).SetName("school_name_unique")},
		},
		classesCol: {
			{Keys: bson.D{{Key: "school_id", Value: 1}, {Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		subjectsCol: {
			{Keys: bson.D{{Key: "school_id", Value: 1}, {Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "teacher_id", Value: 1}}},
		},
		teachersCol: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		studentsCol: {
			{Keys: bson.D{{Key: "school_id", Value: 1}, {Key: "class_id", Value: 1}, {Key: "roll_num", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		noticesCol:   {{Keys: bson.D{{Key: "school_id", Value: 1}}}},
		complainsCol: {{Keys: bson.D{{Key: "school_id", Value: 1}}}},
	}
	for col, models := range indexes {
		if _, err := db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return errors.Wrapf(err, "creating %s indexes", col)
		}
	}
	return nil
}

// byCreation sorts documents in insertion order.
func byCreation() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
}

func in(ids []string) bson.M {
	return bson.M{"$in": ids}
}

// and combines queries that may constrain the same field.
func and(queries ...bson.M) bson.M {
	return bson.M{"$and": queries}
}

// duplicateOn reports whether err is a duplicate key error on an index covering field.
func duplicateOn(err error, field string) bool {
	return mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), field)
}

func notFoundOr(err error, resource, op string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.NewNotFoundError(resource)
	}
	return core.StoreFailure(err, op)
}

func find[T any](ctx context.Context, col *mongo.Collection, query bson.M, op string) ([]T, error) {
	cur, err := col.Find(ctx, query, byCreation())
	if err != nil {
		return nil, core.StoreFailure(err, op)
	}
	docs := make([]T, 0)
	if err = cur.All(ctx, &docs); err != nil {
		return nil, core.StoreFailure(err, op)
	}
	return docs, nil
}
