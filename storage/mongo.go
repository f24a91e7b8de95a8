package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoDocument is the stored shape of a record: the JSON document is kept
// as a native BSON subdocument so it stays queryable.
type mongoDocument struct {
	ID        string    `bson:"_id"`
	Revision  int64     `bson:"revision"`
	Data      bson.Raw  `bson:"data"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// MongoStore is a DocumentStore backed by MongoDB, one collection per
// DocumentStore collection.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// ConnectMongo dials uri and opens database.
func ConnectMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}
	return &MongoStore{client: client, db: client.Database(database)}, nil
}

// Get returns the record stored under id.
func (s *MongoStore) Get(ctx context.Context, collection, id string) (*Record, error) {
	if err := checkKey(collection, id); err != nil {
		return nil, err
	}

	var doc mongoDocument
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find %s/%s: %w", collection, id, err)
	}

	data, err := bson.MarshalExtJSON(doc.Data, false, false)
	if err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return &Record{Data: data, Revision: uint64(doc.Revision)}, nil
}

// Put upserts the record and bumps its revision.
func (s *MongoStore) Put(ctx context.Context, collection, id string, data []byte) (uint64, error) {
	if err := checkKey(collection, id); err != nil {
		return 0, err
	}
	raw, err := toBSON(data)
	if err != nil {
		return 0, err
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	update := bson.M{
		"$set": bson.M{"data": raw, "updatedAt": time.Now().UTC()},
		"$inc": bson.M{"revision": int64(1)},
	}

	var doc mongoDocument
	if err := s.db.Collection(collection).FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc); err != nil {
		return 0, fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return uint64(doc.Revision), nil
}

// Create inserts the record at revision 1.
func (s *MongoStore) Create(ctx context.Context, collection, id string, data []byte) (uint64, error) {
	if err := checkKey(collection, id); err != nil {
		return 0, err
	}
	raw, err := toBSON(data)
	if err != nil {
		return 0, err
	}

	doc := mongoDocument{ID: id, Revision: 1, Data: raw, UpdatedAt: time.Now().UTC()}
	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return 0, ErrRevisionMismatch
		}
		return 0, fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	return 1, nil
}

// Update replaces the record if it is still at revision.
func (s *MongoStore) Update(ctx context.Context, collection, id string, data []byte, revision uint64) (uint64, error) {
	if err := checkKey(collection, id); err != nil {
		return 0, err
	}
	raw, err := toBSON(data)
	if err != nil {
		return 0, err
	}

	next := int64(revision) + 1
	filter := bson.M{"_id": id, "revision": int64(revision)}
	update := bson.M{"$set": bson.M{"data": raw, "revision": next, "updatedAt": time.Now().UTC()}}

	res, err := s.db.Collection(collection).UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return 0, ErrRevisionMismatch
	}
	return uint64(next), nil
}

// Delete removes the record.
func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	if err := checkKey(collection, id); err != nil {
		return err
	}
	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// toBSON converts a JSON object into a BSON document, keeping field order.
func toBSON(data []byte) (bson.Raw, error) {
	var raw bson.Raw
	if err := bson.UnmarshalExtJSON(data, false, &raw); err != nil {
		return nil, fmt.Errorf("convert JSON to BSON: %w", err)
	}
	return raw, nil
}
