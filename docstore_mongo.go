package main

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoConnectTimeout = 15 * time.Second

// mongoDocumentStore keeps each collection in the configured MongoDB
// database; ids are the driver-assigned ObjectIDs in hex form.
type mongoDocumentStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func newMongoDocumentStore(ctx context.Context, uri, dbName string) (*mongoDocumentStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &mongoDocumentStore{client: client, db: client.Database(dbName)}, nil
}

func (s *mongoDocumentStore) Insert(ctx context.Context, collection string, doc Document) (string, error) {
	res, err := s.db.Collection(collection).InsertOne(ctx, bson.M(doc))
	if err != nil {
		return "", err
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

func (s *mongoDocumentStore) QueryAll(ctx context.Context, collection, orderByField string, descending bool) ([]Document, error) {
	direction := 1
	if descending {
		direction = -1
	}
	findOpts := options.Find().SetSort(bson.D{{Key: orderByField, Value: direction}})

	cursor, err := s.db.Collection(collection).Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := make([]Document, 0)
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}
		doc := Document(raw)
		if oid, ok := raw["_id"].(primitive.ObjectID); ok {
			doc["id"] = oid.Hex()
			delete(doc, "_id")
		}
		docs = append(docs, doc)
	}
	return docs, cursor.Err()
}

func (s *mongoDocumentStore) UpdateField(ctx context.Context, collection, id, field string, value any) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errDocumentNotFound
	}
	res, err := s.db.Collection(collection).UpdateByID(ctx, oid, bson.M{"$set": bson.M{field: value}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errDocumentNotFound
	}
	return nil
}

func (s *mongoDocumentStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
