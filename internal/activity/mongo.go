package activity

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"citbif/internal/models"
)

const mongoCollection = "activity_records"

// MongoSink mirrors activity records into the legacy document store.
type MongoSink struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoSink(ctx context.Context, uri, dbName string) (*MongoSink, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	coll := client.Database(dbName).Collection(mongoCollection)
	_, err = coll.Indexes().CreateOne(pctx, mongo.IndexModel{
		Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo index: %w", err)
	}
	return &MongoSink{client: client, coll: coll}, nil
}

func (s *MongoSink) Record(ctx context.Context, rec *models.ActivityRecord) error {
	if _, err := s.coll.InsertOne(ctx, toDocument(rec)); err != nil {
		return fmt.Errorf("mongo insert activity: %w", err)
	}
	return nil
}

func (s *MongoSink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func toDocument(rec *models.ActivityRecord) bson.D {
	doc := bson.D{
		{Key: "_id", Value: rec.ID},
		{Key: "account_id", Value: rec.AccountID},
		{Key: "activity_type", Value: rec.Type},
		{Key: "description", Value: rec.Description},
		{Key: "created_at", Value: rec.CreatedAt},
	}
	if rec.IPAddress != "" {
		doc = append(doc, bson.E{Key: "ip_address", Value: rec.IPAddress})
	}
	if rec.UserAgent != "" {
		doc = append(doc, bson.E{Key: "user_agent", Value: rec.UserAgent})
	}
	if md := rec.Metadata.Map(); len(md) > 0 {
		doc = append(doc, bson.E{Key: "metadata", Value: md})
	}
	return doc
}
