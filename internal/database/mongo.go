package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"giftsync/entity"
	"giftsync/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionGiftEvents = "gift_events"
	opTimeout            = 5 * time.Second
)

type MongoDB struct {
	clientOptions *options.ClientOptions
	database      string
}

// NewMongoClient returns nil when the journal is disabled.
func NewMongoClient(conf config.Mongo) *MongoDB {
	if !conf.Enabled {
		return nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Host, conf.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.User,
			Password:   conf.Password,
			AuthSource: conf.Database,
		})
	}
	return &MongoDB{
		clientOptions: clientOptions,
		database:      conf.Database,
	}
}

func (m *MongoDB) connect(ctx context.Context) (*mongo.Client, error) {
	connection, err := mongo.Connect(ctx, m.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	return connection, nil
}

func (m *MongoDB) disconnect(connection *mongo.Client) {
	_ = connection.Disconnect(context.Background())
}

func (m *MongoDB) findError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return fmt.Errorf("mongodb find: %w", err)
}

// SaveGiftEvent writes the journal entry, replacing an earlier entry of the
// same event.
func (m *MongoDB) SaveGiftEvent(ctx context.Context, event *entity.GiftEvent) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionGiftEvents)
	filter := bson.D{{Key: "event_id", Value: event.EventID}}
	update := bson.D{{Key: "$set", Value: event}}
	opts := options.Update().SetUpsert(true)
	_, err = collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("mongodb save gift event: %w", err)
	}
	return nil
}

// GetGiftEvent returns nil without error when the event was never journaled.
func (m *MongoDB) GetGiftEvent(ctx context.Context, eventID string) (*entity.GiftEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionGiftEvents)
	filter := bson.D{{Key: "event_id", Value: eventID}}
	var event entity.GiftEvent
	if err = collection.FindOne(ctx, filter).Decode(&event); err != nil {
		return nil, m.findError(err)
	}
	return &event, nil
}
