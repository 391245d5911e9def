package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/restaurant-ordering/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type cartDocument struct {
	Key       string         `bson:"_id"`
	Items     []lineDocument `bson:"items"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

// lineDocument stores the price as a decimal string; BSON doubles would lose cents.
type lineDocument struct {
	DishID              int64  `bson:"dish_id"`
	Name                string `bson:"name"`
	UnitPrice           string `bson:"unit_price"`
	Quantity            int    `bson:"quantity"`
	SpecialInstructions string `bson:"special_instructions,omitempty"`
}

type MongoStorage struct {
	collection *mongo.Collection
}

func NewMongoStorage(db *mongo.Database) *MongoStorage {
	return &MongoStorage{
		collection: db.Collection("carts"),
	}
}

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

func (m *MongoStorage) Load(ctx context.Context, key string) (domain.Cart, error) {
	var doc cartDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Cart{}, ErrCartNotFound
		}
		return domain.Cart{}, fmt.Errorf("failed to get cart: %w", err)
	}

	items := make([]domain.CartLineItem, 0, len(doc.Items))
	for _, line := range doc.Items {
		price, errPrice := decimal.NewFromString(line.UnitPrice)
		if errPrice != nil {
			return domain.Cart{}, fmt.Errorf("%w: dish %d price %q", ErrCorruptCart, line.DishID, line.UnitPrice)
		}
		items = append(items, domain.CartLineItem{
			DishID:              line.DishID,
			Name:                line.Name,
			UnitPrice:           price,
			Quantity:            line.Quantity,
			SpecialInstructions: line.SpecialInstructions,
		})
	}

	return domain.Cart{Items: items}, nil
}

func (m *MongoStorage) Save(ctx context.Context, key string, cart domain.Cart) error {
	doc := cartDocument{
		Key:       key,
		Items:     make([]lineDocument, len(cart.Items)),
		UpdatedAt: time.Now(),
	}
	for i, item := range cart.Items {
		doc.Items[i] = lineDocument{
			DishID:              item.DishID,
			Name:                item.Name,
			UnitPrice:           item.UnitPrice.String(),
			Quantity:            item.Quantity,
			SpecialInstructions: item.SpecialInstructions,
		}
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := m.collection.ReplaceOne(ctx, bson.M{"_id": key}, doc, opts); err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}
	return nil
}

func (m *MongoStorage) Delete(ctx context.Context, key string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

func (m *MongoStorage) Ping(ctx context.Context) error {
	return m.collection.Database().Client().Ping(ctx, nil)
}

func (m *MongoStorage) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
