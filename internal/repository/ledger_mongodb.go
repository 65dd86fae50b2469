package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"boxshop-api/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDBLedgerRepository implements LedgerRepository using MongoDB.
// Transactions need a replica set (a single-node replica set is enough).
type MongoDBLedgerRepository struct {
	client *mongo.Client
	db     *mongo.Database
	stock  *mongo.Collection
	events *mongo.Collection
	meta   *mongo.Collection
}

// NewMongoDBLedgerRepository creates a new MongoDB ledger repository.
func NewMongoDBLedgerRepository(uri, database string) (*MongoDBLedgerRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	repo := &MongoDBLedgerRepository{
		client: client,
		db:     db,
		stock:  db.Collection("stock"),
		events: db.Collection("purchase_events"),
		meta:   db.Collection("meta_flags"),
	}

	indexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "actor", Value: 1},
			{Key: "category", Value: 1},
			{Key: "created_at", Value: 1},
		},
	}
	if _, err := repo.events.Indexes().CreateOne(ctx, indexModel); err != nil {
		log.Printf("[MongoDB] Warning: failed to create index: %v", err)
	}

	log.Printf("[MongoDB] Connected to %s", database)
	return repo, nil
}

type stockDocument struct {
	Category string `bson:"_id"`
	Quantity int    `bson:"quantity"`
}

type eventDocument struct {
	ID        string `bson:"_id"`
	Actor     string `bson:"actor"`
	Category  string `bson:"category"`
	Quantity  int    `bson:"quantity"`
	CreatedAt int64  `bson:"created_at"`
}

type metaDocument struct {
	Key   string `bson:"_id"`
	Value string `bson:"value"`
}

type windowGroup struct {
	Category string `bson:"_id"`
	Total    int    `bson:"total"`
	Earliest int64  `bson:"earliest"`
}

// WithTx runs fn inside a session transaction. The session travels in the
// context, so collection calls made with it join the transaction.
func (r *MongoDBLedgerRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// SeedCategories creates zero-quantity stock documents for missing categories.
func (r *MongoDBLedgerRepository) SeedCategories(ctx context.Context, categories []model.Category) error {
	opts := options.Update().SetUpsert(true)
	for _, c := range categories {
		filter := bson.M{"_id": string(c)}
		update := bson.M{"$setOnInsert": bson.M{"quantity": 0}}
		if _, err := r.stock.UpdateOne(ctx, filter, update, opts); err != nil {
			return fmt.Errorf("failed to seed category %s: %w", c, err)
		}
	}
	return nil
}

// GetQuantity returns on-hand stock; unknown categories yield 0.
func (r *MongoDBLedgerRepository) GetQuantity(ctx context.Context, category model.Category) (int, error) {
	var doc stockDocument
	err := r.stock.FindOne(ctx, bson.M{"_id": string(category)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get quantity: %w", err)
	}
	return doc.Quantity, nil
}

// GetAllStock returns every stock document ordered by category.
func (r *MongoDBLedgerRepository) GetAllStock(ctx context.Context) ([]model.StockRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.stock.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []stockDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode stock: %w", err)
	}

	out := make([]model.StockRecord, len(docs))
	for i, d := range docs {
		out[i] = model.StockRecord{Category: model.Category(d.Category), Quantity: d.Quantity}
	}
	return out, nil
}

// Increment adds amount to the category's stock, creating the document if needed.
func (r *MongoDBLedgerRepository) Increment(ctx context.Context, category model.Category, amount int) error {
	filter := bson.M{"_id": string(category)}
	update := bson.M{"$inc": bson.M{"quantity": amount}}
	if _, err := r.stock.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}
	return nil
}

// TryDecrement subtracts amount only if the filter still sees enough stock.
func (r *MongoDBLedgerRepository) TryDecrement(ctx context.Context, category model.Category, amount int) (bool, error) {
	filter := bson.M{"_id": string(category), "quantity": bson.M{"$gte": amount}}
	update := bson.M{"$inc": bson.M{"quantity": -amount}}
	res, err := r.stock.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

// AppendPurchaseEvent appends to the purchase log.
func (r *MongoDBLedgerRepository) AppendPurchaseEvent(ctx context.Context, ev model.PurchaseEvent) error {
	doc := eventDocument{
		ID:        ev.ID,
		Actor:     ev.Actor,
		Category:  string(ev.Category),
		Quantity:  ev.Quantity,
		CreatedAt: ev.Timestamp.Unix(),
	}
	if _, err := r.events.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to append purchase event: %w", err)
	}
	return nil
}

// window groups the actor's in-window events by category.
func (r *MongoDBLedgerRepository) window(ctx context.Context, match bson.M) (map[model.Category]windowGroup, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":      "$category",
			"total":    bson.M{"$sum": "$quantity"},
			"earliest": bson.M{"$min": "$created_at"},
		}}},
	}

	cursor, err := r.events.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate window: %w", err)
	}
	defer cursor.Close(ctx)

	var groups []windowGroup
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode window: %w", err)
	}

	out := make(map[model.Category]windowGroup, len(groups))
	for _, g := range groups {
		out[model.Category(g.Category)] = g
	}
	return out, nil
}

// SumWindow sums the actor's quantities in category strictly after cutoff.
func (r *MongoDBLedgerRepository) SumWindow(ctx context.Context, actor string, category model.Category, cutoff time.Time) (int, error) {
	groups, err := r.window(ctx, bson.M{
		"actor":      actor,
		"category":   string(category),
		"created_at": bson.M{"$gt": cutoff.Unix()},
	})
	if err != nil {
		return 0, err
	}
	return groups[category].Total, nil
}

// EarliestInWindow returns the oldest event time strictly after cutoff.
func (r *MongoDBLedgerRepository) EarliestInWindow(ctx context.Context, actor string, category model.Category, cutoff time.Time) (time.Time, error) {
	groups, err := r.window(ctx, bson.M{
		"actor":      actor,
		"category":   string(category),
		"created_at": bson.M{"$gt": cutoff.Unix()},
	})
	if err != nil {
		return time.Time{}, err
	}
	g, ok := groups[category]
	if !ok {
		return time.Time{}, nil
	}
	return time.Unix(g.Earliest, 0).UTC(), nil
}

// WindowTotals sums the actor's quantities per category strictly after cutoff.
func (r *MongoDBLedgerRepository) WindowTotals(ctx context.Context, actor string, cutoff time.Time) (map[model.Category]int, error) {
	groups, err := r.window(ctx, bson.M{
		"actor":      actor,
		"created_at": bson.M{"$gt": cutoff.Unix()},
	})
	if err != nil {
		return nil, err
	}
	totals := make(map[model.Category]int, len(groups))
	for c, g := range groups {
		totals[c] = g.Total
	}
	return totals, nil
}

// DeletePurchaseEvents removes the actor's events, or all events when actor is empty.
func (r *MongoDBLedgerRepository) DeletePurchaseEvents(ctx context.Context, actor string) (int64, error) {
	filter := bson.M{}
	if actor != "" {
		filter["actor"] = actor
	}
	res, err := r.events.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete purchase events: %w", err)
	}
	return res.DeletedCount, nil
}

// GetMeta reads a meta flag.
func (r *MongoDBLedgerRepository) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var doc metaDocument
	err := r.meta.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get meta %s: %w", key, err)
	}
	return doc.Value, true, nil
}

// SetMeta inserts or replaces a meta flag.
func (r *MongoDBLedgerRepository) SetMeta(ctx context.Context, key, value string) error {
	filter := bson.M{"_id": key}
	update := bson.M{"$set": bson.M{"value": value}}
	if _, err := r.meta.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to set meta %s: %w", key, err)
	}
	return nil
}

// GetStats returns statistics about the ledger collections.
func (r *MongoDBLedgerRepository) GetStats(ctx context.Context) (*model.LedgerStats, error) {
	stock, err := r.GetAllStock(ctx)
	if err != nil {
		return nil, err
	}

	count, err := r.events.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to count purchase events: %w", err)
	}
	stats := &model.LedgerStats{Backend: "mongodb", Stock: stock, PurchaseEvents: count}

	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var last eventDocument
	if err := r.events.FindOne(ctx, bson.M{}, opts).Decode(&last); err == nil {
		t := time.Unix(last.CreatedAt, 0).UTC()
		stats.LastPurchase = &t
	}
	return stats, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBLedgerRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

// Ensure MongoDBLedgerRepository implements LedgerRepository
var _ LedgerRepository = (*MongoDBLedgerRepository)(nil)
