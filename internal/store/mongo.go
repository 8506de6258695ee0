package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/gencurrent/async-socket-exchange-rate/internal/model"
	"github.com/gencurrent/async-socket-exchange-rate/internal/rpcerr"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	assetCollection = "asset"
	rateCollection  = "exchangeRate"
)

// MongoStore is the Store implementation backed by the official MongoDB
// driver. It owns two collections, asset and exchangeRate, matching the
// persisted layout in the spec's external interfaces section.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	assets *mongo.Collection
	rates  *mongo.Collection
}

// Connect dials uri, selects database dbName and ensures the required
// indices exist. The returned *mongo.Client is safe for concurrent use
// by the ingestion workers and every connection's session.
func Connect(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(dbName)
	s := &MongoStore{
		client: client,
		db:     db,
		assets: db.Collection(assetCollection),
		rates:  db.Collection(rateCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.assets.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("ensure asset indexes: %w", err)
	}

	_, err = s.rates.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "asset", Value: 1}, {Key: "time", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("assetIdWithTime"),
		},
		{
			Keys:    bson.D{{Key: "asset", Value: 1}},
			Options: options.Index().SetName("asset"),
		},
	})
	if err != nil {
		return fmt.Errorf("ensure exchangeRate indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) InitializeAssets(ctx context.Context, names []string) error {
	existing, err := s.ListAssets(ctx)
	if err != nil {
		return fmt.Errorf("list assets during init: %w", err)
	}
	if len(existing) > 0 {
		byName := make(map[string]int64, len(existing))
		for _, a := range existing {
			byName[a.Name] = a.ID
		}
		for idx, name := range names {
			wantID := int64(idx + 1)
			gotID, ok := byName[name]
			if !ok || gotID != wantID {
				return fmt.Errorf("initialize assets: %w", rpcerr.ErrAlreadyPopulated)
			}
		}
		return fmt.Errorf("initialize assets: %w", rpcerr.ErrAlreadyPopulated)
	}

	if len(names) == 0 {
		return nil
	}

	docs := make([]interface{}, len(names))
	for idx, name := range names {
		docs[idx] = model.Asset{ID: int64(idx + 1), Name: name}
	}
	if _, err := s.assets.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert assets: %w", rpcerr.ErrAlreadyPopulated)
	}
	return nil
}

func (s *MongoStore) ListAssets(ctx context.Context) ([]model.Asset, error) {
	cur, err := s.assets.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find assets: %w", err)
	}
	defer cur.Close(ctx)

	var assets []model.Asset
	if err := cur.All(ctx, &assets); err != nil {
		return nil, fmt.Errorf("decode assets: %w", err)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].ID < assets[j].ID })
	return assets, nil
}

func (s *MongoStore) FindAssetByID(ctx context.Context, id int64) (*model.Asset, error) {
	var asset model.Asset
	err := s.assets.FindOne(ctx, bson.M{"id": id}).Decode(&asset)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find asset by id: %w", err)
	}
	return &asset, nil
}

// UpsertPoint relies entirely on the unique composite (asset, time)
// index for idempotence: it never does a read-then-write. A racing
// duplicate insert attempt is absorbed by upsert:true and $setOnInsert,
// which makes the second writer's call a no-op rather than an error.
func (s *MongoStore) UpsertPoint(ctx context.Context, assetID int64, time int64, value float64) (bool, error) {
	filter := bson.M{"asset": assetID, "time": time}
	update := bson.M{"$setOnInsert": bson.M{"asset": assetID, "time": time, "value": value}}
	result, err := s.rates.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return false, fmt.Errorf("upsert point: %w", err)
	}
	return result.UpsertedCount > 0, nil
}

func (s *MongoStore) LatestPoint(ctx context.Context, assetID int64) (*model.Rate, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "time", Value: -1}})
	var rate model.Rate
	err := s.rates.FindOne(ctx, bson.M{"asset": assetID}, opts).Decode(&rate)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest point: %w", err)
	}
	return &rate, nil
}

func (s *MongoStore) History(ctx context.Context, assetID int64, sinceTime int64) ([]model.Rate, error) {
	filter := bson.M{"asset": assetID, "time": bson.M{"$gte": sinceTime}}
	opts := options.Find().SetSort(bson.D{{Key: "time", Value: -1}})
	cur, err := s.rates.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer cur.Close(ctx)

	var rates []model.Rate
	if err := cur.All(ctx, &rates); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return rates, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
