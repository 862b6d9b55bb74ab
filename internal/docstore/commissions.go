package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/majmadigital/finance-ledger/internal/model"
	"github.com/majmadigital/finance-ledger/pkg/mongo"
	"github.com/majmadigital/finance-ledger/pkg/pg"
	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CommissionStore struct {
	*mongo.DB
}

func NewCommissionStore(db *mongo.DB) *CommissionStore {
	return &CommissionStore{db}
}

// Credit increments the commission with $inc, creating it on first use.
func (s *CommissionStore) Credit(ctx context.Context, name string, amount int64, at time.Time) (*model.Commission, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc commissionDocument
	err := s.Collection(commissionsCollection).FindOneAndUpdate(ctx,
		bson.M{"name": name},
		bson.M{
			"$inc":         bson.M{"balance": amount, "total_raised": amount},
			"$set":         bson.M{"last_activity": at},
			"$setOnInsert": bson.M{"_id": pg.NewID(), "created_at": at},
		},
		opts,
	).Decode(&doc)
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *CommissionStore) GetByName(ctx context.Context, name string) (*model.Commission, error) {
	var doc commissionDocument
	err := s.Collection(commissionsCollection).FindOne(ctx, bson.M{"name": name}).Decode(&doc)
	if err != nil {
		if errors.Is(err, driver.ErrNoDocuments) {
			return nil, model.ErrCommissionNotFound
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *CommissionStore) List(ctx context.Context) ([]*model.Commission, error) {
	cur, err := s.Collection(commissionsCollection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []*commissionDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*model.Commission, len(docs))
	for i, d := range docs {
		out[i] = d.toModel()
	}
	return out, nil
}
