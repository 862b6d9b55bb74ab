package docstore

import (
	"context"
	"fmt"

	"github.com/majmadigital/finance-ledger/pkg/logger"
	"github.com/majmadigital/finance-ledger/pkg/mongo"
	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var indexes = map[string][]driver.IndexModel{
	membersCollection: {
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "matricule", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	commissionsCollection: {
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	contributionsCollection: {
		{Keys: bson.D{{Key: "transaction_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "member_id", Value: 1}, {Key: "created_at", Value: -1}}},
	},
	campaignsCollection: {
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	participantsCollection: {
		{Keys: bson.D{{Key: "campaign_id", Value: 1}, {Key: "member_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
}

// EnsureIndexes creates the unique and listing indexes. Creating an index that
// already exists with the same definition is a no-op on the server.
func EnsureIndexes(ctx context.Context, db *mongo.DB) error {
	for col, models := range indexes {
		names, err := db.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("create indexes on %s: %w", col, err)
		}
		logger.Debug("mongo indexes ensured", "collection", col, "indexes", names)
	}
	return nil
}
