package docstore

import (
	"context"
	"errors"

	"github.com/majmadigital/finance-ledger/internal/model"
	"github.com/majmadigital/finance-ledger/pkg/mongo"
	"github.com/majmadigital/finance-ledger/pkg/pg"
	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
)

type ContributionStore struct {
	*mongo.DB
}

func NewContributionStore(db *mongo.DB) *ContributionStore {
	return &ContributionStore{db}
}

func (s *ContributionStore) Create(ctx context.Context, c *model.Contribution) (*model.Contribution, error) {
	doc := contributionDocument{
		ID:            c.ID,
		MemberID:      c.MemberID,
		Type:          string(c.Type),
		Amount:        c.Amount,
		Status:        string(c.Status),
		TransactionID: c.TransactionID,
		EventLabel:    c.EventLabel,
		ProcessedBy:   c.ProcessedBy,
		CampaignID:    c.CampaignID,
		CreatedAt:     c.CreatedAt,
	}
	if doc.ID == "" {
		doc.ID = pg.NewID()
	}

	if _, err := s.Collection(contributionsCollection).InsertOne(ctx, doc); err != nil {
		if driver.IsDuplicateKeyError(err) {
			return nil, model.ErrDuplicateTransactionID
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *ContributionStore) GetByTransactionID(ctx context.Context, transactionID string) (*model.Contribution, error) {
	var doc contributionDocument
	err := s.Collection(contributionsCollection).
		FindOne(ctx, bson.M{"transaction_id": transactionID}).
		Decode(&doc)
	if err != nil {
		if errors.Is(err, driver.ErrNoDocuments) {
			return nil, model.ErrContributionNotFound
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func contributionMatch(f model.ContributionFilter) bson.M {
	match := bson.M{}
	if f.MemberID != nil && *f.MemberID != "" {
		match["member_id"] = *f.MemberID
	}
	if f.Type != nil && *f.Type != "" {
		match["type"] = string(*f.Type)
	}
	if f.From != nil || f.To != nil {
		rng := bson.M{}
		if f.From != nil {
			rng["$gte"] = *f.From
		}
		if f.To != nil {
			rng["$lt"] = *f.To
		}
		match["created_at"] = rng
	}
	return match
}

// ListWithMembers sorts before joining so the $lookup only runs for the
// returned page.
func (s *ContributionStore) ListWithMembers(ctx context.Context, f model.ContributionFilter) ([]*model.ContributionWithMember, int64, error) {
	f = f.Normalize()
	match := contributionMatch(f)
	col := s.Collection(contributionsCollection)

	total, err := col.CountDocuments(ctx, match)
	if err != nil {
		return nil, 0, err
	}

	pipeline := driver.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$skip", Value: int64(f.Offset)}},
		{{Key: "$limit", Value: int64(f.Limit)}},
		{{Key: "$lookup", Value: bson.M{
			"from":         membersCollection,
			"localField":   "member_id",
			"foreignField": "_id",
			"as":           "member",
		}}},
		{{Key: "$unwind", Value: "$member"}},
	}

	cur, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, err
	}
	var docs []*contributionDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}

	out := make([]*model.ContributionWithMember, 0, len(docs))
	for _, d := range docs {
		row := &model.ContributionWithMember{Contribution: *d.toModel()}
		if d.Member != nil {
			row.Member = model.MemberSummary{
				ID:        d.Member.ID,
				FirstName: d.Member.FirstName,
				LastName:  d.Member.LastName,
				Matricule: d.Member.Matricule,
			}
		}
		out = append(out, row)
	}
	return out, total, nil
}

func (s *ContributionStore) SumPaidByMember(ctx context.Context, memberID string) (int64, error) {
	return s.sum(ctx, bson.M{"member_id": memberID, "status": string(model.ContributionPaid)})
}

func (s *ContributionStore) SumPaid(ctx context.Context) (int64, error) {
	return s.sum(ctx, bson.M{"status": string(model.ContributionPaid)})
}

func (s *ContributionStore) sum(ctx context.Context, match bson.M) (int64, error) {
	pipeline := driver.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$amount"}}}},
	}
	cur, err := s.Collection(contributionsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	var res []struct {
		Total int64 `bson:"total"`
	}
	if err := cur.All(ctx, &res); err != nil {
		return 0, err
	}
	if len(res) == 0 {
		return 0, nil
	}
	return res[0].Total, nil
}
