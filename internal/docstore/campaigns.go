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

type CampaignStore struct {
	*mongo.DB
}

func NewCampaignStore(db *mongo.DB) *CampaignStore {
	return &CampaignStore{db}
}

func (s *CampaignStore) Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	doc := campaignDocument{
		ID:           c.ID,
		Name:         c.Name,
		Description:  c.Description,
		TargetAmount: c.TargetAmount,
		CreatedBy:    c.CreatedBy,
		CreatedAt:    c.CreatedAt,
	}
	if doc.ID == "" {
		doc.ID = pg.NewID()
	}
	if _, err := s.Collection(campaignsCollection).InsertOne(ctx, doc); err != nil {
		if driver.IsDuplicateKeyError(err) {
			return nil, model.ErrDuplicateCampaign
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *CampaignStore) Get(ctx context.Context, id string) (*model.Campaign, error) {
	var doc campaignDocument
	err := s.Collection(campaignsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, driver.ErrNoDocuments) {
			return nil, model.ErrCampaignNotFound
		}
		return nil, err
	}

	cur, err := s.Collection(participantsCollection).Find(ctx,
		bson.M{"campaign_id": id},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var parts []*participantDocument
	if err := cur.All(ctx, &parts); err != nil {
		return nil, err
	}

	c := doc.toModel()
	for _, p := range parts {
		c.Participants = append(c.Participants, p.toModel())
	}
	return c, nil
}

func (s *CampaignStore) exists(ctx context.Context, id string) (bool, error) {
	n, err := s.Collection(campaignsCollection).CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	return n > 0, err
}

// statusStage recomputes status from the fields written by the previous
// pipeline stage.
var statusStage = bson.D{{Key: "$set", Value: bson.M{
	"status": bson.M{"$switch": bson.M{
		"branches": bson.A{
			bson.M{"case": bson.M{"$eq": bson.A{"$paid_amount", 0}}, "then": string(model.ParticipantPledged)},
			bson.M{"case": bson.M{"$lt": bson.A{"$paid_amount", "$pledged_amount"}}, "then": string(model.ParticipantPartial)},
		},
		"default": string(model.ParticipantCompleted),
	}},
}}}

func (s *CampaignStore) Pledge(ctx context.Context, campaignID, memberID string, amount int64, at time.Time) (*model.CampaignParticipant, error) {
	ok, err := s.exists(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.ErrCampaignNotFound
	}

	pipeline := bson.A{
		bson.D{{Key: "$set", Value: bson.M{
			"_id":            bson.M{"$ifNull": bson.A{"$_id", pg.NewID()}},
			"pledged_amount": amount,
			"paid_amount":    bson.M{"$ifNull": bson.A{"$paid_amount", 0}},
			"created_at":     bson.M{"$ifNull": bson.A{"$created_at", at}},
			"updated_at":     at,
		}}},
		statusStage,
	}

	return s.updateParticipant(ctx, campaignID, memberID, pipeline, true)
}

func (s *CampaignStore) ApplyPayment(ctx context.Context, campaignID, memberID string, amount int64, at time.Time) (*model.CampaignParticipant, error) {
	pipeline := bson.A{
		bson.D{{Key: "$set", Value: bson.M{
			"paid_amount": bson.M{"$add": bson.A{"$paid_amount", amount}},
			"updated_at":  at,
		}}},
		statusStage,
	}

	p, err := s.updateParticipant(ctx, campaignID, memberID, pipeline, false)
	if errors.Is(err, model.ErrParticipantNotFound) {
		ok, existsErr := s.exists(ctx, campaignID)
		if existsErr != nil {
			return nil, existsErr
		}
		if !ok {
			return nil, model.ErrCampaignNotFound
		}
	}
	return p, err
}

func (s *CampaignStore) updateParticipant(ctx context.Context, campaignID, memberID string, pipeline bson.A, upsert bool) (*model.CampaignParticipant, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(upsert).
		SetReturnDocument(options.After)

	var doc participantDocument
	err := s.Collection(participantsCollection).FindOneAndUpdate(ctx,
		bson.M{"campaign_id": campaignID, "member_id": memberID},
		pipeline,
		opts,
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, driver.ErrNoDocuments) {
			return nil, model.ErrParticipantNotFound
		}
		return nil, err
	}
	return doc.toModel(), nil
}
