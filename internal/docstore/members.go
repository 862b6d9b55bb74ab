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

type MemberStore struct {
	*mongo.DB
}

func NewMemberStore(db *mongo.DB) *MemberStore {
	return &MemberStore{db}
}

func (s *MemberStore) Create(ctx context.Context, m *model.Member) (*model.Member, error) {
	doc := memberDocument{
		ID:           m.ID,
		Matricule:    m.Matricule,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		Email:        m.Email,
		Role:         string(m.Role),
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
	}
	if doc.ID == "" {
		doc.ID = pg.NewID()
	}
	if doc.Role == "" {
		doc.Role = string(model.RoleMember)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	if _, err := s.Collection(membersCollection).InsertOne(ctx, doc); err != nil {
		if driver.IsDuplicateKeyError(err) {
			return nil, model.ErrDuplicateMember
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *MemberStore) Get(ctx context.Context, id string) (*model.Member, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MemberStore) GetByEmail(ctx context.Context, email string) (*model.Member, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *MemberStore) findOne(ctx context.Context, filter bson.M) (*model.Member, error) {
	var doc memberDocument
	err := s.Collection(membersCollection).FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, driver.ErrNoDocuments) {
			return nil, model.ErrMemberNotFound
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *MemberStore) CreditContribution(ctx context.Context, memberID string, amount int64, at time.Time) error {
	res, err := s.Collection(membersCollection).UpdateOne(ctx,
		bson.M{"_id": memberID},
		bson.M{
			"$inc": bson.M{"total_contributed": amount},
			"$set": bson.M{"last_contribution_date": at},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return model.ErrMemberNotFound
	}
	return nil
}

func (s *MemberStore) ListIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = model.DefaultListLimit
	}
	filter := bson.M{}
	if afterID != "" {
		filter["_id"] = bson.M{"$gt": afterID}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"_id": 1})

	cur, err := s.Collection(membersCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}
