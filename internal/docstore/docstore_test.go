package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/majmadigital/finance-ledger/internal/model"
	"github.com/majmadigital/finance-ledger/pkg/mongo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func newMockDB(mt *mtest.T) *mongo.DB {
	return mongo.New(mt.Client, mt.DB.Name())
}

func TestMemberStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	mt.Run("credit increments matched member", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))
		err := NewMemberStore(newMockDB(mt)).CreditContribution(ctx, "m-1", 500, at)
		assert.NoError(t, err)
	})

	mt.Run("credit on unknown member", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))
		err := NewMemberStore(newMockDB(mt)).CreditContribution(ctx, "missing", 500, at)
		assert.ErrorIs(t, err, model.ErrMemberNotFound)
	})

	mt.Run("get decodes financial stats", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + membersCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "m-1"},
			{Key: "matricule", Value: "MD-1"},
			{Key: "first_name", Value: "Awa"},
			{Key: "role", Value: "member"},
			{Key: "total_contributed", Value: int64(4200)},
		}))
		m, err := NewMemberStore(newMockDB(mt)).Get(ctx, "m-1")
		require.NoError(t, err)
		assert.Equal(t, "MD-1", m.Matricule)
		assert.Equal(t, int64(4200), m.FinancialStats.TotalContributed)
	})

	mt.Run("get unknown member", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + membersCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		_, err := NewMemberStore(newMockDB(mt)).Get(ctx, "missing")
		assert.ErrorIs(t, err, model.ErrMemberNotFound)
	})

	mt.Run("duplicate member", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "duplicate key error",
		}))
		_, err := NewMemberStore(newMockDB(mt)).Create(ctx, &model.Member{Matricule: "MD-1", Email: "a@b.c"})
		assert.ErrorIs(t, err, model.ErrDuplicateMember)
	})
}

func TestCommissionStore_Credit(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	mt.Run("returns the updated document", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: bson.D{
				{Key: "_id", Value: "c-1"},
				{Key: "name", Value: model.DefaultCommission},
				{Key: "balance", Value: int64(5000)},
				{Key: "total_raised", Value: int64(5000)},
				{Key: "last_activity", Value: at},
			}},
		})
		c, err := NewCommissionStore(newMockDB(mt)).Credit(ctx, model.DefaultCommission, 5000, at)
		require.NoError(t, err)
		assert.Equal(t, int64(5000), c.Balance)
		assert.Equal(t, model.DefaultCommission, c.Name)
	})
}

func TestContributionStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("duplicate transaction id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "E11000 duplicate key error",
		}))
		_, err := NewContributionStore(newMockDB(mt)).Create(ctx, &model.Contribution{
			MemberID:      "m-1",
			Type:          model.ContributionSass,
			Amount:        100,
			Status:        model.ContributionPaid,
			TransactionID: "tx-1",
		})
		assert.ErrorIs(t, err, model.ErrDuplicateTransactionID)
	})

	mt.Run("sum of an empty ledger", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + contributionsCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		sum, err := NewContributionStore(newMockDB(mt)).SumPaid(ctx)
		require.NoError(t, err)
		assert.Zero(t, sum)
	})

	mt.Run("sum by member", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + contributionsCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: int64(3000)},
		}))
		sum, err := NewContributionStore(newMockDB(mt)).SumPaidByMember(ctx, "m-1")
		require.NoError(t, err)
		assert.Equal(t, int64(3000), sum)
	})
}

func TestCampaignStore_ApplyPayment(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	mt.Run("missing participant on existing campaign", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + campaignsCollection
		mt.AddMockResponses(
			bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}},
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: 1}}),
		)
		_, err := NewCampaignStore(newMockDB(mt)).ApplyPayment(ctx, "camp-1", "m-1", 100, at)
		assert.ErrorIs(t, err, model.ErrParticipantNotFound)
	})

	mt.Run("unknown campaign", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + campaignsCollection
		mt.AddMockResponses(
			bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}},
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
		)
		_, err := NewCampaignStore(newMockDB(mt)).ApplyPayment(ctx, "missing", "m-1", 100, at)
		assert.ErrorIs(t, err, model.ErrCampaignNotFound)
	})

	mt.Run("status recomputed by the server", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: bson.D{
				{Key: "_id", Value: "p-1"},
				{Key: "campaign_id", Value: "camp-1"},
				{Key: "member_id", Value: "m-1"},
				{Key: "pledged_amount", Value: int64(1000)},
				{Key: "paid_amount", Value: int64(400)},
				{Key: "status", Value: "partial"},
			}},
		})
		p, err := NewCampaignStore(newMockDB(mt)).ApplyPayment(ctx, "camp-1", "m-1", 400, at)
		require.NoError(t, err)
		assert.Equal(t, model.ParticipantPartial, p.Status)
		assert.Equal(t, int64(400), p.PaidAmount)
	})
}

// commands returns the started commands named name, in order.
func commands(mt *mtest.T, name string) []bson.Raw {
	var out []bson.Raw
	for _, evt := range mt.GetAllStartedEvents() {
		if evt.CommandName == name {
			out = append(out, evt.Command)
		}
	}
	return out
}

func stages(t *testing.T, arr bson.Raw) []bson.Raw {
	t.Helper()
	values, err := arr.Values()
	require.NoError(t, err)
	out := make([]bson.Raw, 0, len(values))
	for _, v := range values {
		out = append(out, v.Document())
	}
	return out
}

func stageName(t *testing.T, stage bson.Raw) string {
	t.Helper()
	elems, err := stage.Elements()
	require.NoError(t, err)
	require.Len(t, elems, 1)
	return elems[0].Key()
}

func TestCampaignStore_Pledge(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	mt.Run("upserts with a server side pipeline", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + campaignsCollection
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: 1}}),
			bson.D{
				{Key: "ok", Value: 1},
				{Key: "value", Value: bson.D{
					{Key: "_id", Value: "p-1"},
					{Key: "campaign_id", Value: "camp-1"},
					{Key: "member_id", Value: "m-1"},
					{Key: "pledged_amount", Value: int64(1000)},
					{Key: "paid_amount", Value: int64(0)},
					{Key: "status", Value: "pledged"},
				}},
			},
		)

		p, err := NewCampaignStore(newMockDB(mt)).Pledge(ctx, "camp-1", "m-1", 1000, at)
		require.NoError(t, err)
		assert.Equal(t, model.ParticipantPledged, p.Status)
		assert.Equal(t, int64(1000), p.PledgedAmount)

		cmds := commands(mt, "findAndModify")
		require.Len(t, cmds, 1)
		cmd := cmds[0]
		assert.Equal(t, participantsCollection, cmd.Lookup("findAndModify").StringValue())
		assert.True(t, cmd.Lookup("upsert").Boolean())
		assert.True(t, cmd.Lookup("new").Boolean())
		assert.Equal(t, "camp-1", cmd.Lookup("query", "campaign_id").StringValue())
		assert.Equal(t, "m-1", cmd.Lookup("query", "member_id").StringValue())

		pipeline := stages(t, cmd.Lookup("update").Array())
		require.Len(t, pipeline, 2)
		assert.Equal(t, "$set", stageName(t, pipeline[0]))
		assert.Equal(t, "$set", stageName(t, pipeline[1]))

		set := pipeline[0].Lookup("$set").Document()
		assert.Equal(t, int64(1000), set.Lookup("pledged_amount").Int64())

		// an existing participant keeps its id, paid amount and creation time
		id, err := set.Lookup("_id", "$ifNull").Array().Values()
		require.NoError(t, err)
		require.Len(t, id, 2)
		assert.Equal(t, "$_id", id[0].StringValue())
		assert.NotEmpty(t, id[1].StringValue())

		paid, err := set.Lookup("paid_amount", "$ifNull").Array().Values()
		require.NoError(t, err)
		require.Len(t, paid, 2)
		assert.Equal(t, "$paid_amount", paid[0].StringValue())
		assert.Zero(t, paid[1].AsInt64())

		created, err := set.Lookup("created_at", "$ifNull").Array().Values()
		require.NoError(t, err)
		require.Len(t, created, 2)
		assert.Equal(t, "$created_at", created[0].StringValue())
		assert.Equal(t, at, created[1].Time().UTC())
	})

	mt.Run("status derived from paid and pledged amounts", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + campaignsCollection
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: 1}}),
			bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: bson.D{{Key: "_id", Value: "p-1"}}}},
		)

		_, err := NewCampaignStore(newMockDB(mt)).Pledge(ctx, "camp-1", "m-1", 1000, at)
		require.NoError(t, err)

		cmds := commands(mt, "findAndModify")
		require.Len(t, cmds, 1)
		pipeline := stages(t, cmds[0].Lookup("update").Array())
		require.Len(t, pipeline, 2)

		sw := pipeline[1].Lookup("$set", "status", "$switch").Document()
		assert.Equal(t, string(model.ParticipantCompleted), sw.Lookup("default").StringValue())

		branches := stages(t, sw.Lookup("branches").Array())
		require.Len(t, branches, 2)

		zero, err := branches[0].Lookup("case", "$eq").Array().Values()
		require.NoError(t, err)
		assert.Equal(t, "$paid_amount", zero[0].StringValue())
		assert.Zero(t, zero[1].AsInt64())
		assert.Equal(t, string(model.ParticipantPledged), branches[0].Lookup("then").StringValue())

		under, err := branches[1].Lookup("case", "$lt").Array().Values()
		require.NoError(t, err)
		assert.Equal(t, "$paid_amount", under[0].StringValue())
		assert.Equal(t, "$pledged_amount", under[1].StringValue())
		assert.Equal(t, string(model.ParticipantPartial), branches[1].Lookup("then").StringValue())
	})

	mt.Run("unknown campaign is not upserted", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + campaignsCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := NewCampaignStore(newMockDB(mt)).Pledge(ctx, "missing", "m-1", 1000, at)
		assert.ErrorIs(t, err, model.ErrCampaignNotFound)
		assert.Empty(t, commands(mt, "findAndModify"))
	})
}

func TestContributionStore_ListWithMembers(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	mt.Run("pages before joining members", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + contributionsCollection
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(3)}}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
				{Key: "_id", Value: "c-1"},
				{Key: "member_id", Value: "m-1"},
				{Key: "type", Value: string(model.ContributionDon)},
				{Key: "amount", Value: int64(700)},
				{Key: "status", Value: string(model.ContributionPaid)},
				{Key: "transaction_id", Value: "tx-1"},
				{Key: "created_at", Value: at},
				{Key: "member", Value: bson.D{
					{Key: "_id", Value: "m-1"},
					{Key: "matricule", Value: "MAJ-001"},
					{Key: "first_name", Value: "Awa"},
					{Key: "last_name", Value: "Ndiaye"},
				}},
			}),
		)

		memberID := "m-1"
		items, total, err := NewContributionStore(newMockDB(mt)).ListWithMembers(ctx, model.ContributionFilter{
			MemberID: &memberID,
			From:     &from,
			Limit:    5000,
			Offset:   10,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, items, 1)
		assert.Equal(t, "c-1", items[0].ID)
		assert.Equal(t, "Awa", items[0].Member.FirstName)
		assert.Equal(t, "MAJ-001", items[0].Member.Matricule)

		cmds := commands(mt, "aggregate")
		require.Len(t, cmds, 2)

		pipeline := stages(t, cmds[1].Lookup("pipeline").Array())
		var names []string
		for _, st := range pipeline {
			names = append(names, stageName(t, st))
		}
		assert.Equal(t, []string{"$match", "$sort", "$skip", "$limit", "$lookup", "$unwind"}, names)

		match := pipeline[0].Lookup("$match").Document()
		assert.Equal(t, "m-1", match.Lookup("member_id").StringValue())
		assert.Equal(t, from, match.Lookup("created_at", "$gte").Time().UTC())
		_, err = match.LookupErr("created_at", "$lt")
		assert.Error(t, err)

		sort, err := pipeline[1].Lookup("$sort").Document().Elements()
		require.NoError(t, err)
		require.Len(t, sort, 2)
		assert.Equal(t, "created_at", sort[0].Key())
		assert.Equal(t, int64(-1), sort[0].Value().AsInt64())
		assert.Equal(t, "_id", sort[1].Key())

		assert.Equal(t, int64(10), pipeline[2].Lookup("$skip").Int64())
		assert.Equal(t, int64(model.MaxListLimit), pipeline[3].Lookup("$limit").Int64())

		lookup := pipeline[4].Lookup("$lookup").Document()
		assert.Equal(t, membersCollection, lookup.Lookup("from").StringValue())
		assert.Equal(t, "member_id", lookup.Lookup("localField").StringValue())
		assert.Equal(t, "_id", lookup.Lookup("foreignField").StringValue())
		assert.Equal(t, "$member", pipeline[5].Lookup("$unwind").StringValue())
	})

	mt.Run("empty page", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + contributionsCollection
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
		)

		items, total, err := NewContributionStore(newMockDB(mt)).ListWithMembers(ctx, model.ContributionFilter{})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, items)

		cmds := commands(mt, "aggregate")
		require.Len(t, cmds, 2)
		pipeline := stages(t, cmds[1].Lookup("pipeline").Array())
		require.Len(t, pipeline, 6)
		assert.Equal(t, int64(model.DefaultListLimit), pipeline[3].Lookup("$limit").Int64())
	})
}
