package rechargeRepo

import (
	"context"
	"testing"
	"time"

	"harambee/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func toDoc(t *testing.T, v interface{}) bson.D {
	raw, err := bson.Marshal(v)
	require.NoError(t, err)
	var doc bson.D
	require.NoError(t, bson.Unmarshal(raw, &doc))
	return doc
}

func tokenWith(collected int64, status models.PaymentStatus) models.RechargeToken {
	return models.RechargeToken{
		ID:              "rt-1",
		Token:           "tok123",
		OwnerID:         "member-1",
		TargetAmount:    500,
		CollectedAmount: collected,
		Status:          models.RechargeTokenActive,
		ExpiresAt:       time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond),
		Contributions: []models.RechargeContribution{
			{CheckoutRequestID: "ws_CO_1", DonorName: "Wanjiru", Amount: 200, Status: status},
		},
	}
}

func commandNames(mt *mtest.T) []string {
	var names []string
	for _, evt := range mt.GetAllStartedEvents() {
		names = append(names, evt.CommandName)
	}
	return names
}

func TestResolveContribution(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("completion increments collected amount once", func(mt *mtest.T) {
		repo := &mongoRechargeTokenRepo{coll: mt.Coll}
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()

		after := tokenWith(300, models.PaymentCompleted)
		after.Contributions[0].MpesaReceiptNumber = "QAB12CD34"
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, toDoc(t, tokenWith(100, models.PaymentPending))),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, toDoc(t, after)),
		)

		got, err := repo.ResolveContribution(context.Background(), "tok123", "ws_CO_1", models.PaymentCompleted, "QAB12CD34")
		require.NoError(t, err)
		assert.Equal(t, int64(300), got.CollectedAmount)
		assert.Equal(t, models.RechargeTokenActive, got.Status)

		events := mt.GetAllStartedEvents()
		require.Len(t, events, 4)
		assert.Equal(t, "update", events[1].CommandName)

		cmd := events[1].Command
		ne := cmd.Lookup("updates", "0", "q", "contributions", "$elemMatch", "status", "$ne")
		assert.Equal(t, string(models.PaymentCompleted), ne.StringValue())
		id := cmd.Lookup("updates", "0", "q", "contributions", "$elemMatch", "checkoutRequestId")
		assert.Equal(t, "ws_CO_1", id.StringValue())
		assert.Equal(t, int64(200), cmd.Lookup("updates", "0", "u", "$inc", "collectedAmount").Int64())
		assert.Equal(t, "QAB12CD34", cmd.Lookup("updates", "0", "u", "$set", "contributions.$.mpesaReceiptNumber").StringValue())

		assert.Equal(t, "update", events[2].CommandName)
		expr := events[2].Command.Lookup("updates", "0", "q", "$expr", "$gte").Array()
		first, err := expr.IndexErr(0)
		require.NoError(t, err)
		assert.Equal(t, "$collectedAmount", first.Value().StringValue())
	})

	mt.Run("second resolve leaves collected amount unchanged", func(mt *mtest.T) {
		repo := &mongoRechargeTokenRepo{coll: mt.Coll}
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()

		settled := tokenWith(300, models.PaymentCompleted)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, toDoc(t, settled)))

		got, err := repo.ResolveContribution(context.Background(), "tok123", "ws_CO_1", models.PaymentCompleted, "QAB12CD34")
		require.NoError(t, err)
		assert.Equal(t, int64(300), got.CollectedAmount)
		assert.Equal(t, []string{"find"}, commandNames(mt))
	})

	mt.Run("failed attempt carries no increment", func(mt *mtest.T) {
		repo := &mongoRechargeTokenRepo{coll: mt.Coll}
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, toDoc(t, tokenWith(100, models.PaymentFailed))),
		)

		got, err := repo.ResolveContribution(context.Background(), "tok123", "ws_CO_1", models.PaymentFailed, "")
		require.NoError(t, err)
		assert.Equal(t, int64(100), got.CollectedAmount)

		events := mt.GetAllStartedEvents()
		require.Len(t, events, 2)
		_, err = events[0].Command.LookupErr("updates", "0", "u", "$inc")
		assert.Error(t, err)
	})

	mt.Run("reaching the target completes the token", func(mt *mtest.T) {
		repo := &mongoRechargeTokenRepo{coll: mt.Coll}
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()

		before := tokenWith(300, models.PaymentPending)
		before.Contributions[0].Amount = 200
		after := tokenWith(500, models.PaymentCompleted)
		after.Status = models.RechargeTokenCompleted
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, toDoc(t, before)),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, toDoc(t, after)),
		)

		got, err := repo.ResolveContribution(context.Background(), "tok123", "ws_CO_1", models.PaymentCompleted, "QAB12CD35")
		require.NoError(t, err)
		assert.Equal(t, models.RechargeTokenCompleted, got.Status)
		assert.Equal(t, int64(500), got.CollectedAmount)

		events := mt.GetAllStartedEvents()
		require.Len(t, events, 4)
		set := events[2].Command.Lookup("updates", "0", "u", "$set", "status")
		assert.Equal(t, string(models.RechargeTokenCompleted), set.StringValue())
		status := events[2].Command.Lookup("updates", "0", "q", "status")
		assert.Equal(t, string(models.RechargeTokenActive), status.StringValue())
	})

	mt.Run("unknown token", func(mt *mtest.T) {
		repo := &mongoRechargeTokenRepo{coll: mt.Coll}
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := repo.ResolveContribution(context.Background(), "missing", "ws_CO_1", models.PaymentCompleted, "QAB12CD34")
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})
}
