package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramtunguturi36/cvb/internal/model"
)

func TestTransactionRepo_CreateDuplicateOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "a@x.com")
	v := f.video(t, "v")

	txn := model.Transaction{UserID: u.ID, VideoID: v.ID, GatewayOrderID: "order_1", AmountINR: 99}
	require.NoError(t, f.txns.Create(ctx, &txn))
	assert.Equal(t, model.TxnCreated, txn.Status)
	assert.Equal(t, model.CurrencyINR, txn.Currency)

	dup := model.Transaction{UserID: u.ID, VideoID: v.ID, GatewayOrderID: "order_1", AmountINR: 99}
	assert.ErrorIs(t, f.txns.Create(ctx, &dup), ErrDuplicateOrder)
}

func TestTransactionRepo_MarkPaidOnlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "a@x.com")
	v := f.video(t, "v")
	txn := model.Transaction{UserID: u.ID, VideoID: v.ID, GatewayOrderID: "order_1", AmountINR: 99}
	require.NoError(t, f.txns.Create(ctx, &txn))

	for i, want := range []bool{true, false} {
		tx, err := f.db.BeginTx(ctx, nil)
		require.NoError(t, err)
		ok, err := f.txns.MarkPaidTx(ctx, tx, "order_1", "pay_1", "sig")
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
		assert.Equal(t, want, ok, "attempt %d", i)
	}

	got, err := f.txns.GetByOrderID(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, model.TxnPaid, got.Status)
	assert.Equal(t, "pay_1", got.GatewayPaymentID)
	assert.Equal(t, "sig", got.GatewaySignature)

	// a paid order can no longer fail
	ok, err := f.txns.MarkFailed(ctx, "order_1", u.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTransactionRepo_MarkFailedRequiresOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "a@x.com")
	other := f.user(t, "b@x.com")
	v := f.video(t, "v")
	txn := model.Transaction{UserID: u.ID, VideoID: v.ID, GatewayOrderID: "order_1", AmountINR: 99}
	require.NoError(t, f.txns.Create(ctx, &txn))

	ok, err := f.txns.MarkFailed(ctx, "order_1", other.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.txns.MarkFailed(ctx, "order_1", u.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	tx, err := f.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	paid, err := f.txns.MarkPaidTx(ctx, tx, "order_1", "pay", "sig")
	require.NoError(t, err)
	assert.False(t, paid, "failed is terminal")
}

func TestTransactionRepo_Listings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "a@x.com")
	v1 := f.video(t, "one")
	v2 := f.video(t, "two")

	for i, vid := range []uint64{v1.ID, v1.ID, v2.ID} {
		txn := model.Transaction{UserID: u.ID, VideoID: vid, GatewayOrderID: "order_" + string(rune('a'+i)), AmountINR: 99}
		require.NoError(t, f.txns.Create(ctx, &txn))
	}
	for _, id := range []string{"order_a", "order_b"} {
		tx, err := f.db.BeginTx(ctx, nil)
		require.NoError(t, err)
		_, err = f.txns.MarkPaidTx(ctx, tx, id, "pay_"+id, "sig")
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
	}

	mine, err := f.txns.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, "order_c", mine[0].GatewayOrderID)
	assert.Equal(t, "two", mine[0].Video.Title)

	all, err := f.txns.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a@x.com", all[0].UserEmail)

	paid, err := f.txns.PaidPurchases(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, paid, 1, "two paid orders for the same video collapse into one purchase")
	assert.Equal(t, v1.ID, paid[0].VideoID)
}

func TestTransactionRepo_GetByOrderIDNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.txns.GetByOrderID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}
