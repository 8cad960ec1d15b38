package host_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/commercekit/skrill-gateway/internal/host"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisAttributes(t *testing.T) {
	ctx := context.Background()
	store := host.RedisAttributes{R: testRedis(t)}

	value, err := store.Get(ctx, "order:42", "SkrillRefundGuid")
	require.NoError(t, err)
	require.Empty(t, value)

	require.NoError(t, store.Set(ctx, "order:42", "SkrillRefundGuid", "guid-1"))
	value, err = store.Get(ctx, "order:42", "SkrillRefundGuid")
	require.NoError(t, err)
	require.Equal(t, "guid-1", value)

	require.NoError(t, store.Delete(ctx, "order:42", "SkrillRefundGuid"))
	value, err = store.Get(ctx, "order:42", "SkrillRefundGuid")
	require.NoError(t, err)
	require.Empty(t, value)
}

func TestRedisAttributesSetIfChanged(t *testing.T) {
	ctx := context.Background()
	store := host.RedisAttributes{R: testRedis(t)}

	changed, err := store.SetIfChanged(ctx, "order:42", "SkrillRefundGuid", "guid-1")
	require.NoError(t, err)
	require.True(t, changed)

	// same value again is a no-op
	changed, err = store.SetIfChanged(ctx, "order:42", "SkrillRefundGuid", "guid-1")
	require.NoError(t, err)
	require.False(t, changed)

	changed, err = store.SetIfChanged(ctx, "order:42", "SkrillRefundGuid", "guid-2")
	require.NoError(t, err)
	require.True(t, changed)

	value, err := store.Get(ctx, "order:42", "SkrillRefundGuid")
	require.NoError(t, err)
	require.Equal(t, "guid-2", value)
}

func TestRedisPendingCheckouts(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store := host.RedisPendingCheckouts{
		R:   redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		TTL: time.Minute,
	}

	pending := host.PendingCheckout{
		OrderGuid:    uuid.New(),
		CustomerID:   731,
		Total:        19.5,
		CurrencyCode: "EUR",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Save(ctx, pending))

	loaded, err := store.Load(ctx, pending.OrderGuid)
	require.NoError(t, err)
	require.Equal(t, pending, loaded)

	_, err = store.Load(ctx, uuid.New())
	require.ErrorIs(t, err, host.ErrNotFound)

	mr.FastForward(2 * time.Minute)
	_, err = store.Load(ctx, pending.OrderGuid)
	require.ErrorIs(t, err, host.ErrNotFound)

	require.NoError(t, store.Delete(ctx, pending.OrderGuid))
}

func TestBaseURLRoutes(t *testing.T) {
	routes := host.BaseURLRoutes{
		BaseURL: "https://shop.example.com/",
		Paths: map[string]string{
			"CheckoutCompleted": "/checkout/completed/{orderId}",
			"OrderDetails":      "/order/details/{orderId}",
		},
	}
	require.Equal(t, "https://shop.example.com/checkout/completed/42",
		routes.RouteURL("CheckoutCompleted", "orderId", "42"))
	require.Equal(t, "https://shop.example.com", routes.RouteURL("Unknown"))
}

func TestRateConverter(t *testing.T) {
	ctx := context.Background()
	conv := host.RateConverter{Base: "EUR", Rates: map[string]float64{"USD": 1.25}}

	amount, err := conv.Convert(ctx, 10, "EUR", "USD")
	require.NoError(t, err)
	require.InDelta(t, 12.5, amount, 1e-9)

	amount, err = conv.Convert(ctx, 12.5, "USD", "EUR")
	require.NoError(t, err)
	require.InDelta(t, 10, amount, 1e-9)

	amount, err = conv.Convert(ctx, 7, "GBP", "GBP")
	require.NoError(t, err)
	require.Equal(t, 7.0, amount)

	_, err = conv.Convert(ctx, 7, "GBP", "EUR")
	require.Error(t, err)
}
