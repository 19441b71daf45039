package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/finsight/internal/model"
)

func newTestService(t *testing.T) *AnalyticsService {
	t.Helper()
	eng, err := New(DefaultConfig())
	require.NoError(t, err)
	return NewAnalyticsService(eng)
}

func TestAnalyzeCachesByBatch(t *testing.T) {
	svc := newTestService(t)
	txns := mixedBatch()

	first, err := svc.Analyze(context.Background(), "user-1", txns)
	require.NoError(t, err)
	second, err := svc.Analyze(context.Background(), "user-1", txns)
	require.NoError(t, err)

	// Same pointer back means the cache served it.
	assert.Same(t, first, second)
}

func TestAnalyzeMissesOnChangedBatch(t *testing.T) {
	svc := newTestService(t)
	txns := mixedBatch()

	first, err := svc.Analyze(context.Background(), "user-1", txns)
	require.NoError(t, err)

	grown := append(txns, &model.Transaction{ID: "extra", MerchantName: "Kiosk", Amount: 3})
	second, err := svc.Analyze(context.Background(), "user-1", grown)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
}

func TestAnalyzeIsolatesUsers(t *testing.T) {
	svc := newTestService(t)
	txns := mixedBatch()

	first, err := svc.Analyze(context.Background(), "user-1", txns)
	require.NoError(t, err)
	other, err := svc.Analyze(context.Background(), "user-2", txns)
	require.NoError(t, err)

	assert.NotSame(t, first, other)
}

func TestInvalidateDropsOnlyOneUser(t *testing.T) {
	svc := newTestService(t)
	txns := mixedBatch()

	u1, err := svc.Analyze(context.Background(), "user-1", txns)
	require.NoError(t, err)
	u2, err := svc.Analyze(context.Background(), "user-2", txns)
	require.NoError(t, err)

	svc.Invalidate("user-1")

	again1, err := svc.Analyze(context.Background(), "user-1", txns)
	require.NoError(t, err)
	again2, err := svc.Analyze(context.Background(), "user-2", txns)
	require.NoError(t, err)

	assert.NotSame(t, u1, again1)
	assert.Same(t, u2, again2)
}

func TestResultKeyOrderIndependent(t *testing.T) {
	a := &model.Transaction{ID: "a"}
	b := &model.Transaction{ID: "b"}

	k1 := resultKey("u", []*model.Transaction{a, b})
	k2 := resultKey("u", []*model.Transaction{b, a})
	assert.Equal(t, k1, k2)

	assert.NotEqual(t, k1, resultKey("v", []*model.Transaction{a, b}))
}
