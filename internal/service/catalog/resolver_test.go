package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mamadbah2/warehouse/internal/metrics"
	"github.com/mamadbah2/warehouse/pkg/clients/moysklad"
)

type stubClient struct {
	rows    []moysklad.StockRow
	err     error
	storeID string
	block   bool
}

func (s *stubClient) StockReport(ctx context.Context, storeID string) ([]moysklad.StockRow, error) {
	s.storeID = storeID
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.rows, s.err
}

func TestSnapshot_Online(t *testing.T) {
	client := &stubClient{rows: []moysklad.StockRow{
		{Code: " 111 ", Article: "MUG-1", Name: "Кружка"},
		{Code: "111", Article: "DUP", Name: "Дубль"},
		{Code: "222", Article: "", Name: ""},
		{Code: "", Article: "X", Name: "Без кода"},
	}}
	resolver := NewResolver(client, "store-1", time.Second, metrics.New(), zap.NewNop())

	snapshot := resolver.Snapshot(context.Background())

	require.True(t, snapshot.Online)
	require.NoError(t, snapshot.Err)
	assert.Equal(t, "store-1", client.storeID)
	assert.Equal(t, 2, snapshot.Len())
	assert.Equal(t, Entry{Article: "MUG-1", Name: "Кружка"}, snapshot.Resolve("111"))
	assert.Equal(t, Entry{Article: PlaceholderArticle, Name: unnamedProduct}, snapshot.Resolve("222"))
	assert.Equal(t, Entry{Article: PlaceholderArticle, Name: PlaceholderName}, snapshot.Resolve("999"))
}

func TestSnapshot_FailureIsOffline(t *testing.T) {
	resolver := NewResolver(&stubClient{err: errors.New("401 unauthorized")}, "store-1", time.Second, nil, zap.NewNop())

	snapshot := resolver.Snapshot(context.Background())

	assert.False(t, snapshot.Online)
	assert.EqualError(t, snapshot.Err, "401 unauthorized")
	assert.Equal(t, PlaceholderName, snapshot.Resolve("111").Name)
}

func TestSnapshot_TimeoutIsOffline(t *testing.T) {
	resolver := NewResolver(&stubClient{block: true}, "store-1", 10*time.Millisecond, nil, nil)

	snapshot := resolver.Snapshot(context.Background())

	assert.False(t, snapshot.Online)
	assert.ErrorIs(t, snapshot.Err, context.DeadlineExceeded)
}

func TestSnapshot_NotConfigured(t *testing.T) {
	snapshot := NewResolver(nil, "", time.Second, nil, nil).Snapshot(context.Background())
	assert.ErrorIs(t, snapshot.Err, ErrNotConfigured)

	var resolver *Resolver
	assert.ErrorIs(t, resolver.Snapshot(context.Background()).Err, ErrNotConfigured)
}
