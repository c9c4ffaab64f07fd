package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshfoundry/idhub/pkg/observability"
)

func openTestTrail(t *testing.T) *Trail {
	t.Helper()
	trail, err := Open(filepath.Join(t.TempDir(), "audit.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { trail.Close() })
	return trail
}

func TestTrailRecordAndRecent(t *testing.T) {
	trail := openTestTrail(t)
	ctx := context.Background()

	trail.Record(ctx, "service_account.create", "admin", map[string]string{"name": "reporting"})
	trail.Record(ctx, "identity_provider_links.reconcile", "operator", map[string]string{"total": "4"})

	events, err := trail.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Newest first
	assert.Equal(t, "identity_provider_links.reconcile", events[0].Action)
	assert.Equal(t, "operator", events[0].Subject)
	assert.Equal(t, map[string]string{"total": "4"}, events[0].Details)
	assert.Equal(t, "service_account.create", events[1].Action)
	assert.False(t, events[1].Timestamp.IsZero())
}

func TestTrailRecordsRequestID(t *testing.T) {
	trail := openTestTrail(t)
	ctx := observability.WithRequestID(context.Background(), "req-7")

	trail.Record(ctx, "identity_provider.register", "operator", nil)

	events, err := trail.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "req-7", events[0].RequestID)
	assert.Nil(t, events[0].Details)
}

func TestTrailRecentLimit(t *testing.T) {
	trail := openTestTrail(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		trail.Record(ctx, "service_account.create", "admin", nil)
	}

	events, err := trail.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestLogTrail(t *testing.T) {
	// Must not panic and must accept a nil details map.
	trail := NewLogTrail(nil)
	trail.Record(context.Background(), "service_account.create", "admin", nil)
	trail.Record(observability.WithRequestID(context.Background(), "req-1"), "x", "y", map[string]string{"k": "v"})
}
