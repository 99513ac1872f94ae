package checklist

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visadoc-backend/internal/kv"
)

type failingKV struct{}

func (failingKV) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, errors.New("quota exceeded")
}

func (failingKV) Set(ctx context.Context, key, value string) error {
	return errors.New("quota exceeded")
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	store := NewStore(mem)

	assert.Empty(t, store.Load(ctx, "abc"))

	store.Save(ctx, "abc", map[string]Status{"T1": StatusDone, "T2": StatusTodo})
	raw, found, err := mem.Get(ctx, "checklist_status_abc")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"T1":"done","T2":"todo"}`, raw)

	assert.Equal(t, map[string]Status{"T1": StatusDone, "T2": StatusTodo}, store.Load(ctx, "abc"))

	store.Save(ctx, "abc", map[string]Status{"T3": StatusInProgress})
	assert.Equal(t, map[string]Status{"T3": StatusInProgress}, store.Load(ctx, "abc"), "save overwrites wholesale")
}

func TestStoreLoadFailsSoft(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	require.NoError(t, mem.Set(ctx, "checklist_status_bad", "{not json"))
	require.NoError(t, mem.Set(ctx, "checklist_status_mixed", `{"A":"done","B":"archived"}`))

	store := NewStore(mem)
	assert.Empty(t, store.Load(ctx, "bad"))
	assert.Equal(t, map[string]Status{"A": StatusDone}, store.Load(ctx, "mixed"))
}

func TestStoreSwallowsBackendErrors(t *testing.T) {
	ctx := context.Background()
	store := NewStore(failingKV{})
	assert.Empty(t, store.Load(ctx, "abc"))
	assert.NotPanics(t, func() {
		store.Save(ctx, "abc", map[string]Status{"T1": StatusDone})
	})

	var nilStore *Store
	assert.Empty(t, nilStore.Load(ctx, "abc"))
	nilStore.Save(ctx, "abc", nil)
	NewStore(nil).Save(ctx, "abc", nil)
}
