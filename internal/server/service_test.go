package server

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ipkv/internal/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore fails every call with err.
type failingStore struct{ err error }

func (s failingStore) Get(context.Context, string) (string, bool, error) { return "", false, s.err }
func (s failingStore) Put(context.Context, string, string, time.Duration) error {
	return s.err
}
func (s failingStore) Delete(context.Context, string) error { return s.err }

// garblingStore returns a different value than was written for health probe keys.
type garblingStore struct{ *MemoryStore }

func (s garblingStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.MemoryStore.Get(ctx, key)
	if strings.HasPrefix(key, healthKeyPrefix) {
		return "garbled", ok, err
	}
	return v, ok, err
}

func newTestService(t *testing.T) (*ListService, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	svc := NewListService(store)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return svc, store
}

func storedList(t *testing.T, s Store, key string) []string {
	t.Helper()
	v, _, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	return Parse(v)
}

func TestGetMissingKey(t *testing.T) {
	svc, _ := newTestService(t)

	snap, err := svc.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "", snap.Raw)
	assert.Equal(t, shared.ListData{
		Key:         DefaultKey,
		Count:       0,
		IPs:         []string{},
		LastUpdated: "2024-05-01T12:00:00.000Z",
	}, snap.Data)
}

func TestGetDoesNotDedupe(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "raw.txt", "a\n\na\nb\n", 0))

	snap, err := svc.Get(ctx, "raw.txt")
	require.NoError(t, err)
	assert.Equal(t, "a\n\na\nb\n", snap.Raw)
	assert.Equal(t, []string{"a", "a", "b"}, snap.Data.IPs)
	assert.Equal(t, 3, snap.Data.Count)
}

func TestReplaceThenGet(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "k", "old1\nold2", 0))

	in := []string{"b", "a", "b", "c", "a"}
	out, err := svc.Update(ctx, "k", in, shared.ActionReplace)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Data.Count)
	assert.Equal(t, shared.ActionReplace, out.Data.Action)
	assert.Nil(t, out.Data.Added)
	assert.Contains(t, out.Message, "3")

	snap, err := svc.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, Dedupe(in), snap.Data.IPs)
	assert.Equal(t, []string{"b", "a", "c"}, snap.Data.IPs)

	// replacing again with the same input is a no-op on the stored value
	_, err = svc.Update(ctx, "k", in, "")
	require.NoError(t, err)
	assert.Equal(t, "b\na\nc", func() string { v, _, _ := store.Get(ctx, "k"); return v }())
}

func TestReplaceWithEmptyList(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, DefaultKey, "a\nb", 0))

	out, err := svc.Update(ctx, "", []string{}, "")
	require.NoError(t, err)
	assert.Equal(t, 0, out.Data.Count)

	v, ok, err := store.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "", v)
}

func TestAppendMergeLaw(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	existing := []string{"e1", "e2", "e3"}
	require.NoError(t, store.Put(ctx, "k", Serialize(existing), 0))

	incoming := []string{"n1", "e2", "n2", "n1"}
	_, err := svc.Update(ctx, "k", incoming, shared.ActionAppend)
	require.NoError(t, err)

	got := storedList(t, store, "k")
	assert.Equal(t, Dedupe(append(append([]string{}, existing...), incoming...)), got)
	assert.Equal(t, []string{"e1", "e2", "e3", "n1", "n2"}, got)
}

func TestAppendToMissingKey(t *testing.T) {
	svc, store := newTestService(t)

	out, err := svc.Update(context.Background(), "fresh", []string{"x", "x"}, shared.ActionAppend)
	require.NoError(t, err)
	require.NotNil(t, out.Data.Added)
	assert.Equal(t, 1, *out.Data.Added)
	assert.Equal(t, 1, *out.Data.Duplicates)
	assert.Equal(t, []string{"x"}, storedList(t, store, "fresh"))
}

func TestAppendCountArithmetic(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, DefaultKey, "1.1.1.1\n2.2.2.2", 0))

	out, err := svc.Update(ctx, DefaultKey, []string{"2.2.2.2", "3.3.3.3", "3.3.3.3"}, shared.ActionAppend)
	require.NoError(t, err)

	assert.Equal(t, []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"}, storedList(t, store, DefaultKey))
	assert.Equal(t, 3, out.Data.Count)
	require.NotNil(t, out.Data.Added)
	require.NotNil(t, out.Data.Duplicates)
	assert.Equal(t, 1, *out.Data.Added)
	assert.Equal(t, 2, *out.Data.Duplicates)
}

func TestAppendCountsNetGrowth(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	// the stored value already repeats "a"; append collapses it
	require.NoError(t, store.Put(ctx, "k", "a\na\nb", 0))

	out, err := svc.Update(ctx, "k", []string{"c"}, shared.ActionAppend)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, storedList(t, store, "k"))
	// final 3 - existing 3 = 0, even though "c" was new
	assert.Equal(t, 0, *out.Data.Added)
	assert.Equal(t, 1, *out.Data.Duplicates)
}

func TestUpdateValidation(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, "k", nil, shared.ActionReplace)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = svc.Update(ctx, "k", []string{"a"}, "merge")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	assert.Equal(t, 0, store.Len())
}

func TestUpdateSizeGuard(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "k", "keep\nme", 0))

	huge := strings.Repeat("x", MaxListBytes+1)
	_, err := svc.Update(ctx, "k", []string{huge}, shared.ActionReplace)
	require.Error(t, err)
	assert.Equal(t, KindSizeLimit, KindOf(err))

	// two entries that fit alone but not together once joined
	half := strings.Repeat("y", MaxListBytes/2)
	_, err = svc.Update(ctx, "k", []string{half, half + "z"}, shared.ActionAppend)
	require.Error(t, err)
	assert.Equal(t, KindSizeLimit, KindOf(err))

	assert.Equal(t, []string{"keep", "me"}, storedList(t, store, "k"))

	// exactly at the limit is accepted
	exact := strings.Repeat("w", MaxListBytes)
	_, err = svc.Update(ctx, "k", []string{exact}, shared.ActionReplace)
	require.NoError(t, err)
}

func TestBackendErrors(t *testing.T) {
	boom := errors.New("KV PUT failed: 429 Too Many Requests")
	svc := NewListService(failingStore{err: boom})
	ctx := context.Background()

	_, err := svc.Get(ctx, "k")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, KindBackend, KindOf(err))
	assert.Equal(t, boom.Error(), err.Error())

	_, err = svc.Update(ctx, "k", []string{"a"}, shared.ActionReplace)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, KindBackend, KindOf(err))

	_, err = svc.Update(ctx, "k", []string{"a"}, shared.ActionAppend)
	require.ErrorIs(t, err, boom)

	_, err = svc.Stats(ctx)
	require.ErrorIs(t, err, boom)

	healthy, err := svc.Health(ctx)
	require.ErrorIs(t, err, boom)
	assert.False(t, healthy)
}

func TestStats(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	entries := []string{"1.1.1.1", "2.2.2.2", "3.3.3.3", "4.4.4.4", "5.5.5.5", "6.6.6.6"}
	require.NoError(t, store.Put(ctx, DefaultKey, Serialize(entries), 0))
	// Stats never looks at other keys
	require.NoError(t, store.Put(ctx, "other.txt", "9.9.9.9", 0))

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, st.TotalIPs)
	assert.Equal(t, len(Serialize(entries)), st.ContentSize)
	assert.Equal(t, 0.0, st.ContentSizeMB)
	assert.Equal(t, entries[:5], st.SampleIPs)
	assert.Equal(t, "2024-05-01T12:00:00.000Z", st.LastUpdated)
}

func TestStatsSizeRounding(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	// 1.5 MiB + a bit rounds to 1.5
	require.NoError(t, store.Put(ctx, DefaultKey, strings.Repeat("a", 3<<19+100), 0))

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.5, st.ContentSizeMB)
	assert.Equal(t, 1, st.TotalIPs)
}

func TestHealth(t *testing.T) {
	svc, store := newTestService(t)

	healthy, err := svc.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, healthy)
	assert.Equal(t, 0, store.Len(), "probe key must be deleted")

	garbled := NewListService(garblingStore{NewMemoryStore()})
	healthy, err = garbled.Health(context.Background())
	require.NoError(t, err, "a wrong probe value is not an error")
	assert.False(t, healthy)
}

// Two appends racing on one key may each overwrite the other's entry. The
// service does not lock, so only the weak outcome is asserted.
func TestConcurrentAppendRace(t *testing.T) {
	for i := 0; i < 50; i++ {
		svc, store := newTestService(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		for _, entry := range []string{"x", "y"} {
			wg.Add(1)
			go func(entry string) {
				defer wg.Done()
				_, err := svc.Update(ctx, "race", []string{entry}, shared.ActionAppend)
				assert.NoError(t, err)
			}(entry)
		}
		wg.Wait()

		got := storedList(t, store, "race")
		require.NotEmpty(t, got)
		require.LessOrEqual(t, len(got), 2)
		for _, e := range got {
			assert.Contains(t, []string{"x", "y"}, e)
		}
	}
}
