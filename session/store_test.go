package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(sessions []Session) []string {
	out := make([]string, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}

func backends(t *testing.T) map[string]func() Backend {
	return map[string]func() Backend{
		"memory": func() Backend { return NewMemoryBackend() },
		"file": func() Backend {
			b, err := NewFileBackend(t.TempDir())
			require.NoError(t, err)
			return b
		},
		"sqlite": func() Backend {
			b, err := OpenSQLite(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { b.Close() })
			return b
		},
	}
}

var errDisk = errors.New("disk unavailable")

// failingBackend wraps a MemoryBackend and fails the next Load or Save on demand.
type failingBackend struct {
	*MemoryBackend
	mu       sync.Mutex
	failLoad bool
	failSave bool
}

func (b *failingBackend) Load(key string) ([]byte, error) {
	b.mu.Lock()
	fail := b.failLoad
	b.failLoad = false
	b.mu.Unlock()
	if fail {
		return nil, errDisk
	}
	return b.MemoryBackend.Load(key)
}

func (b *failingBackend) Save(key string, data []byte) error {
	b.mu.Lock()
	fail := b.failSave
	b.mu.Unlock()
	if fail {
		return errDisk
	}
	return b.MemoryBackend.Save(key, data)
}

func TestStoreRoundTrip(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			st := NewStore(mk())
			assert.Empty(t, st.List())

			a := mustNew(t, t0, "first")
			b := mustNew(t, t0.Add(time.Minute), "second")
			require.NoError(t, st.Create(a))
			require.NoError(t, st.Create(b))

			list := st.List()
			assert.Equal(t, []string{b.ID, a.ID}, ids(list))
			assert.Equal(t, "second", list[0].FullText)

			got, err := st.Get(a.ID)
			require.NoError(t, err)
			assert.Equal(t, a.FullText, got.FullText)
			assert.True(t, a.CreatedAt.Equal(got.CreatedAt))

			require.NoError(t, st.Delete(a.ID))
			assert.Equal(t, []string{b.ID}, ids(st.List()))

			_, err = st.Get(a.ID)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, st.Delete(a.ID), ErrNotFound)
		})
	}
}

func TestStoreRejectsDuplicateAndInvalid(t *testing.T) {
	st := NewStore(NewMemoryBackend())
	s := mustNew(t, t0, "x")
	require.NoError(t, st.Create(s))
	assert.ErrorIs(t, st.Create(s), ErrDuplicate)
	assert.ErrorIs(t, st.Create(&Session{ID: "bad"}), ErrInvalid)
	assert.ErrorIs(t, st.Create(nil), ErrInvalid)
	assert.Len(t, st.List(), 1)
}

func TestStoreCorruptDataDegradesToEmpty(t *testing.T) {
	for _, data := range []string{"{not json", `{"id":"x"}`, `"string"`} {
		mem := NewMemoryBackend()
		require.NoError(t, mem.Save(DefaultNamespace, []byte(data)))
		st := NewStore(mem)
		assert.Empty(t, st.List(), data)

		// a write after corruption starts a fresh list
		s := mustNew(t, t0, "fresh")
		require.NoError(t, st.Create(s))
		assert.Equal(t, []string{s.ID}, ids(st.List()))
	}
}

func TestStoreDropsInvalidRecords(t *testing.T) {
	good := mustNew(t, t0, "good")
	mem := NewMemoryBackend()
	st := NewStore(mem)
	require.NoError(t, st.Create(good))

	data, err := mem.Load(DefaultNamespace)
	require.NoError(t, err)
	tampered := fmt.Sprintf(`[{"id":"broken","segments":[],"fullText":"x"}, 7, %s]`, data[1:len(data)-1])
	require.NoError(t, mem.Save(DefaultNamespace, []byte(tampered)))

	assert.Equal(t, []string{good.ID}, ids(st.List()))
}

func TestStoreReadFailureAbortsMutation(t *testing.T) {
	fb := &failingBackend{MemoryBackend: NewMemoryBackend()}
	st := NewStore(fb)
	a, b := mustNew(t, t0, "first"), mustNew(t, t0, "second")
	require.NoError(t, st.Create(a))
	require.NoError(t, st.Create(b))

	fb.failLoad = true
	err := st.Create(mustNew(t, t0, "third"))
	require.ErrorIs(t, err, errDisk)
	assert.Equal(t, []string{b.ID, a.ID}, ids(st.List()))

	fb.failLoad = true
	err = st.Delete(a.ID)
	require.ErrorIs(t, err, errDisk)
	assert.Equal(t, []string{b.ID, a.ID}, ids(st.List()))

	fb.failLoad = true
	assert.Empty(t, st.List())
	assert.Len(t, st.List(), 2)
}

func TestStoreSaveFailureKeepsPreviousList(t *testing.T) {
	fb := &failingBackend{MemoryBackend: NewMemoryBackend()}
	st := NewStore(fb)
	a := mustNew(t, t0, "kept")
	require.NoError(t, st.Create(a))

	fb.failSave = true
	err := st.Create(mustNew(t, t0, "lost"))
	require.ErrorIs(t, err, errDisk)
	assert.Equal(t, []string{a.ID}, ids(st.List()))
}

func TestStoreKeepsRejectedRecordsOnRewrite(t *testing.T) {
	good := mustNew(t, t0, "good")
	mem := NewMemoryBackend()
	st := NewStore(mem)
	require.NoError(t, st.Create(good))

	data, err := mem.Load(DefaultNamespace)
	require.NoError(t, err)
	broken := `{"id":"broken","segments":[],"fullText":"x"}`
	require.NoError(t, mem.Save(DefaultNamespace, []byte("["+broken+","+string(data[1:]))))

	fresh := mustNew(t, t0, "fresh")
	require.NoError(t, st.Create(fresh))
	assert.Equal(t, []string{fresh.ID, good.ID}, ids(st.List()))

	data, err = mem.Load(DefaultNamespace)
	require.NoError(t, err)
	var raw []json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 3)
	assert.JSONEq(t, broken, string(raw[2]))
}

func TestStoreMovesUndecodableDataAside(t *testing.T) {
	mem := NewMemoryBackend()
	require.NoError(t, mem.Save(DefaultNamespace, []byte("{not json")))
	st := NewStore(mem)

	s := mustNew(t, t0, "fresh")
	require.NoError(t, st.Create(s))
	assert.Equal(t, []string{s.ID}, ids(st.List()))

	backup, err := mem.Load(DefaultNamespace + CorruptSuffix)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(backup))
}

func TestStoreNamespace(t *testing.T) {
	mem := NewMemoryBackend()
	a := NewStore(mem)
	b := NewStore(mem, WithNamespace("other"))
	require.NoError(t, a.Create(mustNew(t, t0, "a")))
	assert.Len(t, a.List(), 1)
	assert.Empty(t, b.List())
	assert.Equal(t, "other", b.Namespace())
}

func TestStoreConcurrentCreates(t *testing.T) {
	st := NewStore(NewMemoryBackend())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := New(t0, NewSegment(fmt.Sprintf("s%d", i), 0, time.Second))
			if err == nil {
				err = st.Create(s)
			}
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Len(t, st.List(), 20)
}

func TestStoreFind(t *testing.T) {
	st := NewStore(NewMemoryBackend())
	s := mustNew(t, t0, "x")
	require.NoError(t, st.Create(s))

	got, err := st.Find(s.ID[:6])
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	_, err = st.Find("zzzz")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileBackendPersists(t *testing.T) {
	dir := t.TempDir()
	b1, err := NewFileBackend(dir)
	require.NoError(t, err)
	s := mustNew(t, t0, "persist me")
	require.NoError(t, NewStore(b1).Create(s))

	_, err = os.Stat(filepath.Join(dir, DefaultNamespace+".json"))
	require.NoError(t, err)

	b2, err := NewFileBackend(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{s.ID}, ids(NewStore(b2).List()))

	_, err = b2.Load("missing")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestSQLiteBackendPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	b1, err := OpenSQLite(path)
	require.NoError(t, err)
	s := mustNew(t, t0, "persist me")
	require.NoError(t, NewStore(b1).Create(s))
	require.NoError(t, b1.Close())

	b2, err := OpenSQLite(path)
	require.NoError(t, err)
	defer b2.Close()
	assert.Equal(t, []string{s.ID}, ids(NewStore(b2).List()))

	_, err = b2.Load("missing")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestOpenBackend(t *testing.T) {
	dir := t.TempDir()

	b, err := OpenBackend(BackendFile, dir)
	require.NoError(t, err)
	assert.IsType(t, &FileBackend{}, b)

	b, err = OpenBackend(BackendSQLite, dir)
	require.NoError(t, err)
	defer b.Close()
	assert.IsType(t, &SQLiteBackend{}, b)
	assert.FileExists(t, filepath.Join(dir, "sessions.db"))

	_, err = OpenBackend("redis", dir)
	assert.ErrorContains(t, err, "unknown storage backend")
}
