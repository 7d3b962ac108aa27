package backup

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csnp/qbom/internal/store"
	"github.com/csnp/qbom/internal/trace"
)

type fakeObjectStore struct {
	objects map[string][]byte
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) Upload(_ context.Context, key string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStore) Download(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjectStore) List(_ context.Context, prefix string) ([]Object, error) {
	var out []Object
	for key, data := range f.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, Object{Key: key, SizeBytes: int64(len(data))})
		}
	}
	return out, nil
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func newStore(t *testing.T, traces int) *store.Store {
	t.Helper()
	st, err := store.New(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	for i := 0; i < traces; i++ {
		tr := trace.NewBuilder().
			AddCircuit(trace.Circuit{NumQubits: 2, Depth: 3, Hash: trace.CircuitHash(string(rune('a' + i)))}).
			Build()
		_, err := st.Save(tr)
		require.NoError(t, err)
	}
	return st
}

func TestCreateAndUpload(t *testing.T) {
	st := newStore(t, 3)
	objects := newFakeObjectStore()
	svc := NewService(st, objects, 0, zerolog.Nop())

	name, err := svc.CreateAndUpload(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "qbom-backup-"))
	assert.True(t, strings.HasSuffix(name, ".tar.gz"))

	data, ok := objects.objects[name]
	require.True(t, ok)

	// The archive must contain the metadata file plus one entry per trace.
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	var names []string
	var metadata Metadata
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, header.Name)
		if header.Name == "backup-metadata.json" {
			require.NoError(t, json.NewDecoder(tr).Decode(&metadata))
		}
	}

	assert.Len(t, names, 4)
	assert.Contains(t, names, "backup-metadata.json")
	assert.Equal(t, 3, metadata.TraceCount)
	assert.Len(t, metadata.Traces, 3)
	for _, f := range metadata.Traces {
		assert.True(t, strings.HasPrefix(f.Checksum, "sha256:"))
		assert.Contains(t, names, "traces/"+f.Filename)
	}
}

func TestCreateAndUploadEmptyStore(t *testing.T) {
	st := newStore(t, 0)
	objects := newFakeObjectStore()
	svc := NewService(st, objects, 0, zerolog.Nop())

	name, err := svc.CreateAndUpload(context.Background())
	require.NoError(t, err)
	assert.Len(t, objects.objects, 1)
	assert.Contains(t, objects.objects, name)
}

func TestListBackupsNewestFirst(t *testing.T) {
	objects := newFakeObjectStore()
	objects.objects["qbom-backup-2026-08-01-030000.tar.gz"] = []byte("old")
	objects.objects["qbom-backup-2026-08-20-030000.tar.gz"] = []byte("new")
	objects.objects["unrelated.txt"] = []byte("skip")
	objects.objects["qbom-backup-garbage.tar.gz"] = []byte("skip")

	svc := NewService(newStore(t, 0), objects, 0, zerolog.Nop())
	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)

	require.Len(t, backups, 2)
	assert.Equal(t, "qbom-backup-2026-08-20-030000.tar.gz", backups[0].Filename)
	assert.Equal(t, "qbom-backup-2026-08-01-030000.tar.gz", backups[1].Filename)
	assert.Equal(t, time.Date(2026, 8, 20, 3, 0, 0, 0, time.UTC), backups[0].Timestamp)
}

func TestRotateOldBackups(t *testing.T) {
	objects := newFakeObjectStore()
	for _, key := range []string{
		"qbom-backup-2026-08-01-030000.tar.gz",
		"qbom-backup-2026-08-02-030000.tar.gz",
		"qbom-backup-2026-08-03-030000.tar.gz",
		"qbom-backup-2026-08-04-030000.tar.gz",
	} {
		objects.objects[key] = []byte("x")
	}

	svc := NewService(newStore(t, 0), objects, 2, zerolog.Nop())
	require.NoError(t, svc.RotateOldBackups(context.Background()))

	assert.Len(t, objects.objects, 2)
	assert.Contains(t, objects.objects, "qbom-backup-2026-08-04-030000.tar.gz")
	assert.Contains(t, objects.objects, "qbom-backup-2026-08-03-030000.tar.gz")
}

func TestRestoreRoundTrip(t *testing.T) {
	source := newStore(t, 2)
	objects := newFakeObjectStore()
	name, err := NewService(source, objects, 0, zerolog.Nop()).CreateAndUpload(context.Background())
	require.NoError(t, err)

	target := newStore(t, 0)
	svc := NewService(target, objects, 0, zerolog.Nop())
	restored, err := svc.Restore(context.Background(), name)
	require.NoError(t, err)
	assert.Equal(t, 2, restored)

	sourceIDs, err := source.IDs()
	require.NoError(t, err)
	targetIDs, err := target.IDs()
	require.NoError(t, err)
	assert.ElementsMatch(t, sourceIDs, targetIDs)

	for _, id := range sourceIDs {
		want, err := source.Load(id)
		require.NoError(t, err)
		got, err := target.Load(id)
		require.NoError(t, err)
		assert.Equal(t, want.ID, got.ID)
	}
}

func TestRestoreUnknownArchive(t *testing.T) {
	svc := NewService(newStore(t, 0), newFakeObjectStore(), 0, zerolog.Nop())
	_, err := svc.Restore(context.Background(), "qbom-backup-2026-08-01-030000.tar.gz")
	assert.Error(t, err)
}

func TestRestoreRejectsChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	metadata, err := json.Marshal(Metadata{
		TraceCount: 1,
		Traces:     []FileMetadata{{ID: "abc", Filename: "abc.json", Checksum: "sha256:deadbeef"}},
	})
	require.NoError(t, err)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "backup-metadata.json", Size: int64(len(metadata)), Mode: 0644}))
	_, err = tw.Write(metadata)
	require.NoError(t, err)

	body := []byte(`{"id":"abc"}`)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "traces/abc.json", Size: int64(len(body)), Mode: 0644}))
	_, err = tw.Write(body)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	objects := newFakeObjectStore()
	objects.objects["qbom-backup-2026-08-01-030000.tar.gz"] = buf.Bytes()

	target := newStore(t, 0)
	svc := NewService(target, objects, 0, zerolog.Nop())
	_, err = svc.Restore(context.Background(), "qbom-backup-2026-08-01-030000.tar.gz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")

	// The corrupted file must not be left behind.
	ids, err := target.IDs()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRotateKeepsEverythingWithoutRetention(t *testing.T) {
	objects := newFakeObjectStore()
	objects.objects["qbom-backup-2026-08-01-030000.tar.gz"] = []byte("x")

	svc := NewService(newStore(t, 0), objects, 0, zerolog.Nop())
	require.NoError(t, svc.RotateOldBackups(context.Background()))
	assert.Len(t, objects.objects, 1)
}
