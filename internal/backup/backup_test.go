package backup

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type fakeObject struct {
	body []byte
}

type fakeBucket struct {
	objects map[string]fakeObject
	deleted []string
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: make(map[string]fakeObject)}
}

func (b *fakeBucket) Upload(ctx context.Context, key string, body io.Reader, size int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.objects[key] = fakeObject{body: data}
	return nil
}

func (b *fakeBucket) List(ctx context.Context, prefix string) ([]ObjectSummary, error) {
	var out []ObjectSummary
	for key, obj := range b.objects {
		if len(prefix) > 0 && len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			out = append(out, ObjectSummary{Key: key, Size: int64(len(obj.body))})
		}
	}
	return out, nil
}

func (b *fakeBucket) Delete(ctx context.Context, key string) error {
	delete(b.objects, key)
	b.deleted = append(b.deleted, key)
	return nil
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.db")
	conn, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = conn.Exec("CREATE TABLE samples (id INTEGER PRIMARY KEY, value REAL)")
	require.NoError(t, err)
	_, err = conn.Exec("INSERT INTO samples (value) VALUES (1.5), (2.5)")
	require.NoError(t, err)
	return conn
}

func TestService_CreateAndUpload_UploadsArchive(t *testing.T) {
	conn := openTestDB(t)
	bucket := newFakeBucket()
	svc := New(bucket, "source.db", filepath.Join(t.TempDir(), "staging"), 7, zerolog.Nop())

	err := svc.CreateAndUpload(context.Background(), conn)
	require.NoError(t, err)
	assert.Len(t, bucket.objects, 1)

	for key, obj := range bucket.objects {
		assert.Contains(t, key, "pxi-backup-")
		assert.True(t, bytes.HasPrefix(obj.body, []byte{0x1f, 0x8b}), "archive should be gzip-compressed")
	}
}

func TestService_ListBackups_ParsesTimestampsAndSortsNewestFirst(t *testing.T) {
	bucket := newFakeBucket()
	bucket.objects["pxi-backup-2026-01-01-000000.tar.gz"] = fakeObject{body: []byte("a")}
	bucket.objects["pxi-backup-2026-03-15-093000.tar.gz"] = fakeObject{body: []byte("bb")}
	bucket.objects["ignored-file.txt"] = fakeObject{body: []byte("c")}
	svc := New(bucket, "source.db", t.TempDir(), 7, zerolog.Nop())

	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, "pxi-backup-2026-03-15-093000.tar.gz", backups[0].Filename)
	assert.Equal(t, "pxi-backup-2026-01-01-000000.tar.gz", backups[1].Filename)
}

func TestService_RotateOldBackups_KeepsMinimumRegardlessOfAge(t *testing.T) {
	bucket := newFakeBucket()
	old := time.Now().AddDate(0, 0, -30)
	for i := 0; i < 5; i++ {
		ts := old.AddDate(0, 0, -i)
		bucket.objects["pxi-backup-"+ts.Format("2006-01-02-150405")+".tar.gz"] = fakeObject{body: []byte("x")}
	}
	svc := New(bucket, "source.db", t.TempDir(), 7, zerolog.Nop())

	err := svc.RotateOldBackups(context.Background())
	require.NoError(t, err)
	assert.Len(t, bucket.objects, minBackupsToKeep)
}

func TestService_RotateOldBackups_NoopUnderMinimumCount(t *testing.T) {
	bucket := newFakeBucket()
	bucket.objects["pxi-backup-2020-01-01-000000.tar.gz"] = fakeObject{body: []byte("x")}
	svc := New(bucket, "source.db", t.TempDir(), 7, zerolog.Nop())

	err := svc.RotateOldBackups(context.Background())
	require.NoError(t, err)
	assert.Len(t, bucket.objects, 1)
	assert.Empty(t, bucket.deleted)
}
