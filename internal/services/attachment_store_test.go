package services

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"

	"messaging-core/internal/commands"
	"messaging-core/internal/domain/message"
	"messaging-core/internal/storage"
	core_errors "messaging-core/pkg/errors"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"a/b?c*.pdf":          "a_b_c_.pdf",
		"invoice.pdf":         "invoice.pdf",
		"  spaced  name.txt ": "spaced_name.txt",
		"__hidden__":          "hidden",
		"???":                 "file",
		"":                    "file",
		"..":                  "file",
		"résumé.doc":          "r_sum_.doc",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFileName(in), "input %q", in)
	}
}

func (f *fixture) seedMessage(t *testing.T) message.Message {
	t.Helper()
	return f.sendInternal(t, f.alice, f.bob, "carrier").Message.Message
}

var safeSegment = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func TestAttachSameNameTwiceGetsDistinctPaths(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	m := f.seedMessage(t)

	files := []commands.AttachmentInput{
		{FileName: "a/b?c*.pdf", MimeType: "application/pdf", Size: 3, Body: strings.NewReader("one")},
		{FileName: "a/b?c*.pdf", MimeType: "application/pdf", Size: 3, Body: strings.NewReader("two")},
	}
	results := f.attachments.Attach(ctx, m.ID, f.alice, files)
	require.Len(t, results, 2)

	paths := map[string]struct{}{}
	for _, r := range results {
		require.NoError(t, r.Err)
		att := r.Attachment
		assert.Equal(t, "a/b?c*.pdf", att.FileName)
		assert.Equal(t, "application/pdf", att.MimeType)

		segments := strings.Split(att.FilePath, "/")
		require.Len(t, segments, 2)
		assert.Equal(t, m.ID.String(), segments[0])
		assert.Regexp(t, safeSegment, segments[1])
		assert.True(t, strings.HasSuffix(segments[1], "_a_b_c_.pdf"))
		assert.Equal(t, "https://files.test/"+att.FilePath, r.URL)
		paths[att.FilePath] = struct{}{}
	}
	assert.Len(t, paths, 2)

	obj, ok := f.blobs.Get(results[1].Attachment.FilePath)
	require.True(t, ok)
	assert.Equal(t, "two", string(obj.Body))
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.AttachmentsStored))
}

func TestAttachUploadFailureLeavesNoRow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	m := f.seedMessage(t)
	f.blobs.SetPutErr(errors.New("bucket unavailable"))

	_, err := f.attachments.Store(ctx, m.ID, f.alice, commands.AttachmentInput{
		FileName: "x.txt", Size: 1, Body: strings.NewReader("x"),
	})
	require.ErrorIs(t, err, core_errors.ErrStorage)

	list, err := f.attachments.List(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.AttachmentsFailed.WithLabelValues("upload")))
}

func TestAttachMetadataFailureCompensates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	m := f.seedMessage(t)
	f.attachRepo.FailNextCreate(errors.New("connection reset"))

	_, err := f.attachments.Store(ctx, m.ID, f.alice, commands.AttachmentInput{
		FileName: "x.txt", Size: 1, Body: strings.NewReader("x"),
	})
	require.ErrorIs(t, err, core_errors.ErrUpstream)
	assert.NotContains(t, core_errors.PublicMessage(err), "connection reset")

	keys, err := f.blobs.List(ctx, m.ID.String()+"/")
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Zero(t, testutil.ToFloat64(f.metrics.OrphanedBlobs))
}

func TestAttachCompensationFailureReportsOrphan(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	m := f.seedMessage(t)
	f.attachRepo.FailNextCreate(errors.New("connection reset"))
	f.blobs.SetDeleteErr(errors.New("delete refused"))

	_, err := f.attachments.Store(ctx, m.ID, f.alice, commands.AttachmentInput{
		FileName: "x.txt", Size: 1, Body: strings.NewReader("x"),
	})
	require.ErrorIs(t, err, core_errors.ErrUpstream)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.OrphanedBlobs))

	orphans, err := f.attachments.FindOrphans(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.True(t, strings.HasPrefix(orphans[0], m.ID.String()+"/"))
}

func TestAttachToUnknownMessage(t *testing.T) {
	f := newFixture()
	_, err := f.attachments.Store(context.Background(), uuid.New(), f.alice, commands.AttachmentInput{
		FileName: "x.txt", Size: 1, Body: strings.NewReader("x"),
	})
	assert.ErrorIs(t, err, core_errors.ErrNotFound)

	keys, err := f.blobs.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestAttachRejectsOversizedFile(t *testing.T) {
	f := newFixture()
	m := f.seedMessage(t)
	_, err := f.attachments.Store(context.Background(), m.ID, f.alice, commands.AttachmentInput{
		FileName: "big.bin", Size: 1<<20 + 1, Body: strings.NewReader(""),
	})
	assert.ErrorIs(t, err, core_errors.ErrTooLarge)
}

// bodyRecorder remembers the reader each Put received.
type bodyRecorder struct {
	*storage.MemoryStore
	bodies []io.Reader
}

func (b *bodyRecorder) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	b.bodies = append(b.bodies, body)
	return b.MemoryStore.Put(ctx, key, contentType, body, size)
}

func TestStorePassesSeekableBodyThrough(t *testing.T) {
	f := newFixture()
	m := f.seedMessage(t)
	blobs := &bodyRecorder{MemoryStore: f.blobs}
	store := NewAttachmentStore(blobs, f.attachRepo, 1<<20, f.metrics, nil)

	body := strings.NewReader("seekable")
	_, err := store.Store(context.Background(), m.ID, f.alice, commands.AttachmentInput{
		FileName: "s.txt", Size: 8, Body: body,
	})
	require.NoError(t, err)
	require.Len(t, blobs.bodies, 1)
	_, seekable := blobs.bodies[0].(io.ReadSeeker)
	assert.True(t, seekable)
	assert.Same(t, body, blobs.bodies[0])
}

func TestStoreRejectsStreamLongerThanLimit(t *testing.T) {
	f := newFixture()
	m := f.seedMessage(t)
	store := NewAttachmentStore(f.blobs, f.attachRepo, 16, f.metrics, nil)

	// declared small, actually larger than the limit
	stream := io.MultiReader(strings.NewReader(strings.Repeat("x", 64)))
	_, err := store.Store(context.Background(), m.ID, f.alice, commands.AttachmentInput{
		FileName: "stream.bin", Size: 4, Body: stream,
	})
	assert.ErrorIs(t, err, core_errors.ErrTooLarge)
	assert.Equal(t, float64(0), testutil.ToFloat64(f.metrics.AttachmentsFailed.WithLabelValues("upload")))

	keys, err := f.blobs.List(context.Background(), m.ID.String())
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = store.Store(context.Background(), m.ID, f.alice, commands.AttachmentInput{
		FileName: "exact.bin", Size: 16, Body: io.MultiReader(strings.NewReader(strings.Repeat("y", 16))),
	})
	require.NoError(t, err)
}
