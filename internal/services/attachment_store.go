package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"messaging-core/internal/commands"
	"messaging-core/internal/domain/message"
	"messaging-core/internal/metrics"
	"messaging-core/internal/repository"
	"messaging-core/internal/storage"
	core_errors "messaging-core/pkg/errors"
	"messaging-core/pkg/saga"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)
	underscoreRuns  = regexp.MustCompile(`_+`)
)

// SanitizeFileName keeps only [A-Za-z0-9._-], collapses runs of
// underscores and trims them from both ends. Names that sanitize to
// nothing become "file".
func SanitizeFileName(name string) string {
	name = unsafeFileChars.ReplaceAllString(name, "_")
	name = underscoreRuns.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}

// AttachResult is the outcome for one file. Exactly one of Attachment and
// Err is set.
type AttachResult struct {
	FileName   string
	Attachment *message.Attachment
	URL        string
	Err        error
}

// AttachmentView pairs stored metadata with a fetchable URL.
type AttachmentView struct {
	message.Attachment
	URL string
}

// AttachmentStore uploads blobs and records their metadata. The upload
// always happens first; if the metadata insert fails the blob is deleted
// again so no row ever points at a missing object.
type AttachmentStore struct {
	blobs    storage.BlobStore
	repo     repository.AttachmentRepository
	metrics  *metrics.Metrics
	log      *zap.Logger
	maxBytes int64
	now      func() time.Time
}

func NewAttachmentStore(blobs storage.BlobStore, repo repository.AttachmentRepository, maxBytes int64, m *metrics.Metrics, log *zap.Logger) *AttachmentStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &AttachmentStore{
		blobs:    blobs,
		repo:     repo,
		metrics:  m,
		log:      log,
		maxBytes: maxBytes,
		now:      time.Now,
	}
}

func (s *AttachmentStore) objectKey(messageID uuid.UUID, fileName string) (string, error) {
	token := make([]byte, 8)
	if _, err := rand.Read(token); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%d_%s_%s",
		messageID, s.now().UnixMilli(), hex.EncodeToString(token), SanitizeFileName(fileName)), nil
}

// CheckSize rejects files whose declared size exceeds the limit.
func (s *AttachmentStore) CheckSize(file commands.AttachmentInput) error {
	if s.maxBytes > 0 && file.Size > s.maxBytes {
		return fmt.Errorf("%w: %s is %d bytes, limit is %d", core_errors.ErrTooLarge, file.FileName, file.Size, s.maxBytes)
	}
	return nil
}

// Attach stores every file independently. One file failing never affects
// the others or the owning message.
func (s *AttachmentStore) Attach(ctx context.Context, messageID, uploaderID uuid.UUID, files []commands.AttachmentInput) []AttachResult {
	results := make([]AttachResult, 0, len(files))
	for _, file := range files {
		res := AttachResult{FileName: file.FileName}
		att, err := s.Store(ctx, messageID, uploaderID, file)
		if err != nil {
			res.Err = err
		} else {
			res.Attachment = &att
			res.URL = s.URL(ctx, att.FilePath)
		}
		results = append(results, res)
	}
	return results
}

// Store runs the upload then insert saga for one file.
func (s *AttachmentStore) Store(ctx context.Context, messageID, uploaderID uuid.UUID, file commands.AttachmentInput) (message.Attachment, error) {
	if err := s.CheckSize(file); err != nil {
		s.metrics.AttachmentFailed("validation")
		return message.Attachment{}, err
	}
	key, err := s.objectKey(messageID, file.FileName)
	if err != nil {
		return message.Attachment{}, fmt.Errorf("%w: %v", core_errors.ErrStorage, err)
	}

	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	att := message.Attachment{
		ID:         uuid.New(),
		MessageID:  messageID,
		FileName:   file.FileName,
		MimeType:   mimeType,
		FileSize:   file.Size,
		FilePath:   key,
		UploadedBy: uploaderID,
	}

	// Seekable bodies pass through unchanged; streams are capped.
	body := file.Body
	if _, seekable := body.(io.ReadSeeker); !seekable && s.maxBytes > 0 {
		body = &cappedReader{r: body, remaining: s.maxBytes, limit: s.maxBytes, name: file.FileName}
	}

	err = saga.Run(ctx,
		saga.Step{
			Name: "upload",
			Do: func(ctx context.Context) error {
				return s.blobs.Put(ctx, key, mimeType, body, file.Size)
			},
			Compensate: func(ctx context.Context) error {
				return s.blobs.Delete(ctx, key)
			},
		},
		saga.Step{
			Name: "metadata",
			Do: func(ctx context.Context) error {
				return s.repo.Create(ctx, &att)
			},
		},
	)
	if err == nil {
		s.metrics.AttachmentStored()
		return att, nil
	}

	if undo, failed := saga.CompensationFailed(err); failed {
		s.metrics.OrphanedBlob()
		s.log.Warn("orphaned attachment blob",
			zap.String("key", key),
			zap.String("message_id", messageID.String()),
			zap.NamedError("delete_error", undo["upload"]))
	}

	var stepErr *saga.StepError
	if errors.As(err, &stepErr) && stepErr.Step == "upload" {
		if errors.Is(stepErr.Err, core_errors.ErrTooLarge) {
			s.metrics.AttachmentFailed("validation")
			return message.Attachment{}, stepErr.Err
		}
		s.metrics.AttachmentFailed("upload")
		s.log.Error("attachment upload failed", zap.String("key", key), zap.Error(stepErr.Err))
		return message.Attachment{}, fmt.Errorf("%w: upload %s", core_errors.ErrStorage, file.FileName)
	}

	s.metrics.AttachmentFailed("metadata")
	s.log.Error("attachment metadata insert failed", zap.String("key", key), zap.Error(err))
	if errors.Is(err, core_errors.ErrNotFound) {
		return message.Attachment{}, core_errors.ErrNotFound
	}
	return message.Attachment{}, fmt.Errorf("%w: record %s", core_errors.ErrUpstream, file.FileName)
}

// cappedReader fails a stream that runs past the size limit rather than
// truncating it.
type cappedReader struct {
	r         io.Reader
	remaining int64
	limit     int64
	name      string
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return n, fmt.Errorf("%w: %s exceeds %d bytes", core_errors.ErrTooLarge, c.name, c.limit)
	}
	return n, err
}

// URL resolves a fetchable URL; resolution failures yield an empty string.
func (s *AttachmentStore) URL(ctx context.Context, key string) string {
	url, err := s.blobs.URL(ctx, key)
	if err != nil {
		s.log.Warn("attachment url failed", zap.String("key", key), zap.Error(err))
		return ""
	}
	return url
}

func (s *AttachmentStore) List(ctx context.Context, messageID uuid.UUID) ([]AttachmentView, error) {
	list, err := s.repo.ListByMessage(ctx, messageID)
	if err != nil {
		return nil, upstream("list attachments", err)
	}
	views := make([]AttachmentView, 0, len(list))
	for _, a := range list {
		views = append(views, AttachmentView{Attachment: a, URL: s.URL(ctx, a.FilePath)})
	}
	return views, nil
}

// ListMany loads attachments for many messages in one query.
func (s *AttachmentStore) ListMany(ctx context.Context, messageIDs []uuid.UUID) (map[uuid.UUID][]AttachmentView, error) {
	byMessage, err := s.repo.ListByMessageIDs(ctx, messageIDs)
	if err != nil {
		return nil, upstream("list attachments", err)
	}
	out := make(map[uuid.UUID][]AttachmentView, len(byMessage))
	for id, list := range byMessage {
		views := make([]AttachmentView, 0, len(list))
		for _, a := range list {
			views = append(views, AttachmentView{Attachment: a, URL: s.URL(ctx, a.FilePath)})
		}
		out[id] = views
	}
	return out, nil
}

// FindOrphans lists blobs under a message prefix that no metadata row
// references. It only reports; nothing is deleted.
func (s *AttachmentStore) FindOrphans(ctx context.Context, messageID uuid.UUID) ([]string, error) {
	keys, err := s.blobs.List(ctx, messageID.String()+"/")
	if err != nil {
		return nil, fmt.Errorf("%w: list blobs: %v", core_errors.ErrStorage, err)
	}
	rows, err := s.repo.ListByMessage(ctx, messageID)
	if err != nil {
		return nil, upstream("list attachments", err)
	}
	known := make(map[string]struct{}, len(rows))
	for _, a := range rows {
		known[a.FilePath] = struct{}{}
	}
	orphans := make([]string, 0)
	for _, k := range keys {
		if _, ok := known[k]; !ok {
			orphans = append(orphans, k)
		}
	}
	return orphans, nil
}
