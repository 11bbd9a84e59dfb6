// Package receipts stores uploaded payment receipts and attaches them to a
// request. Files are written before the request changes; a storage failure
// leaves the request untouched.
package receipts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/buildhub-payments/constants"
	"github.com/joseph-ayodele/buildhub-payments/internal/common"
	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
	"github.com/joseph-ayodele/buildhub-payments/internal/payments"
	"github.com/joseph-ayodele/buildhub-payments/internal/storage"
)

// RequestService is the part of the state machine the workflow drives.
type RequestService interface {
	CheckReceiptTarget(ctx context.Context, actor entity.Actor, id int64) (*entity.PaymentRequest, error)
	UploadReceipt(ctx context.Context, actor entity.Actor, id int64, in payments.ReceiptUpload) (*entity.PaymentRequest, error)
}

// File is one uploaded receipt as received from the client.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Meta carries the payment details submitted with the files.
type Meta struct {
	TransactionReference string
	PaymentMethod        string
	PaymentDate          *time.Time
	Notes                string
}

type Workflow struct {
	requests RequestService
	store    storage.FileStore
	maxSize  int64
	logger   *slog.Logger
}

func NewWorkflow(requests RequestService, store storage.FileStore, maxSize int64, logger *slog.Logger) *Workflow {
	if maxSize <= 0 {
		maxSize = constants.MaxReceiptFileSize
	}
	return &Workflow{
		requests: requests,
		store:    store,
		maxSize:  maxSize,
		logger:   logger,
	}
}

type prepared struct {
	name     string
	mimeType string
	ext      string
	size     int64
	body     *cappedReader
}

var errTooLarge = errors.New("receipt exceeds size limit")

// cappedReader fails once more than limit bytes have been read, whatever size
// the caller declared.
type cappedReader struct {
	r        io.Reader
	n, limit int64
	exceeded bool
}

func newCappedReader(r io.Reader, limit int64) *cappedReader {
	return &cappedReader{r: io.LimitReader(r, limit+1), limit: limit}
}

func (c *cappedReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.n > c.limit {
		c.exceeded = true
		return n, errTooLarge
	}
	return n, err
}

// Upload validates and stores every file, then records them on the request.
func (w *Workflow) Upload(ctx context.Context, actor entity.Actor, requestID int64, meta Meta, files []File) (*entity.PaymentRequest, error) {
	if len(files) == 0 {
		return nil, common.ValidationErrorf("files: at least one receipt file is required")
	}

	ready := make([]prepared, 0, len(files))
	for _, f := range files {
		p, err := w.prepare(f)
		if err != nil {
			w.logger.Warn("receipt file refused", "request_id", requestID, "file_name", f.Name, "error", err)
			return nil, err
		}
		ready = append(ready, p)
	}

	req, err := w.requests.CheckReceiptTarget(ctx, actor, requestID)
	if err != nil {
		return nil, err
	}

	stored := make([]entity.ReceiptFile, 0, len(ready))
	var keys []string
	for _, p := range ready {
		key := path.Join(constants.ReceiptKeyPrefix,
			fmt.Sprint(req.ProjectID), fmt.Sprint(req.ID), uuid.NewString()+p.ext)
		loc, err := w.store.Put(ctx, key, p.body, p.size, p.mimeType)
		if err != nil && (p.body.exceeded || errors.Is(err, errTooLarge)) {
			w.logger.Warn("receipt file refused", "request_id", req.ID, "file_name", p.name, "error", errTooLarge)
			w.cleanup(append(keys, key))
			return nil, w.tooLarge(p.name)
		}
		if err != nil {
			w.logger.Error("failed to store receipt file", "request_id", req.ID, "key", key, "error", err)
			w.cleanup(keys)
			return nil, common.NewAppError("STORAGE_ERROR", "receipt file could not be stored",
				fmt.Errorf("%w: %v", common.ErrStorage, err))
		}
		keys = append(keys, key)
		stored = append(stored, entity.ReceiptFile{
			OriginalName: p.name,
			StoredPath:   loc,
			Size:         p.body.n,
			MimeType:     p.mimeType,
		})
	}

	out, err := w.requests.UploadReceipt(ctx, actor, requestID, payments.ReceiptUpload{
		Files:                stored,
		TransactionReference: meta.TransactionReference,
		PaymentMethod:        meta.PaymentMethod,
		PaymentDate:          meta.PaymentDate,
		Notes:                meta.Notes,
	})
	if err != nil {
		w.cleanup(keys)
		return nil, err
	}
	return out, nil
}

func (w *Workflow) prepare(f File) (prepared, error) {
	name := filepath.Base(strings.TrimSpace(f.Name))
	if name == "." || name == string(filepath.Separator) {
		name = "receipt"
	}
	if f.Size > w.maxSize {
		return prepared{}, w.tooLarge(name)
	}
	if f.Body == nil {
		return prepared{}, common.ValidationErrorf("%s: file is empty", name)
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(f.Body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return prepared{}, common.NewAppError("INVALID_INPUT", "could not read "+name, common.ErrInvalidInput)
	}
	head = head[:n]
	if n == 0 {
		return prepared{}, common.ValidationErrorf("%s: file is empty", name)
	}

	mimeType := constants.NormalizeMime(f.ContentType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = constants.NormalizeMime(http.DetectContentType(head))
	}
	if _, ok := constants.AllowedReceiptMimeTypes[mimeType]; !ok {
		return prepared{}, common.NewAppError("UNSUPPORTED_MEDIA_TYPE",
			fmt.Sprintf("%s: %s is not allowed, use JPEG, PNG, GIF or PDF", name, mimeType), common.ErrUnsupportedMedia)
	}

	size := f.Size
	if size <= 0 {
		size = -1
	}
	return prepared{
		name:     name,
		mimeType: mimeType,
		ext:      constants.ExtensionForMime[mimeType],
		size:     size,
		body:     newCappedReader(io.MultiReader(bytes.NewReader(head), f.Body), w.maxSize),
	}, nil
}

func (w *Workflow) tooLarge(name string) error {
	return common.NewAppError("FILE_TOO_LARGE",
		fmt.Sprintf("%s exceeds the %d MB limit", name, w.maxSize>>20), common.ErrFileTooLarge)
}

// cleanup removes objects written for an upload that did not complete.
func (w *Workflow) cleanup(keys []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, k := range keys {
		if err := w.store.Delete(ctx, k); err != nil {
			w.logger.Warn("failed to remove orphaned receipt file", "key", k, "error", err)
		}
	}
}
