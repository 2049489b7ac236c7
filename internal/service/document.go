package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"condoledger/internal/clients"
	"condoledger/internal/domain"
	"condoledger/internal/render"
	"condoledger/internal/repository"
)

const (
	documentTTL    = 20 * time.Minute
	documentURLTTL = 48 * time.Hour
)

// DocumentStatus tracks one async export in redis. Progress reaches 100
// only once the file URL is ready.
type DocumentStatus struct {
	Key      string    `json:"key"`
	Type     string    `json:"type"`
	UserID   int64     `json:"user_id"`
	Filters  any       `json:"filters"`
	Progress float64   `json:"progress"`
	FileURL  *string   `json:"file_url"`
	Created  time.Time `json:"created_at"`
	Error    string    `json:"error,omitempty"`
}

type DocumentService struct {
	receipts *repository.ReceiptRepository
	reports  *ReportService

	redis   *clients.RedisClient
	storage *clients.StorageClient
	s3      *clients.S3Client
	ws      *clients.WebSocketClient
	log     *slog.Logger
}

func NewDocumentService(
	receipts *repository.ReceiptRepository,
	reports *ReportService,
	redis *clients.RedisClient,
	storage *clients.StorageClient,
	s3 *clients.S3Client,
	ws *clients.WebSocketClient,
	log *slog.Logger,
) *DocumentService {
	return &DocumentService{
		receipts: receipts,
		reports:  reports,
		redis:    redis,
		storage:  storage,
		s3:       s3,
		ws:       ws,
		log:      log,
	}
}

// ReceiptDocument renders a single receipt workbook synchronously; single
// receipts are small enough not to need the async path.
func (s *DocumentService) ReceiptDocument(ctx context.Context, receiptID int64) ([]byte, string, error) {
	rec, err := s.receipts.GetByID(ctx, receiptID)
	if err != nil {
		return nil, "", err
	}

	data, err := render.ReceiptDocument(rec)
	if err != nil {
		return nil, "", fmt.Errorf("render receipt %s: %w", rec.Number, err)
	}

	return data, fmt.Sprintf("receipt_%s.xlsx", rec.Number), nil
}

// StartReceiptsExport kicks off a background export of the filtered
// receipt list and returns its tracking key.
func (s *DocumentService) StartReceiptsExport(
	ctx context.Context,
	selected []string,
	filter repository.ReceiptsFilter,
	userID int64,
) (string, error) {
	documentID := fmt.Sprintf("documents:%s", uuid.NewString())

	status := &DocumentStatus{
		Key:     documentID,
		Type:    "receipts",
		UserID:  userID,
		Filters: receiptsFilterMap(filter, selected),
		Created: time.Now(),
	}
	if err := s.saveStatus(ctx, status); err != nil {
		return "", err
	}

	go s.runReceiptsExport(context.Background(), status, selected, filter)

	return documentID, nil
}

func (s *DocumentService) runReceiptsExport(
	ctx context.Context,
	status *DocumentStatus,
	selected []string,
	filter repository.ReceiptsFilter,
) {
	fail := func(stage string, err error) {
		s.log.Error("receipts export failed", "document", status.Key, "stage", stage, "err", err)
		status.Error = err.Error()
		_ = s.saveStatus(ctx, status)
		if s.ws != nil {
			_ = s.ws.NotifyDocumentFailed(ctx, status.UserID, status.Key, err.Error())
		}
	}

	receipts, err := s.receipts.List(ctx, filter)
	if err != nil {
		fail("query", err)
		return
	}

	// row processing caps at 90; 100 means the URL is ready
	total := len(receipts)
	status.Progress = 90
	_ = s.saveStatus(ctx, status)
	if s.ws != nil {
		_ = s.ws.NotifyDocumentProgress(ctx, status.UserID, status.Key, 90, "generating")
	}

	data, err := render.ReceiptList(receipts, selected)
	if err != nil {
		fail("render", err)
		return
	}

	fileName := fmt.Sprintf("receipts_%s.xlsx", time.Now().Format("20060102_150405"))

	status.Progress = 95
	_ = s.saveStatus(ctx, status)
	if s.ws != nil {
		_ = s.ws.NotifyDocumentProgress(ctx, status.UserID, status.Key, 95, "uploading")
	}

	url, err := s.store(ctx, fileName, data)
	if err != nil {
		fail("upload", err)
		return
	}

	status.FileURL = &url
	status.Progress = 100
	_ = s.saveStatus(ctx, status)

	if s.ws != nil {
		_ = s.ws.NotifyDocumentProgress(ctx, status.UserID, status.Key, 100, "ready")
		_ = s.ws.NotifyDocumentComplete(ctx, status.UserID, status.Key, url, fileName)
	}

	s.log.Info("receipts export complete", "document", status.Key, "rows", total)
}

// StartDelinquentsExport kicks off a background export of the delinquency
// report and returns its tracking key.
func (s *DocumentService) StartDelinquentsExport(ctx context.Context, userID int64) (string, error) {
	documentID := fmt.Sprintf("documents:%s", uuid.NewString())

	status := &DocumentStatus{
		Key:     documentID,
		Type:    "delinquents",
		UserID:  userID,
		Filters: map[string]any{"report": "delinquents"},
		Created: time.Now(),
	}
	if err := s.saveStatus(ctx, status); err != nil {
		return "", err
	}

	go s.runDelinquentsExport(context.Background(), status)

	return documentID, nil
}

func (s *DocumentService) runDelinquentsExport(ctx context.Context, status *DocumentStatus) {
	fail := func(stage string, err error) {
		s.log.Error("delinquents export failed", "document", status.Key, "stage", stage, "err", err)
		status.Error = err.Error()
		_ = s.saveStatus(ctx, status)
		if s.ws != nil {
			_ = s.ws.NotifyDocumentFailed(ctx, status.UserID, status.Key, err.Error())
		}
	}

	delinquents, err := s.reports.Delinquents(ctx)
	if err != nil {
		fail("query", err)
		return
	}

	status.Progress = 90
	_ = s.saveStatus(ctx, status)
	if s.ws != nil {
		_ = s.ws.NotifyDocumentProgress(ctx, status.UserID, status.Key, 90, "generating")
	}

	rows := make([]render.DelinquentRow, 0, len(delinquents))
	for _, d := range delinquents {
		rows = append(rows, render.DelinquentRow{
			OwnerName:   d.OwnerName,
			Phone:       d.Phone,
			OpenCount:   d.OpenCount,
			OldestSince: d.OldestSince,
			TotalOwed:   d.TotalOwed,
		})
	}

	data, err := render.DelinquentsList(rows)
	if err != nil {
		fail("render", err)
		return
	}

	fileName := fmt.Sprintf("delinquents_%s.xlsx", time.Now().Format("20060102_150405"))

	status.Progress = 95
	_ = s.saveStatus(ctx, status)
	if s.ws != nil {
		_ = s.ws.NotifyDocumentProgress(ctx, status.UserID, status.Key, 95, "uploading")
	}

	url, err := s.store(ctx, fileName, data)
	if err != nil {
		fail("upload", err)
		return
	}

	status.FileURL = &url
	status.Progress = 100
	_ = s.saveStatus(ctx, status)

	if s.ws != nil {
		_ = s.ws.NotifyDocumentProgress(ctx, status.UserID, status.Key, 100, "ready")
		_ = s.ws.NotifyDocumentComplete(ctx, status.UserID, status.Key, url, fileName)
	}

	s.log.Info("delinquents export complete", "document", status.Key, "rows", len(rows))
}

// store prefers the S3 backend with a presigned URL, falling back to local
// storage.
func (s *DocumentService) store(ctx context.Context, fileName string, data []byte) (string, error) {
	if s.s3 != nil {
		key, err := s.s3.UploadXLSX(ctx, fileName, data)
		if err != nil {
			return "", err
		}
		return s.s3.GetTemporaryURL(ctx, key, documentURLTTL)
	}
	if s.storage != nil {
		saved, err := s.storage.Save(ctx, fileName, data)
		if err != nil {
			return "", err
		}
		return s.storage.GetURL(saved), nil
	}
	return "", errors.New("no document storage configured")
}

func (s *DocumentService) saveStatus(ctx context.Context, status *DocumentStatus) error {
	if s.redis == nil {
		return nil
	}
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, status.Key, string(data), documentTTL); err != nil {
		return err
	}
	return s.redis.Set(ctx, documentIndexKey(status.UserID, status.Key), "1", documentTTL)
}

func documentIndexKey(userID int64, key string) string {
	return fmt.Sprintf("documents_index:%d:%s", userID, key)
}

// ListDocuments returns the user's live export statuses, newest first.
func (s *DocumentService) ListDocuments(ctx context.Context, userID int64) ([]DocumentStatus, error) {
	if s.redis == nil {
		return nil, errors.New("redis client not configured")
	}

	markers, err := s.redis.Keys(ctx, fmt.Sprintf("documents_index:%d:*", userID))
	if err != nil {
		return nil, err
	}

	prefix := fmt.Sprintf("documents_index:%d:", userID)
	out := []DocumentStatus{}
	for _, marker := range markers {
		key := strings.TrimPrefix(marker, prefix)

		data, err := s.redis.Get(ctx, key)
		if err != nil || data == "" {
			// the status expired after its marker; skip it
			continue
		}
		var status DocumentStatus
		if err := json.Unmarshal([]byte(data), &status); err != nil {
			s.log.Debug("skip unreadable document status", "key", key, "err", err)
			continue
		}
		out = append(out, status)
	}

	SortDocuments(out)
	return out, nil
}

// GetDocument returns one export status owned by the user.
func (s *DocumentService) GetDocument(ctx context.Context, documentID string, userID int64) (DocumentStatus, error) {
	if s.redis == nil {
		return DocumentStatus{}, errors.New("redis client not configured")
	}

	data, err := s.redis.Get(ctx, documentID)
	if err != nil || data == "" {
		return DocumentStatus{}, fmt.Errorf("%w: document %s", domain.ErrNotFound, documentID)
	}

	var status DocumentStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return DocumentStatus{}, fmt.Errorf("parse document status: %w", err)
	}
	if status.UserID != userID {
		return DocumentStatus{}, fmt.Errorf("%w: document %s", domain.ErrNotFound, documentID)
	}
	return status, nil
}

// SortDocuments orders statuses newest first for listing.
func SortDocuments(statuses []DocumentStatus) {
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Created.After(statuses[j].Created)
	})
}

func receiptsFilterMap(f repository.ReceiptsFilter, fields []string) map[string]any {
	m := map[string]any{}
	if f.UnitID != nil {
		m["unit_id"] = *f.UnitID
	} else {
		m["unit_id"] = nil
	}
	if f.OwnerID != nil {
		m["owner_id"] = *f.OwnerID
	} else {
		m["owner_id"] = nil
	}
	if f.EmissionMonth != nil {
		m["month"] = f.EmissionMonth.Format("2006-01")
	} else {
		m["month"] = nil
	}
	if f.State != nil {
		m["state"] = string(*f.State)
	} else {
		m["state"] = nil
	}
	m["fields"] = fields
	return m
}
