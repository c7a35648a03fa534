package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/securebank/backoffice/internal/logging"
	"github.com/securebank/backoffice/types"
)

const exportPrefix = "transfers/"

// ObjectStore is the subset of object storage the exporter uses.
type ObjectStore interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// ExportService snapshots the transfer history into object storage.
type ExportService struct {
	ledger  *LedgerService
	objects ObjectStore
	log     logging.Logger
	now     func() time.Time
}

func NewExportService(ledger *LedgerService, objects ObjectStore, log logging.Logger) *ExportService {
	if log == nil {
		log = logging.Nop()
	}
	return &ExportService{ledger: ledger, objects: objects, log: log, now: time.Now}
}

// TransferSnapshot is the document written by ExportTransfers.
type TransferSnapshot struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Count       int              `json:"count"`
	Transfers   []types.Transfer `json:"transfers"`
}

// ExportTransfers writes the most recent transfers as a JSON document and
// returns the object key. It runs outside any operator session.
func (e *ExportService) ExportTransfers(ctx context.Context, limit int) (string, error) {
	transfers, err := e.ledger.recentTransfers(ctx, limit)
	if err != nil {
		return "", err
	}
	if transfers == nil {
		transfers = []types.Transfer{}
	}

	generatedAt := e.now().UTC()
	data, err := json.MarshalIndent(TransferSnapshot{
		GeneratedAt: generatedAt,
		Count:       len(transfers),
		Transfers:   transfers,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	if err := e.objects.EnsureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}

	key := fmt.Sprintf("%s%s-%s.json", exportPrefix, generatedAt.Format("20060102T150405Z"), uuid.NewString())
	if err := e.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	e.log.Info(ctx, "transfers exported", "key", key, "count", len(transfers))
	return key, nil
}

// Snapshot reads back a document written by ExportTransfers.
func (e *ExportService) Snapshot(ctx context.Context, key string) (TransferSnapshot, error) {
	if err := checkExportKey(key); err != nil {
		return TransferSnapshot{}, err
	}

	rc, err := e.objects.Get(ctx, key)
	if err != nil {
		return TransferSnapshot{}, fmt.Errorf("download %s: %w", key, err)
	}
	defer rc.Close()

	var snapshot TransferSnapshot
	if err := json.NewDecoder(rc).Decode(&snapshot); err != nil {
		return TransferSnapshot{}, fmt.Errorf("decode %s: %w", key, err)
	}
	if snapshot.Count != len(snapshot.Transfers) {
		return TransferSnapshot{}, fmt.Errorf("snapshot %s: count %d does not match %d transfers", key, snapshot.Count, len(snapshot.Transfers))
	}
	return snapshot, nil
}

// Remove deletes an exported snapshot.
func (e *ExportService) Remove(ctx context.Context, key string) error {
	if err := checkExportKey(key); err != nil {
		return err
	}
	if err := e.objects.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	e.log.Info(ctx, "transfer export removed", "key", key)
	return nil
}

// checkExportKey keeps show and delete confined to export documents.
func checkExportKey(key string) error {
	if !strings.HasPrefix(key, exportPrefix) || !strings.HasSuffix(key, ".json") {
		return fmt.Errorf("%q is not a transfer export key", key)
	}
	return nil
}
