package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/super-pm-ai/superpm-mcp/internal/domain/audit"
)

// DefaultAuditBuffer is the record channel capacity. When the writer falls
// behind, Record drops rather than blocking the request path.
const DefaultAuditBuffer = 1024

// AuditService writes invocation records asynchronously through a bounded
// channel so slow storage never stalls dispatch.
type AuditService struct {
	store   audit.Store
	records chan audit.Record
	dropped atomic.Uint64
	logger  *slog.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewAuditService creates a recorder backed by store. bufferSize <= 0 uses
// DefaultAuditBuffer.
func NewAuditService(store audit.Store, bufferSize int, logger *slog.Logger) *AuditService {
	if bufferSize <= 0 {
		bufferSize = DefaultAuditBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditService{
		store:   store,
		records: make(chan audit.Record, bufferSize),
		logger:  logger,
	}
}

// Start launches the background writer. It drains the channel after ctx is
// cancelled so records accepted before shutdown still land on disk.
func (a *AuditService) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case rec, ok := <-a.records:
				if !ok {
					return
				}
				a.write(rec)
			case <-ctx.Done():
				for {
					select {
					case rec, ok := <-a.records:
						if !ok {
							return
						}
						a.write(rec)
					default:
						return
					}
				}
			}
		}
	}()
}

func (a *AuditService) write(rec audit.Record) {
	if err := a.store.Write(context.Background(), rec); err != nil {
		a.logger.Error("failed to write audit record", "method", rec.Method, "name", rec.Name, "error", err)
	}
}

// Record enqueues rec without blocking. Records are dropped when the
// buffer is full; the drop count is surfaced via DroppedRecords.
func (a *AuditService) Record(rec audit.Record) {
	select {
	case a.records <- rec:
	default:
		n := a.dropped.Add(1)
		if n == 1 || n%100 == 0 {
			a.logger.Warn("audit buffer full, dropping records", "dropped_total", n)
		}
	}
}

// Stop closes the channel and waits for the writer to drain. Safe to call
// more than once.
func (a *AuditService) Stop() {
	a.stopOnce.Do(func() {
		close(a.records)
		a.wg.Wait()
	})
}

// ChannelDepth reports the number of records waiting to be written.
func (a *AuditService) ChannelDepth() int {
	return len(a.records)
}

// ChannelCapacity reports the record buffer capacity.
func (a *AuditService) ChannelCapacity() int {
	return cap(a.records)
}

// DroppedRecords reports the total records dropped due to backpressure.
func (a *AuditService) DroppedRecords() uint64 {
	return a.dropped.Load()
}
