package firmware

import (
	"context"
	"io"
)

// Repository persists firmware metadata. Register must flip the currently
// active row off and the new row on inside a single transaction so that at
// most one row is active at any time, across restarts and replicas.
type Repository interface {
	Register(ctx context.Context, meta *Metadata) error
	GetLatestActive(ctx context.Context) (*Metadata, error)
	GetByVersion(ctx context.Context, version string) (*Metadata, error)
}

// ReportRepository is the append-only OTA report log.
type ReportRepository interface {
	Append(ctx context.Context, report *Report) error
	List(ctx context.Context, filter *ReportFilter) ([]*Report, error)
}

// ReportFilter narrows the report listing. Limit caps the result count.
type ReportFilter struct {
	DeviceID        string
	FirmwareVersion string
	Limit           int
}

// PutResult is what the artifact store computed while persisting a binary.
type PutResult struct {
	StoragePath string
	Checksum    string
	Size        int64
}

// ArtifactStore owns the physical firmware bytes, one write-once file per
// version. Put hashes the stream itself and never trusts a caller-supplied
// checksum; exceeding maxSize aborts the write.
type ArtifactStore interface {
	Put(ctx context.Context, version, filename string, r io.Reader, maxSize int64) (*PutResult, error)
	Open(storagePath string) (io.ReadSeekCloser, error)
	Remove(storagePath string) error
}
