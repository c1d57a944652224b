package scans

import "context"

// Scanner port (interface untuk remote scan service)
type Scanner interface {
	Scan(ctx context.Context, req Request) (*ScanResult, error)
	PageTrust(ctx context.Context, url string) (*PageTrust, error)
}

// ResultCache port for the in-memory verdict cache.
type ResultCache interface {
	Lookup(key string) (*ScanResult, bool)
	Store(key string, r *ScanResult)
}

// Archive port (interface untuk penyimpanan hasil scan di object storage)
type Archive interface {
	Put(ctx context.Context, r *ScanResult, url string) (string, error)
}
