package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/irouter/irouter/internal/errors"
	"github.com/irouter/irouter/pkg/types"
)

var remoteExtensions = map[string]bool{
	".parquet": true,
}

var remoteFeatures = map[string]bool{
	types.FeatureWindowFunctions: true,
	types.FeatureCTE:             true,
	types.FeatureJoins:           true,
}

// remoteQueryRequest is the wire request sent to the execution service.
type remoteQueryRequest struct {
	SQL   string   `json:"sql"`
	Table string   `json:"table"`
	Files []string `json:"files"`
}

// remoteQueryResponse is the wire response.
type remoteQueryResponse struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
	Error   string          `json:"error,omitempty"`
}

// RemoteBackend delegates execution to an HTTP service that can reach the
// same data files.
type RemoteBackend struct {
	endpoint string
	client   *http.Client
}

// NewRemote creates a remote backend against the given endpoint URL.
// A zero timeout defaults to 60s.
func NewRemote(endpoint string, timeout time.Duration) *RemoteBackend {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RemoteBackend{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (b *RemoteBackend) Kind() types.BackendKind { return types.BackendRemote }

func (b *RemoteBackend) SupportsFeature(feature string) bool {
	return remoteFeatures[feature]
}

// Execute posts the query and file list to the service. No readable files
// short-circuits to an empty result without a network round trip.
func (b *RemoteBackend) Execute(ctx context.Context, query string, pruning *types.PruningResult, table string) (*Result, error) {
	files := filterFiles(pruning.DataFilePaths(), remoteExtensions)
	if len(files) == 0 {
		return &Result{}, nil
	}

	body, err := json.Marshal(remoteQueryRequest{SQL: query, Table: table, Files: files})
	if err != nil {
		return nil, errors.NewBackendError(string(types.BackendRemote), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewBackendError(string(types.BackendRemote), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, errors.NewBackendError(string(types.BackendRemote), err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 256<<20))
	if err != nil {
		return nil, errors.NewBackendError(string(types.BackendRemote), err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewBackendError(string(types.BackendRemote),
			fmt.Errorf("service returned %d: %s", resp.StatusCode, truncate(payload, 200)))
	}

	var out remoteQueryResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, errors.NewBackendError(string(types.BackendRemote), err)
	}
	if out.Error != "" {
		return nil, errors.NewBackendError(string(types.BackendRemote), fmt.Errorf("%s", out.Error))
	}
	return &Result{Columns: out.Columns, Rows: out.Rows}, nil
}

func (b *RemoteBackend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
