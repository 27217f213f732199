// Package metadata resolves off-chain parcel documents addressed by CID
// across a prioritized list of content gateways.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrUnresolvable signals that every configured gateway failed for a CID.
// It is per-record and non-fatal: callers degrade the record, they do not
// abort the batch.
var ErrUnresolvable = errors.New("metadata: cid unresolvable")

// ParcelMetadata is the public descriptive document stored off chain. The
// content is immutable: a CID addresses exactly one body, and edits mean a
// new upload plus an on-chain pointer update.
type ParcelMetadata struct {
	TitleNumber  string    `json:"titleNumber"`
	LandType     string    `json:"landType"`
	DeclaredArea float64   `json:"declaredArea"`
	AreaUnit     string    `json:"areaUnit"`
	PriceHuman   string    `json:"price"`
	Registrant   string    `json:"registrant"`
	CreatedAt    time.Time `json:"createdAt"`
	DocumentCID  string    `json:"documentCid"`
}

// Result is one slot of a batch resolution: either a document or the
// failure that exhausted the gateway list.
type Result struct {
	CID      string
	Metadata ParcelMetadata
	Err      error
}

// Resolved reports whether the slot carries a document.
func (r Result) Resolved() bool { return r.Err == nil }

const (
	defaultAttemptTimeout = 5 * time.Second
	maxBodyBytes          = 1 << 20
)

// Resolver fetches parcel metadata by CID, trying gateways in priority
// order. A single bad record never fails a batch.
type Resolver struct {
	gateways       []string
	client         *http.Client
	attemptTimeout time.Duration
	limit          int
}

// NewResolver builds a resolver over the given gateway base URLs, tried in
// order. At least one gateway is required for Resolve to succeed.
func NewResolver(gateways []string) *Resolver {
	trimmed := make([]string, 0, len(gateways))
	for _, gw := range gateways {
		if gw = strings.TrimRight(strings.TrimSpace(gw), "/"); gw != "" {
			trimmed = append(trimmed, gw)
		}
	}
	return &Resolver{
		gateways:       trimmed,
		client:         &http.Client{},
		attemptTimeout: defaultAttemptTimeout,
	}
}

// WithHTTPClient overrides the HTTP client used for gateway requests.
func (r *Resolver) WithHTTPClient(c *http.Client) *Resolver {
	r.client = c
	return r
}

// WithAttemptTimeout bounds each individual gateway attempt.
func (r *Resolver) WithAttemptTimeout(d time.Duration) *Resolver {
	r.attemptTimeout = d
	return r
}

// WithConcurrencyLimit caps how many CIDs ResolveMany fetches at once.
// Zero means unlimited.
func (r *Resolver) WithConcurrencyLimit(n int) *Resolver {
	r.limit = n
	return r
}

// Resolve fetches and parses the document for one CID. The first gateway
// returning HTTP 200 with a parseable JSON body wins; after the list is
// exhausted the error wraps ErrUnresolvable. There are no retries beyond
// the gateway list.
func (r *Resolver) Resolve(ctx context.Context, cid string) (ParcelMetadata, error) {
	if cid == "" {
		return ParcelMetadata{}, fmt.Errorf("%w: empty cid", ErrUnresolvable)
	}
	if len(r.gateways) == 0 {
		return ParcelMetadata{}, fmt.Errorf("%w: no gateways configured", ErrUnresolvable)
	}

	var lastErr error
	for _, gw := range r.gateways {
		md, err := r.fetch(ctx, gw, cid)
		if err == nil {
			return md, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return ParcelMetadata{}, fmt.Errorf("%w: cid %s: %v", ErrUnresolvable, cid, lastErr)
}

func (r *Resolver) fetch(ctx context.Context, gateway, cid string) (ParcelMetadata, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, gateway+"/"+cid, nil)
	if err != nil {
		return ParcelMetadata{}, fmt.Errorf("build request for %s: %w", gateway, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return ParcelMetadata{}, fmt.Errorf("gateway %s: %w", gateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return ParcelMetadata{}, fmt.Errorf("gateway %s: unexpected status %d", gateway, resp.StatusCode)
	}

	var md ParcelMetadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&md); err != nil {
		return ParcelMetadata{}, fmt.Errorf("gateway %s: decode body: %w", gateway, err)
	}
	return md, nil
}

// ResolveMany resolves all CIDs concurrently and returns one Result per
// input, in input order regardless of completion order. Each slot fails or
// succeeds independently; ResolveMany itself never fails.
func (r *Resolver) ResolveMany(ctx context.Context, cids []string) []Result {
	results := make([]Result, len(cids))

	g := new(errgroup.Group)
	if r.limit > 0 {
		g.SetLimit(r.limit)
	}
	for i, cid := range cids {
		g.Go(func() error {
			md, err := r.Resolve(ctx, cid)
			results[i] = Result{CID: cid, Metadata: md, Err: err}
			return nil
		})
	}
	g.Wait()

	return results
}
