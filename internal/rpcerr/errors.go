// Package rpcerr defines the sentinel error taxonomy shared across the
// store, fetcher, ingestion and RPC layers. Callers compare with
// errors.Is rather than string matching.
package rpcerr

import "errors"

var (
	// ErrAlreadyPopulated is returned by Store.InitializeAssets when the
	// asset collection already holds a conflicting or complete set of
	// names. Callers may choose to ignore it.
	ErrAlreadyPopulated = errors.New("assets already populated")

	// ErrAssetNotFound is returned when a referenced asset id does not
	// resolve to a known Asset.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrDuplicateKey marks a racing upsert that lost to an existing
	// (asset, time) document. Store implementations must never let this
	// surface past UpsertPoint.
	ErrDuplicateKey = errors.New("duplicate (asset, time) key")

	// ErrUpstreamFormat marks a malformed upstream payload: the JSONP
	// envelope didn't match, the JSON failed to decode, or Rates was
	// missing or not an array.
	ErrUpstreamFormat = errors.New("upstream payload malformed")

	// ErrUpstreamTimeout marks a connect or total-timeout failure
	// talking to the upstream provider.
	ErrUpstreamTimeout = errors.New("upstream request timed out")

	// ErrInvariant marks an internal invariant violation, e.g. a point
	// whose asset reference failed to resolve. Fatal for the streaming
	// task that observes it.
	ErrInvariant = errors.New("internal invariant violation")
)
