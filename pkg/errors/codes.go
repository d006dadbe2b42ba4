// Package errors provides centralized error code definitions for the tagwalker platform.
// All error codes are grouped by business domain and mapped to HTTP status codes.
package errors

import "net/http"

// ErrorCode represents a typed error code used throughout the tagwalker platform.
// Codes are partitioned by domain to avoid conflicts and simplify maintenance.
type ErrorCode int

// ─────────────────────────────────────────────────────────────────────────────
// General / cross-cutting error codes  (1xxxx)
// ─────────────────────────────────────────────────────────────────────────────
const (
	// CodeOK indicates no error.
	CodeOK ErrorCode = 0

	// CodeUnknown is a catch-all for errors that have not been categorised.
	CodeUnknown ErrorCode = 10000

	// CodeInvalidParam is returned when one or more request parameters fail
	// validation (missing required fields, type mismatch, out-of-range values, etc.).
	CodeInvalidParam ErrorCode = 10001

	// CodeUnauthorized is returned when a request lacks valid authentication credentials.
	CodeUnauthorized ErrorCode = 10002

	// CodeForbidden is returned when authenticated credentials do not grant access
	// to the requested resource or action.
	CodeForbidden ErrorCode = 10003

	// CodeNotFound is returned when the requested resource does not exist.
	CodeNotFound ErrorCode = 10004

	// CodeConflict is returned when a create/update operation violates a uniqueness
	// or state constraint (e.g., duplicate resource, optimistic lock failure).
	CodeConflict ErrorCode = 10005

	// CodeRateLimit is returned when the caller has exceeded the allowed request rate.
	CodeRateLimit ErrorCode = 10006

	// CodeInternal is returned for unexpected server-side errors that are not
	// attributable to the caller.
	CodeInternal ErrorCode = 10007

	// CodeNotImplemented is returned when a requested feature or endpoint is
	// not yet implemented.
	CodeNotImplemented ErrorCode = 10008
)

// ─────────────────────────────────────────────────────────────────────────────
// Ingest domain error codes  (2xxxx)
// ─────────────────────────────────────────────────────────────────────────────
const (
	// CodeCompoundNotFound is returned when a compound with the requested
	// identifier or path cannot be located in any backing store.
	CodeCompoundNotFound ErrorCode = 20001

	// CodeSanitizeRejected is returned when the sanitizer refuses to admit a
	// compound (binary content, disallowed extension, size over the configured
	// ceiling).
	CodeSanitizeRejected ErrorCode = 20002

	// CodeIngestVerifyFailed is returned when the read-after-write verification
	// step of an idempotent upsert does not observe the row it just wrote.
	CodeIngestVerifyFailed ErrorCode = 20003

	// CodeStoreBusy is returned when persistence retries are exhausted while
	// waiting out lock contention on an upsert batch.
	CodeStoreBusy ErrorCode = 20004

	// CodeQuarantineFailed is returned when the quarantine-then-replace
	// re-ingestion path cannot mark the stale generation as quarantined before
	// writing the new one.
	CodeQuarantineFailed ErrorCode = 20005
)

// ─────────────────────────────────────────────────────────────────────────────
// Atomize domain error codes  (3xxxx)
// ─────────────────────────────────────────────────────────────────────────────
const (
	// CodeAtomizeEmpty is returned when a sanitized compound yields zero
	// molecules after fission (entirely whitespace, entirely stripped content).
	CodeAtomizeEmpty ErrorCode = 30001

	// CodeAtomNotFound is returned when an atom with the requested canonical
	// tag cannot be located in the graph store.
	CodeAtomNotFound ErrorCode = 30002

	// CodeSimHashCollapse is returned when simhash near-duplicate folding
	// collapses a molecule batch to nothing distinguishable, signalling a
	// shingle-size or threshold misconfiguration.
	CodeSimHashCollapse ErrorCode = 30003
)

// ─────────────────────────────────────────────────────────────────────────────
// Remote fetch domain error codes  (4xxxx)
// ─────────────────────────────────────────────────────────────────────────────
const (
	// CodeFetchError is returned when the remote fetcher cannot download or
	// extract a GitHub tarball.
	CodeFetchError ErrorCode = 40001

	// CodeRateLimited is returned when the GitHub API rate limiter has no
	// tokens left and the caller asked for a non-blocking fetch.
	CodeRateLimited ErrorCode = 40002

	// CodeRefNotFound is returned when the requested branch, tag, or commit
	// does not exist on the remote repository.
	CodeRefNotFound ErrorCode = 40003
)

// ─────────────────────────────────────────────────────────────────────────────
// Watcher domain error codes  (5xxxx)
// ─────────────────────────────────────────────────────────────────────────────
const (
	// CodeWatchSetupFailed is returned when the filesystem watcher cannot
	// establish an inotify/kqueue watch on a configured root.
	CodeWatchSetupFailed ErrorCode = 50001

	// CodeProvenanceUnresolved is returned when a changed path cannot be
	// classified into any configured provenance root (internal/external/inbox).
	CodeProvenanceUnresolved ErrorCode = 50002
)

// ─────────────────────────────────────────────────────────────────────────────
// Retrieval domain error codes  (6xxxx)
// ─────────────────────────────────────────────────────────────────────────────
const (
	// CodeFtsSyntaxError is returned when a search query cannot be parsed by
	// the anchor-phase full-text query builder.
	CodeFtsSyntaxError ErrorCode = 60001

	// CodeRetrievalTimeout is returned when a Tag-Walker query exceeds its
	// configured deadline before the anchor and neighbor-walk phases complete.
	CodeRetrievalTimeout ErrorCode = 60002

	// CodeEmptyBudget is returned when a retrieval request specifies a result
	// budget of zero or less.
	CodeEmptyBudget ErrorCode = 60003
)

// ─────────────────────────────────────────────────────────────────────────────
// Infrastructure error codes  (7xxxx)
// ─────────────────────────────────────────────────────────────────────────────
const (
	// CodeDBConnectionError is returned when the application cannot establish or
	// re-use a connection to PostgreSQL or Neo4j.
	CodeDBConnectionError ErrorCode = 70001

	// CodeDBQueryError is returned when a database query fails due to syntax
	// errors, constraint violations (not covered by CodeConflict), or other
	// execution-time failures.
	CodeDBQueryError ErrorCode = 70007

	// CodeDatabaseError is a general error for database-related failures that
	// are not specifically connection issues.
	CodeDatabaseError ErrorCode = 70006

	// CodeCacheError is returned when a Redis operation (GET, SET, DEL, EVAL, etc.)
	// fails due to connection loss, timeout, or an unexpected response.
	CodeCacheError ErrorCode = 70002

	// CodeSearchError is returned when an OpenSearch or Milvus query or indexing
	// operation fails.
	CodeSearchError ErrorCode = 70003

	// CodeMessageQueueError is returned when producing to or consuming from a
	// Kafka topic fails (broker unavailable, serialisation error, offset commit, etc.).
	CodeMessageQueueError ErrorCode = 70004

	// CodeStorageError is returned when a MinIO object storage operation (upload,
	// download, stat, delete) fails.
	CodeStorageError ErrorCode = 70005
)

// ─────────────────────────────────────────────────────────────────────────────
// String — human-readable name of the error code
// ─────────────────────────────────────────────────────────────────────────────

// String returns the human-readable name associated with an ErrorCode.
// It is safe to call on any value, including unknown codes.
func (c ErrorCode) String() string {
	switch c {
	// General
	case CodeOK:
		return "OK"
	case CodeUnknown:
		return "UNKNOWN"
	case CodeInvalidParam:
		return "INVALID_PARAM"
	case CodeUnauthorized:
		return "UNAUTHORIZED"
	case CodeForbidden:
		return "FORBIDDEN"
	case CodeNotFound:
		return "NOT_FOUND"
	case CodeConflict:
		return "CONFLICT"
	case CodeRateLimit:
		return "RATE_LIMIT"
	case CodeInternal:
		return "INTERNAL_ERROR"
	case CodeNotImplemented:
		return "NOT_IMPLEMENTED"

	// Ingest
	case CodeCompoundNotFound:
		return "COMPOUND_NOT_FOUND"
	case CodeSanitizeRejected:
		return "SANITIZE_REJECTED"
	case CodeIngestVerifyFailed:
		return "INGEST_VERIFY_FAILED"
	case CodeStoreBusy:
		return "STORE_BUSY"
	case CodeQuarantineFailed:
		return "QUARANTINE_FAILED"

	// Atomize
	case CodeAtomizeEmpty:
		return "ATOMIZE_EMPTY"
	case CodeAtomNotFound:
		return "ATOM_NOT_FOUND"
	case CodeSimHashCollapse:
		return "SIMHASH_COLLAPSE"

	// Remote fetch
	case CodeFetchError:
		return "FETCH_ERROR"
	case CodeRateLimited:
		return "RATE_LIMITED"
	case CodeRefNotFound:
		return "REF_NOT_FOUND"

	// Watcher
	case CodeWatchSetupFailed:
		return "WATCH_SETUP_FAILED"
	case CodeProvenanceUnresolved:
		return "PROVENANCE_UNRESOLVED"

	// Retrieval
	case CodeFtsSyntaxError:
		return "FTS_SYNTAX_ERROR"
	case CodeRetrievalTimeout:
		return "RETRIEVAL_TIMEOUT"
	case CodeEmptyBudget:
		return "EMPTY_BUDGET"

	// Infrastructure
	case CodeDBConnectionError:
		return "DB_CONNECTION_ERROR"
	case CodeDBQueryError:
		return "DB_QUERY_ERROR"
	case CodeDatabaseError:
		return "DATABASE_ERROR"
	case CodeCacheError:
		return "CACHE_ERROR"
	case CodeSearchError:
		return "SEARCH_ERROR"
	case CodeMessageQueueError:
		return "MESSAGE_QUEUE_ERROR"
	case CodeStorageError:
		return "STORAGE_ERROR"

	default:
		return "UNKNOWN_CODE"
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// HTTPStatus — mapping from domain error codes to HTTP status codes
// ─────────────────────────────────────────────────────────────────────────────

// HTTPStatus returns the most appropriate HTTP status code for the given ErrorCode.
// The mapping follows RFC 9110 semantics and is used by HTTP handlers in
// internal/interfaces/http/handlers/ to translate domain errors into HTTP responses.
//
// Decision matrix:
//   - 200 OK              → CodeOK
//   - 400 Bad Request     → CodeInvalidParam, CodeSanitizeRejected, CodeFtsSyntaxError, CodeEmptyBudget
//   - 401 Unauthorized    → CodeUnauthorized
//   - 403 Forbidden       → CodeForbidden
//   - 404 Not Found       → CodeNotFound, CodeCompoundNotFound, CodeAtomNotFound, CodeRefNotFound
//   - 409 Conflict        → CodeConflict, CodeQuarantineFailed
//   - 429 Too Many Req.   → CodeRateLimit, CodeRateLimited
//   - 503 Service Unavail → CodeDBConnectionError, CodeMessageQueueError, CodeStoreBusy, CodeWatchSetupFailed
//   - 504 Gateway Timeout → CodeRetrievalTimeout
//   - 500 Internal Server → everything else
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeOK:
		return http.StatusOK

	case CodeInvalidParam,
		CodeSanitizeRejected,
		CodeFtsSyntaxError,
		CodeEmptyBudget,
		CodeProvenanceUnresolved:
		return http.StatusBadRequest

	case CodeUnauthorized:
		return http.StatusUnauthorized

	case CodeForbidden:
		return http.StatusForbidden

	case CodeNotFound,
		CodeCompoundNotFound,
		CodeAtomNotFound,
		CodeRefNotFound:
		return http.StatusNotFound

	case CodeConflict,
		CodeQuarantineFailed:
		return http.StatusConflict

	case CodeRateLimit,
		CodeRateLimited:
		return http.StatusTooManyRequests

	case CodeDBConnectionError,
		CodeMessageQueueError,
		CodeStorageError,
		CodeStoreBusy,
		CodeWatchSetupFailed:
		return http.StatusServiceUnavailable

	case CodeDBQueryError:
		return http.StatusInternalServerError

	case CodeNotImplemented:
		return http.StatusNotImplemented

	case CodeRetrievalTimeout:
		return http.StatusGatewayTimeout

	default:
		// CodeUnknown, CodeInternal, CodeIngestVerifyFailed, CodeAtomizeEmpty,
		// CodeSimHashCollapse, CodeFetchError, CodeCacheError, CodeSearchError,
		// and all unrecognised codes.
		return http.StatusInternalServerError
	}
}

