/*
Package s3 implements types.Adapter over AWS S3 and S3-compatible
object stores (BackendS3 / BackendS3Compat).

Grounded on the teacher's internal/storage/s3 backend: a pooled S3
client set (ConnectionPool, adapted from pool.go), a circuit breaker
around the listing, download and upload calls, and an optional CargoShip-backed upload
path for large-object throughput. Dropped along the way: the teacher's
storage-tier/cost-optimization/pricing-manager machinery
(tiers.go, cost_optimizer.go, pricing_manager.go) — this engine moves
objects between accounts, it does not manage their lifecycle once they
land in a bucket.

# Bucket/Key Addressing

An Adapter's Root is always "/bucket" or "/bucket/key...", split via
pkg/pathutil.SplitBucketKey. WithRoot clones the adapter into a new key
within the same bucket, sharing the connection pool, circuit breaker,
and CargoShip transporter — this is how the feeder turns an
account-level adapter into a row-specific source or destination handle.

# Reliability

ListObjectsV2 (Listdir), GetObject (Download) and the plain PutObject
in Finalize are wrapped by doWithRetry, which runs pkg/retry's
exponential backoff around the circuit breaker: a tripped breaker
fails an attempt immediately rather than waiting out a retry's full
backoff window against a backend known to be down. HeadObject
(Exists), the directory-marker PutObject (Makedirs), DeleteObject
(Remove) and the CargoShip upload are issued directly, without the
retryer or the breaker.

The retryer only retries *errors.TransferError values that are marked
retryable or carry a retryable code. Errors returned by the AWS SDK
client are not of that type, so doWithRetry does not retry them; the
SDK's own retryer (Config.MaxRetries attempts) is what retries SDK
calls.

# Uploads

When CargoShip optimization is enabled, Finalize routes the buffered
object through cargoships3.Transporter.Upload, which tunes its
multipart concurrency and congestion control for sustained throughput
on large objects; on any transporter error it falls back to a plain
PutObject.
*/
package s3
