// Package lease serializes work on a single physical lock.
//
// The reconciliation runner and the retry worker both take the lease for a
// lock before checking the success ledger and changing the device, so the
// idempotency check and the write it guards cannot interleave. RedisLocker
// (bsm/redislock) is used when redis.address is configured; LocalLocker covers
// single-process deployments. A Redis lease is refreshed every half TTL while
// held.
package lease
