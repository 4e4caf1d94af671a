// Package cache implements the two-tier store that backs conversion results:
// a bounded in-memory map in front of a flat directory of hash-named files.
// Writes go through the disk tier first (temp file + rename, so readers never
// observe a partial payload) and are then mirrored into memory; reads check
// memory, fall back to disk and promote hits. Staleness is enforced at read
// time, the background janitor only reclaims space early. The package also
// owns key derivation: full and truncated synthesis keys plus the sampled
// audio fingerprint used for transcription requests.
package cache
