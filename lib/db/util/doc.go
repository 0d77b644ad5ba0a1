// Package util provides helpers shared by table implementations: seeded key hashing
// for shard selection and lightweight statistics (size histogram, distribution
// quality) used to report table info without expensive full scans.
package util
