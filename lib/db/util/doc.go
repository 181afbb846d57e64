// Package util provides helpers shared by the db.PathDB engines.
//
// The package contains:
//   - statistics: summary statistics over sampled values and a SizeHistogram that tracks
//     the distribution of encoded entry sizes with exponential buckets
//
// The engines use these types to report GetInfo metadata without scanning the whole
// database.
package util
