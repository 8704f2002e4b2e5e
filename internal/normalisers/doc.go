// Package normalisers holds the pure functions that make raw table
// items and provider responses usable. Each subpackage covers one
// shape of messy input:
//
//   - timestamp: event-time extraction from loosely typed attributes
//   - recordtext: pulling submittable text out of arbitrary items
//   - batchout: flattening batch output lines into parsed answers
//
// Normalisers are dependency-light and safe to call concurrently.
package normalisers
