// Package imgproxy serves objects from an object store under the /img/ path.
//
// A request for /img/<key> is answered with the stored object's bytes, its
// HTTP metadata, its etag and a fixed public cache policy. Every other outcome
// that is not a backend fault is the same plain 404.
package imgproxy
