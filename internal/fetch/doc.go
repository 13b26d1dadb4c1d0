// Package fetch bulk-downloads recording files listed in a nested JSON
// manifest. Entries are discovered by recursive traversal so the manifest
// layout never needs to be known up front, and downloads resume over HTTP
// Range requests with optional SHA-1 and size verification.
package fetch
