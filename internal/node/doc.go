// Package node is an in-memory key/value node that answers the kvlink wire
// protocol. It backs the client's end-to-end tests and cmd/kvnode.
//
// Noops answer success, get and put act on the Store, and delete is
// answered with StatusUnsupported. Malformed bodies get StatusBadRequest
// with the decode error as the diagnostic payload; the connection stays up.
package node
