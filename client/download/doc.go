// Package download streams response bodies to disk through a client
// service. Fetch handles a single URL, writing the body to a temporary
// file that is renamed into place only after the transfer, an optional
// checksum, and the reported content length have all checked out.
// Batch runs many fetches through one service with bounded concurrency.
package download
