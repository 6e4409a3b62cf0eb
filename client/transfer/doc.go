// Package transfer runs HTTP transfers concurrently behind a cooperative
// polling surface.
//
// Submit registers a transfer and starts a worker for it; nothing the
// caller can observe changes until Poll drains the completion queue.
// Finished transfers park their accumulated response in a store keyed by
// handle, where it waits to be claimed exactly once with TakeCompleted
// (or Take, which also serves cancellation). WaitForActivity lets a
// caller sleep between polls instead of spinning.
//
// The package is the machinery underneath the client package's futures;
// most code wants that API instead.
package transfer
