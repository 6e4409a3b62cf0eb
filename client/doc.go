// Package client provides a futures-based asynchronous HTTP client
// built on [net/http].
//
// # Building a Service
//
// Use [Build] to create a [Service] with functional options:
//
//	svc, err := client.Build(
//		client.WithTimeout(10 * time.Second),
//		client.WithUserAgent("myapp/1.0"),
//		client.WithConnectionLimits(8, 2),
//	)
//
// # Submitting Requests
//
// [Service.Submit] starts a transfer in the background and returns a
// [Future] for its outcome. The future resolves exactly once: poll it
// with [Future.Peek], block on it with [Future.Wait], or give up with
// [Future.Cancel]:
//
//	fut, err := svc.Submit(ctx, http.MethodGet, "https://api.example.com/v1/resource")
//	// ... do other work ...
//	res, err := fut.Wait()
//	fmt.Println(res.Status, string(res.Body))
//
// Request bodies come from options: [WithBody] for a raw payload,
// [WithFormValue] and [WithFormFile] for multipart forms, [WithQuery]
// and [WithHeader] for the envelope.
//
// # Decoding Responses
//
// [SubmitDecoded] attaches a [Filter] that transforms the outcome when
// the future resolves. [DecodeJSON] and [ExpectStatus] cover the common
// cases:
//
//	fut, err := client.SubmitDecoded(svc, ctx, http.MethodGet, url,
//		client.DecodeJSON[Account]())
//	acct, err := fut.Wait()
//
// # Synchronous Requests
//
// [Request] and [RequestDecoded] perform one blocking transfer without
// any engine, sharing the descriptor and result shapes with the async
// path:
//
//	res, err := client.Request(ctx, http.MethodGet, url)
//
// For the polling machinery underneath, see the
// [github.com/adamwoolhether/fetchq/client/transfer] package.
package client
