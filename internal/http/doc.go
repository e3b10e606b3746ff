// Package http provides the HTTP transport shared by all downloads.
//
// The Client in this package handles:
//   - Default and file-supplied request headers
//   - Netscape cookie files loaded into a public-suffix aware cookie jar
//   - Proxy selection, TLS verification toggle and HTTP/2
//   - Redirects and timeouts
//
// # Errors
//
// Failures are classified at the source so callers can decide what to do:
//
//	body, err := client.Get(ctx, u, nil)
//	switch {
//	case http.IsNotFound(err):
//	    // 404, candidate for a fallback URL
//	case http.IsTransient(err):
//	    // connection, DNS, TLS or timeout failure, worth a retry
//	}
//
// # Header and Cookie Files
//
// Header files hold one "Name: value" per line. Cookie files use the
// Netscape tab-separated format written by browsers and curl. Lines starting
// with # are comments in both.
package http
