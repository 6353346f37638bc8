// Package probe determines whether a candidate endpoint relays traffic
// to the reference service while hiding the caller's origin IP.
//
// A probe opens a TCP connection to the candidate but performs the TLS
// handshake (SNI and certificate verification) against the reference
// hostname, so the candidate must act as a transparent forward relay for
// the handshake to succeed. Over that channel a single, manually framed
// HTTP/1.1 request is sent with "Connection: close" and the raw response
// is read until the peer closes the stream or the deadline expires.
//
// The client is intentionally minimal: one connection per request, no
// keep-alive, no chunked transfer decoding and no redirects. Switching to
// net/http would change connection reuse and timeout behavior.
//
// The caller's own IP is fetched the same way, directly from the reference
// service, once per run through a Resolver.
package probe
