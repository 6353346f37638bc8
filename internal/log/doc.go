// Package log provides slog-based logging that keeps the operator's own
// public IP out of log output.
//
// A scan compares the origin IP seen through each candidate with the
// operator's real address, so that address appears in probe results and
// error messages. The SecureHandler masks:
//   - attributes whose key names the operator address or a credential
//     (own_ip, reference_ip, proxy-authorization, ...)
//   - any string attribute or message that contains a value registered
//     with a Redactor, once the reference IP has been resolved
//
// # Usage
//
//	redactor := log.NewRedactor()
//	logger := log.NewSecureLogger(os.Stderr, verbose, redactor)
//	slog.SetDefault(logger)
//
//	// later, when the own IP is known
//	redactor.Add(ownIP)
package log
