package model

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// NotProxyReason is the failure reason recorded for candidates that answered
// correctly but did not hide the caller's IP.
const NotProxyReason = "not a working proxy"

// ProxyResult describes a validated proxy as seen by the reference service.
type ProxyResult struct {
	// Proxy is the candidate address that was probed.
	Proxy string `json:"proxy"`

	// Port is the candidate port that was probed.
	Port uint16 `json:"port"`

	// IP is the origin IP the reference service observed through the proxy.
	IP string `json:"ip"`

	// Delay is the round-trip time of the proxied exchange.
	Delay time.Duration `json:"-"`

	// DelayMillis mirrors Delay in milliseconds for serialization.
	DelayMillis int64 `json:"delay"`

	// Country is the country reported for the observed IP.
	Country string `json:"country"`

	// ASOrganization is the autonomous system organization of the observed IP.
	ASOrganization string `json:"asOrganization"`
}

// Endpoint returns the "proxy:port" string used in country samples.
func (r ProxyResult) Endpoint() string {
	return r.Proxy + ":" + strconv.Itoa(int(r.Port))
}

// Line serializes the result as "proxy,port,country,asOrganization".
func (r ProxyResult) Line() string {
	return strings.Join([]string{
		r.Proxy,
		strconv.Itoa(int(r.Port)),
		r.Country,
		r.ASOrganization,
	}, ",")
}

// ProbeOutcome is the result of probing one candidate.
// Exactly one of Result and Err is set.
type ProbeOutcome struct {
	// Candidate is the probed candidate as read from the source.
	Candidate Candidate

	// Result is set when the candidate was validated.
	Result *ProxyResult

	// Err is set when the probe failed or the candidate was not validated.
	Err error
}

// ErrNotProxy is the negative result: the relay answered, but the reference
// service saw no IP or the caller's own IP. Failure uses it when no error
// is supplied.
var ErrNotProxy = errors.New(NotProxyReason)

// Success builds a validated outcome.
func Success(c Candidate, r ProxyResult) ProbeOutcome {
	return ProbeOutcome{Candidate: c, Result: &r}
}

// Failure builds a failed outcome. A nil err records a negative result.
func Failure(c Candidate, err error) ProbeOutcome {
	if err == nil {
		err = ErrNotProxy
	}
	return ProbeOutcome{Candidate: c, Err: err}
}

// Succeeded reports whether the candidate was validated.
func (o ProbeOutcome) Succeeded() bool {
	return o.Result != nil && o.Err == nil
}

// Reason returns the failure reason, or an empty string on success.
func (o ProbeOutcome) Reason() string {
	if o.Succeeded() {
		return ""
	}
	if o.Err == nil {
		return NotProxyReason
	}
	return o.Err.Error()
}
