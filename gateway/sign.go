package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"strconv"
	"time"
)

// Credentials identify one locker to the gateway.
type Credentials struct {
	// Identifier names the locker
	Identifier string

	// Code is the shared secret used as the signing key
	Code string
}

// Sign computes the request signature: the base64 encoding of an HMAC-SHA256
// over the timestamp string, keyed with the locker's shared code. Only the
// timestamp is covered; the identifier travels alongside it in the clear.
func Sign(code, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(code))
	mac.Write([]byte(timestamp))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SignedForm builds the form body for an authenticated locker operation. The
// timestamp is the Unix time in whole seconds, so a signature is only valid
// near the moment it was produced.
func SignedForm(cred Credentials, now time.Time) url.Values {
	ts := strconv.FormatInt(now.Unix(), 10)
	return url.Values{
		"hash":       {Sign(cred.Code, ts)},
		"identifier": {cred.Identifier},
		"ts":         {ts},
	}
}
