// Package s3 implements the S3-compatible remote destination (spec §4.D):
// a single-part PUT signed with AWS Signature Version 4, hand-rolled on
// net/http and crypto/hmac so the canonical request and string-to-sign are
// directly reproducible and testable, rather than hidden behind an SDK.
package s3

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	dateFormat     = "20060102"
	amzDateFormat  = "20060102T150405Z"
	terminationTag = "aws4_request"
)

// SigningRequest carries what the signer needs to produce an Authorization
// header value for one HTTP request.
type SigningRequest struct {
	Method      string
	Host        string
	Path        string
	Query       map[string]string
	Headers     http.Header
	PayloadHash string // hex sha256 of the body; precomputed so streaming bodies never need buffering twice
	AccessKey   string
	SecretKey   string
	Region      string
	Service     string // "s3"
	Time        time.Time
}

// Sign computes the canonical request, string-to-sign, and signing key per
// the AWS Signature V4 algorithm, and returns the Authorization header
// value plus the x-amz-date header value that must accompany it.
func Sign(r SigningRequest) (authorization, amzDate string) {
	amzDate = r.Time.UTC().Format(amzDateFormat)
	dateStamp := r.Time.UTC().Format(dateFormat)

	signedHeaders, canonicalHeaders := canonicalizeHeaders(r.Headers)
	canonicalRequest := strings.Join([]string{
		r.Method,
		canonicalURI(r.Path),
		canonicalQuery(r.Query),
		canonicalHeaders,
		signedHeaders,
		r.PayloadHash,
	}, "\n")

	credentialScope := fmt.Sprintf("%s/%s/%s/%s", dateStamp, r.Region, r.Service, terminationTag)
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		credentialScope,
		hexSHA256(canonicalRequest),
	}, "\n")

	signingKey := deriveSigningKey(r.SecretKey, dateStamp, r.Region, r.Service)
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	authorization = fmt.Sprintf(
		"AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		r.AccessKey, credentialScope, signedHeaders, signature,
	)
	return authorization, amzDate
}

func canonicalURI(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}

func canonicalQuery(query map[string]string) string {
	if len(query) == 0 {
		return ""
	}
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, uriEncode(k)+"="+uriEncode(query[k]))
	}
	return strings.Join(parts, "&")
}

// canonicalizeHeaders lower-cases header names, trims and collapses
// whitespace in values, sorts by name, and returns both the
// semicolon-joined signed-header list and the newline-joined
// "name:value\n" canonical header block (itself terminated by a trailing
// newline, per the spec).
func canonicalizeHeaders(headers http.Header) (signedHeaders, canonicalHeaders string) {
	names := make([]string, 0, len(headers))
	lower := make(map[string]string, len(headers))
	for name := range headers {
		l := strings.ToLower(name)
		names = append(names, l)
		lower[l] = name
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, n := range names {
		values := headers.Values(lower[n])
		trimmed := make([]string, len(values))
		for i, v := range values {
			trimmed[i] = strings.TrimSpace(strings.Join(strings.Fields(v), " "))
		}
		sb.WriteString(n)
		sb.WriteByte(':')
		sb.WriteString(strings.Join(trimmed, ","))
		sb.WriteByte('\n')
	}
	return strings.Join(names, ";"), sb.String()
}

// uriEncode implements the RFC 3986 percent-encoding AWS requires:
// unreserved characters pass through unescaped, everything else is
// percent-encoded with uppercase hex digits, '/' included. It is applied
// to query keys and values only; canonicalURI does not use it.
func uriEncode(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, "%%%02X", c)
		}
	}
	return sb.String()
}

func hexSHA256(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

// deriveSigningKey builds the nested HMAC signing-key chain:
// HMAC(HMAC(HMAC(HMAC("AWS4"+secret, date), region), service), "aws4_request").
func deriveSigningKey(secretKey, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), dateStamp)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	return hmacSHA256(kService, terminationTag)
}
