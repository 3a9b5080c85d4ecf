package rpc

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/MoonletLabs/tempo-analytics/internal/core/domain"
)

// Kind is the classified disposition of an upstream failure.
type Kind int

const (
	// KindFatal is never retried.
	KindFatal Kind = iota
	// KindRateLimited means the provider asked us to slow down.
	KindRateLimited
	// KindTransient is an infrastructure hiccup worth retrying.
	KindTransient
	// KindTooLarge means the result set exceeded the provider's cap; the
	// requested range must be narrowed, not retried verbatim.
	KindTooLarge
	// KindSuggestedRange means the provider returned a corrected block range
	// to retry in place of the requested one.
	KindSuggestedRange
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	case KindTooLarge:
		return "too_large"
	case KindSuggestedRange:
		return "suggested_range"
	default:
		return "fatal"
	}
}

// Classification is the outcome of inspecting an upstream failure.
type Classification struct {
	Kind Kind
	// Wait is a provider-stated delay for rate-limit failures, 0 if none.
	Wait time.Duration
	// Suggested is the corrected range for KindSuggestedRange.
	Suggested domain.BlockRange
}

// Providers embed a corrected range as a bracketed hex pair, e.g.
// "... retry with the range [0x3b9aca00, 0x3b9acb00]".
var suggestedRangeRe = regexp.MustCompile(`\[0x([0-9a-fA-F]+),\s*0x([0-9a-fA-F]+)\]`)

// Rate-limit messages sometimes state a wait, e.g. "retry in 12s" or
// "backoff for 1500ms".
var statedWaitRe = regexp.MustCompile(`(?:retry in|backoff for|try again in)\s+(\d+)\s*(ms|s)`)

// HTTP status codes in messages are matched as whole tokens so that block
// numbers or ranges containing the same digits never misclassify.
var (
	status429Re = regexp.MustCompile(`\b429\b`)
	status5xxRe = regexp.MustCompile(`\b50[0234]\b`)
)

// Classify maps an upstream failure to a retry disposition. A suggested-range
// signal is checked before the generic too-large pattern because providers
// word both similarly.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Kind: KindTransient}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		// Per-call timeouts are retried, not surfaced.
		return Classification{Kind: KindTransient}
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	var rpcErr *Error
	hasRPCErr := errors.As(err, &rpcErr)

	// Corrected-range signal takes priority over everything else.
	if strings.Contains(lower, "block range") || strings.Contains(lower, "retry with") ||
		strings.Contains(lower, "try with") {
		if m := suggestedRangeRe.FindStringSubmatch(msg); m != nil {
			from, errFrom := strconv.ParseUint(m[1], 16, 64)
			to, errTo := strconv.ParseUint(m[2], 16, 64)
			if errFrom == nil && errTo == nil && from <= to {
				return Classification{
					Kind:      KindSuggestedRange,
					Suggested: domain.BlockRange{From: from, To: to},
				}
			}
		}
	}

	// Result-size cap: narrow the range instead of retrying verbatim.
	if strings.Contains(lower, "too many results") ||
		strings.Contains(lower, "more than") && strings.Contains(lower, "results") ||
		strings.Contains(lower, "exceeds max results") ||
		strings.Contains(lower, "response size exceeded") ||
		strings.Contains(lower, "query returned more than") ||
		strings.Contains(lower, "result set too large") {
		return Classification{Kind: KindTooLarge}
	}

	// Rate limiting: explicit status, provider codes, or message signatures.
	if hasRPCErr && (rpcErr.HTTPStatus == 429 || rpcErr.Code == -32005 || rpcErr.Code == -32029) {
		return Classification{Kind: KindRateLimited, Wait: rpcErr.RetryAfter}
	}
	if status429Re.MatchString(msg) || strings.Contains(lower, "too many requests") ||
		strings.Contains(lower, "rate limit") || strings.Contains(lower, "quota") ||
		strings.Contains(lower, "count exceeded") {
		return Classification{Kind: KindRateLimited, Wait: parseStatedWait(lower)}
	}

	// Protocol-level rejections are deterministic and never retried.
	// -32700: parse error, -32600: invalid request, -32601: method not found,
	// -32602: invalid params
	if hasRPCErr {
		switch rpcErr.Code {
		case -32700, -32600, -32601, -32602:
			return Classification{Kind: KindFatal}
		}
		if rpcErr.HTTPStatus >= 500 {
			return Classification{Kind: KindTransient}
		}
	}
	if strings.Contains(msg, "-32700") || strings.Contains(msg, "-32600") ||
		strings.Contains(msg, "-32601") || strings.Contains(msg, "-32602") {
		return Classification{Kind: KindFatal}
	}

	// Infrastructure hiccups.
	if status5xxRe.MatchString(msg) ||
		strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "broken pipe") ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "deadline exceeded") ||
		strings.Contains(lower, "temporarily unavailable") ||
		strings.Contains(lower, "eof") {
		return Classification{Kind: KindTransient}
	}

	// Unrecognized rejections are treated as deterministic.
	return Classification{Kind: KindFatal}
}

func parseStatedWait(lower string) time.Duration {
	m := statedWaitRe.FindStringSubmatch(lower)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	if m[2] == "ms" {
		return time.Duration(n) * time.Millisecond
	}
	return time.Duration(n) * time.Second
}

// RetryPolicy defines the exponential backoff schedule for retryable
// failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxExponent int
}

// DefaultRetryPolicy provides sensible defaults for a rate-limited provider.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 20,
	BaseDelay:   200 * time.Millisecond,
	MaxDelay:    10 * time.Second,
	MaxExponent: 10,
}

// Backoff computes the delay before retry number attempt (0-based). The
// schedule is exponential with a hard cap.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > p.MaxExponent {
		attempt = p.MaxExponent
	}
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}

// Wait returns the actual delay for an attempt, honoring a provider-stated
// wait when it is longer than the computed backoff.
func (p RetryPolicy) Wait(attempt int, stated time.Duration) time.Duration {
	backoff := p.Backoff(attempt)
	if stated > backoff {
		return stated
	}
	return backoff
}
