package rpc

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		expect Kind
	}{
		{errors.New("429 Too Many Requests"), KindRateLimited},
		{errors.New("project rate limit exceeded"), KindRateLimited},
		{errors.New("quota exceeded"), KindRateLimited},
		{errors.New("daily request count exceeded"), KindRateLimited},
		{&Error{HTTPStatus: 429, Message: "slow down"}, KindRateLimited},
		{&Error{Code: -32005, Message: "limit exceeded"}, KindRateLimited},
		{errors.New("query returned more than 10000 results"), KindTooLarge},
		{errors.New("Log response size exceeded, response size exceeded the limit"), KindTooLarge},
		{errors.New("result set too large"), KindTooLarge},
		{&Error{Code: -32600, Message: "Invalid Request"}, KindFatal},
		{&Error{Code: -32601, Message: "Method not found"}, KindFatal},
		{errors.New("Parse error -32700"), KindFatal},
		{errors.New("connection reset by peer"), KindTransient},
		{errors.New("i/o timeout"), KindTransient},
		{&Error{HTTPStatus: 503, Message: "Service Unavailable"}, KindTransient},
		{context.DeadlineExceeded, KindTransient},
		{errors.New("execution reverted"), KindFatal},
		// Digits inside block numbers or ranges are not status codes.
		{errors.New("eth_getLogs 14290-15000 failed: connection refused"), KindTransient},
		{errors.New("block 5031504 not found"), KindFatal},
		{errors.New("http 429"), KindRateLimited},
		{errors.New("upstream returned 502"), KindTransient},
	}

	for _, tt := range tests {
		if got := Classify(tt.err); got.Kind != tt.expect {
			t.Errorf("Classify(%q) = %v, want %v", tt.err, got.Kind, tt.expect)
		}
	}
}

func TestClassify_SuggestedRange(t *testing.T) {
	err := errors.New("query exceeds limits, retry with the range [0x3b9aca00, 0x3b9acb00]")

	c := Classify(err)
	if c.Kind != KindSuggestedRange {
		t.Fatalf("kind = %v, want suggested range", c.Kind)
	}
	if c.Suggested.From != 0x3b9aca00 || c.Suggested.To != 0x3b9acb00 {
		t.Errorf("suggested = %s, want 1000000000-1000000256", c.Suggested)
	}
}

func TestClassify_SuggestedRangeBeatsTooLargeWording(t *testing.T) {
	// Both signals worded together: the explicit correction wins.
	err := errors.New("query returned more than 10000 results. Try with this block range [0x1, 0xff]")

	c := Classify(err)
	if c.Kind != KindSuggestedRange {
		t.Fatalf("kind = %v, want suggested range to take priority", c.Kind)
	}
	if c.Suggested.From != 1 || c.Suggested.To != 255 {
		t.Errorf("suggested = %s, want 1-255", c.Suggested)
	}
}

func TestClassify_InvertedSuggestionFallsThrough(t *testing.T) {
	err := errors.New("retry with the range [0xff, 0x01] too many results")
	if c := Classify(err); c.Kind != KindTooLarge {
		t.Errorf("kind = %v, want too_large fallback for malformed suggestion", c.Kind)
	}
}

func TestClassify_StatedWait(t *testing.T) {
	c := Classify(errors.New("rate limit exceeded, retry in 12s"))
	if c.Kind != KindRateLimited {
		t.Fatalf("kind = %v, want rate limited", c.Kind)
	}
	if c.Wait != 12*time.Second {
		t.Errorf("wait = %v, want 12s", c.Wait)
	}

	c = Classify(&Error{HTTPStatus: 429, RetryAfter: 3 * time.Second, Message: "slow down"})
	if c.Wait != 3*time.Second {
		t.Errorf("wait = %v, want 3s from Retry-After", c.Wait)
	}
}

func TestRetryPolicy_BackoffMonotonicAndCapped(t *testing.T) {
	p := DefaultRetryPolicy

	prev := time.Duration(0)
	for attempt := 0; attempt <= p.MaxAttempts; attempt++ {
		d := p.Backoff(attempt)
		if d < prev {
			t.Fatalf("backoff decreased at attempt %d: %v < %v", attempt, d, prev)
		}
		if d > p.MaxDelay {
			t.Fatalf("backoff %v exceeds cap %v at attempt %d", d, p.MaxDelay, attempt)
		}
		prev = d
	}

	if p.Backoff(0) != p.BaseDelay {
		t.Errorf("first backoff = %v, want base %v", p.Backoff(0), p.BaseDelay)
	}
}

func TestRetryPolicy_WaitHonorsStatedDelay(t *testing.T) {
	p := DefaultRetryPolicy

	if got := p.Wait(0, 5*time.Second); got != 5*time.Second {
		t.Errorf("Wait = %v, want provider-stated 5s", got)
	}
	if got := p.Wait(10, time.Millisecond); got != p.Backoff(10) {
		t.Errorf("Wait = %v, want computed backoff %v", got, p.Backoff(10))
	}
}
