package ratelimit

import (
	"testing"
	"time"
)

func TestAcquireRequest_TokenBucketRefills(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 1})
	now := time.Now()

	first := l.AcquireRequest("p1", now)
	if !first.Allowed {
		t.Fatal("first should be allowed")
	}

	second := l.AcquireRequest("p1", now)
	if second.Allowed {
		t.Fatal("second should be denied")
	}
	if second.RetryAfter < 1 {
		t.Fatalf("retryAfter=%d", second.RetryAfter)
	}

	third := l.AcquireRequest("p1", now.Add(time.Second))
	if !third.Allowed {
		t.Fatal("third should be allowed after refill")
	}
}

func TestAcquireRequest_EnforcesConcurrency(t *testing.T) {
	l := New(Config{MaxConcurrentRequests: 1})
	now := time.Now()

	first := l.AcquireRequest("p1", now)
	if !first.Allowed || first.Permit == nil {
		t.Fatalf("first allowed=%v permit=%v", first.Allowed, first.Permit)
	}

	second := l.AcquireRequest("p1", now)
	if second.Allowed {
		t.Fatal("second should be denied")
	}

	first.Permit.Release()
	third := l.AcquireRequest("p1", now)
	if !third.Allowed {
		t.Fatal("third should be allowed after release")
	}
}

func TestAcquireRequest_PrincipalsAreIndependent(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 1})
	now := time.Now()

	if dec := l.AcquireRequest("p1", now); !dec.Allowed {
		t.Fatal("p1 should be allowed")
	}
	if dec := l.AcquireRequest("p2", now); !dec.Allowed {
		t.Fatal("p2 should be allowed")
	}
}

func TestPrincipalKeyFromAPIKey_StableAndOpaque(t *testing.T) {
	a := PrincipalKeyFromAPIKey("secret-key")
	b := PrincipalKeyFromAPIKey("secret-key")
	if a != b {
		t.Fatalf("keys differ: %q vs %q", a, b)
	}
	if a == "secret-key" || len(a) != 34 {
		t.Fatalf("key = %q", a)
	}
}
