package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowWithinBurst(t *testing.T) {
	kl := New(1, 3)

	for i := 0; i < 3; i++ {
		if !kl.Allow("acct@example.com") {
			t.Fatalf("request %d should be allowed within burst", i)
		}
	}
	if kl.Allow("acct@example.com") {
		t.Error("request beyond burst should be denied")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	kl := New(1, 1)

	if !kl.Allow("a") {
		t.Fatal("first request for key a should be allowed")
	}
	if kl.Allow("a") {
		t.Error("second request for key a should be denied")
	}
	if !kl.Allow("b") {
		t.Error("key b should have its own bucket")
	}
}

func TestWaitHonorsCancellation(t *testing.T) {
	kl := New(0.001, 1)
	kl.Allow("slow") // drain the bucket

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := kl.Wait(ctx, "slow"); err == nil {
		t.Error("Wait should fail when context expires before a token is available")
	}
}
