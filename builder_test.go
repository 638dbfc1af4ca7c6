package mentorbridge

import (
	"runtime"
	"testing"
	"time"
)

func TestBuildFailureLeavesNoAuditGoroutine(t *testing.T) {
	_, rdb := newTestRedis(t)

	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.JWT.SigningMethod = "ed25519"
	cfg.JWT.PrivateKey = []byte("not a pem key")
	cfg.JWT.PublicKey = []byte("not a pem key")

	runtime.GC()
	before := runtime.NumGoroutine()

	const attempts = 32
	for i := 0; i < attempts; i++ {
		engine, err := New().
			WithConfig(cfg).
			WithRedis(rdb).
			WithCredentialStore(newMemStore()).
			WithAuditSink(&countingSink{}).
			Build()
		if err == nil {
			engine.Close()
			t.Fatal("expected Build to reject the unparsable signing key")
		}
	}

	// Allow unrelated goroutines to settle.
	deadline := time.Now().Add(time.Second)
	after := runtime.NumGoroutine()
	for after-before >= attempts/2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
		after = runtime.NumGoroutine()
	}
	if after-before >= attempts/2 {
		t.Fatalf("expected no leaked dispatchers, goroutines grew from %d to %d", before, after)
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	_, rdb := newTestRedis(t)

	b := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithCredentialStore(newMemStore())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}
