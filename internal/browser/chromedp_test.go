package browser_test

import (
	"context"
	"testing"
	"time"

	"github.com/raysh454/consentscan/internal/browser"
	"github.com/raysh454/consentscan/internal/testutil"
)

// TestChromedpLauncher_LaunchAndClose needs a local Chrome; it is skipped
// where none can be started.
func TestChromedpLauncher_LaunchAndClose(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping chrome launch in short mode")
	}
	logger := &testutil.DummyLogger{}
	l := browser.NewChromedpLauncher(browser.DefaultConfig(), logger)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	sess, err := l.Launch(ctx)
	if err != nil {
		t.Skipf("Skipping chromedp test (environment does not support chrome): %v", err)
	}
	if err := sess.Navigate(ctx, "about:blank"); err != nil {
		_ = sess.Close()
		t.Fatalf("Navigate: %v", err)
	}
	if _, err := sess.Snapshot(ctx); err != nil {
		_ = sess.Close()
		t.Fatalf("Snapshot: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestChromedpLauncher_CancelledContext(t *testing.T) {
	t.Parallel()
	l := browser.NewChromedpLauncher(browser.DefaultConfig(), &testutil.DummyLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sess, err := l.Launch(ctx); err == nil {
		_ = sess.Close()
		t.Skip("chrome started before cancellation was observed")
	}
}
