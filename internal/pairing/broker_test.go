// ABOUTME: Tests for the pairing broker
// ABOUTME: Covers issue/confirm/poll/promote lifecycle, invalidation, and expiry

package pairing

import (
	"errors"
	"regexp"
	"testing"
	"time"
)

type fakeIssuer struct {
	token string
	err   error
	calls int
}

func (f *fakeIssuer) Issue() (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

func newTestBroker(t *testing.T) (*Broker, *fakeIssuer) {
	t.Helper()
	issuer := &fakeIssuer{token: "tok-123"}
	return New("@boss:example.org", 5*time.Minute, issuer), issuer
}

func TestIssue_Unauthorized(t *testing.T) {
	b, _ := newTestBroker(t)

	_, _, err := b.Issue("@rando:example.org")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestIssue_CodeShape(t *testing.T) {
	b, _ := newTestBroker(t)

	code, correlationID, err := b.Issue("@boss:example.org")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if !regexp.MustCompile(`^\d{6}$`).MatchString(code) {
		t.Errorf("code = %q, want 6 decimal digits", code)
	}
	if correlationID == "" {
		t.Error("correlation ID is empty")
	}
}

func TestPairingLifecycle(t *testing.T) {
	b, issuer := newTestBroker(t)

	code, correlationID, err := b.Issue("@boss:example.org")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if got := b.Poll(correlationID); got != StatusPending {
		t.Errorf("Poll before confirm = %v, want pending", got)
	}

	if !b.Confirm(code) {
		t.Fatal("Confirm should succeed")
	}
	if got := b.Poll(correlationID); got != StatusVerified {
		t.Errorf("Poll after confirm = %v, want verified", got)
	}

	token, err := b.Promote(correlationID)
	if err != nil {
		t.Fatalf("Promote failed: %v", err)
	}
	if token != "tok-123" {
		t.Errorf("token = %q", token)
	}
	if issuer.calls != 1 {
		t.Errorf("issuer calls = %d, want 1", issuer.calls)
	}

	// Promote is single use
	if _, err := b.Promote(correlationID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Promote err = %v, want ErrNotFound", err)
	}
	// Confirming an already-promoted code fails
	if b.Confirm(code) {
		t.Error("Confirm after promote should fail")
	}
	if got := b.Poll(correlationID); got != StatusNotFound {
		t.Errorf("Poll after promote = %v, want not_found", got)
	}
}

func TestConfirm_TwiceVerifiesOnce(t *testing.T) {
	b, _ := newTestBroker(t)

	code, _, err := b.Issue("@boss:example.org")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if !b.Confirm(code) {
		t.Fatal("first Confirm should succeed")
	}
	if b.Confirm(code) {
		t.Error("second Confirm should fail")
	}
}

func TestConfirm_UnknownCode(t *testing.T) {
	b, _ := newTestBroker(t)

	if b.Confirm("000000") {
		t.Error("Confirm of unknown code should fail")
	}
}

func TestIssue_InvalidatesPriorCode(t *testing.T) {
	b, _ := newTestBroker(t)

	first, firstCorrelation, err := b.Issue("@boss:example.org")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	_, _, err = b.Issue("@boss:example.org")
	if err != nil {
		t.Fatalf("second Issue failed: %v", err)
	}

	if b.Confirm(first) {
		t.Error("confirming an invalidated code should fail")
	}
	if got := b.Poll(firstCorrelation); got != StatusNotFound {
		t.Errorf("Poll of invalidated correlation = %v, want not_found", got)
	}
}

func TestExpiry(t *testing.T) {
	b, _ := newTestBroker(t)

	current := time.Now()
	b.now = func() time.Time { return current }

	code, correlationID, err := b.Issue("@boss:example.org")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	current = current.Add(6 * time.Minute)

	if b.Confirm(code) {
		t.Error("Confirm of expired code should fail")
	}
	if got := b.Poll(correlationID); got != StatusNotFound {
		t.Errorf("Poll of expired session = %v, want not_found", got)
	}
	if _, err := b.Promote(correlationID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Promote of expired session err = %v, want ErrNotFound", err)
	}
}

func TestExpiry_VerifiedSessionSurvives(t *testing.T) {
	b, _ := newTestBroker(t)

	current := time.Now()
	b.now = func() time.Time { return current }

	code, correlationID, err := b.Issue("@boss:example.org")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if !b.Confirm(code) {
		t.Fatal("Confirm failed")
	}

	// The verified flag is checked before purge; verification is terminal
	current = current.Add(time.Hour)

	if got := b.Poll(correlationID); got != StatusVerified {
		t.Errorf("Poll = %v, want verified", got)
	}
	if _, err := b.Promote(correlationID); err != nil {
		t.Errorf("Promote failed: %v", err)
	}
}

func TestPromote_NotVerified(t *testing.T) {
	b, _ := newTestBroker(t)

	_, correlationID, err := b.Issue("@boss:example.org")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := b.Promote(correlationID); !errors.Is(err, ErrNotVerified) {
		t.Errorf("err = %v, want ErrNotVerified", err)
	}
}
