package enums

import "testing"

func TestPaymentStatusTransitions(t *testing.T) {
	cases := []struct {
		from PaymentStatus
		to   PaymentStatus
		want bool
	}{
		{PaymentStatusPending, PaymentStatusPaid, true},
		{PaymentStatusPending, PaymentStatusFailed, true},
		{PaymentStatusPending, PaymentStatusCancelled, true},
		{PaymentStatusPaid, PaymentStatusCancelled, false},
		{PaymentStatusFailed, PaymentStatusPaid, false},
		{PaymentStatusCancelled, PaymentStatusPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
	if PaymentStatusPending.IsTerminal() {
		t.Fatal("pending should not be terminal")
	}
	if !PaymentStatusPaid.IsTerminal() {
		t.Fatal("paid should be terminal")
	}
}

func TestFulfillmentStatusTransitions(t *testing.T) {
	if !FulfillmentStatusUnfulfilled.CanTransitionTo(FulfillmentStatusFulfilled) {
		t.Fatal("unfulfilled should move to fulfilled")
	}
	if !FulfillmentStatusUnfulfilled.CanTransitionTo(FulfillmentStatusCancelled) {
		t.Fatal("unfulfilled should move to cancelled")
	}
	if FulfillmentStatusFulfilled.CanTransitionTo(FulfillmentStatusCancelled) {
		t.Fatal("fulfilled is terminal")
	}
	if FulfillmentStatusCancelled.CanTransitionTo(FulfillmentStatusFulfilled) {
		t.Fatal("cancelled is terminal")
	}
}

func TestParseCartIssueReason(t *testing.T) {
	reason, err := ParseCartIssueReason("insufficient_stock")
	if err != nil || reason != CartIssueInsufficientStock {
		t.Fatalf("unexpected parse result %q %v", reason, err)
	}
	if _, err := ParseCartIssueReason("out_of_stock"); err == nil {
		t.Fatal("expected unknown reason to fail")
	}
}
