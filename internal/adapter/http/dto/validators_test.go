package dto

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsAndEscapes(t *testing.T) {
	req := RefundRequest{
		PaymentID: "  " + uuid.NewString() + " ",
		Reason:    "  arrived <b>broken</b>  ",
		Evidence:  []string{" https://img.example/a.jpg?x=1&y=2 "},
	}
	SanitizeStruct(&req)

	assert.NotContains(t, req.PaymentID, " ")
	assert.Equal(t, "arrived &lt;b&gt;broken&lt;/b&gt;", req.Reason)
	assert.Equal(t, " https://img.example/a.jpg?x=1&y=2 ", req.Evidence[0], "slices are not touched")
}

func TestSanitizeStruct_HandlesPointers(t *testing.T) {
	amount := int64(5)
	req := AdminResolveRequest{Decision: " approve ", Amount: &amount}
	SanitizeStruct(&req)
	assert.Equal(t, "approve", req.Decision)
	assert.Equal(t, int64(5), *req.Amount)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestSafeID(t *testing.T) {
	for _, tc := range []string{"acct_1NkQ2x", "cs_test_a1b2", "a.b.c", "ABC-def_GHI.123"} {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
	for _, tc := range []string{"acct 001", "acct<001>", "acct;DROP", "", "acct\n001"} {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %q", tc)
	}
}

func TestBinding_PayoutRequest(t *testing.T) {
	tests := []struct {
		name  string
		req   PayoutRequest
		valid bool
	}{
		{"ok", PayoutRequest{Amount: 100, Currency: "usd"}, true},
		{"upper currency", PayoutRequest{Amount: 100, Currency: "USD"}, true},
		{"zero amount", PayoutRequest{Amount: 0, Currency: "usd"}, false},
		{"negative", PayoutRequest{Amount: -5, Currency: "usd"}, false},
		{"bad currency", PayoutRequest{Amount: 100, Currency: "us1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := binding.Validator.ValidateStruct(&tt.req)
			assert.Equal(t, tt.valid, err == nil, "err: %v", err)
		})
	}
}

func TestBinding_RefundRequest(t *testing.T) {
	base := func() RefundRequest {
		return RefundRequest{PaymentID: uuid.NewString(), Reason: "damaged"}
	}

	ok := base()
	assert.NoError(t, binding.Validator.ValidateStruct(&ok))

	withItems := base()
	withItems.Items = []RefundItemRequest{{ProductID: uuid.NewString(), Quantity: 1}}
	withItems.Evidence = []string{"https://img.example/1.jpg"}
	assert.NoError(t, binding.Validator.ValidateStruct(&withItems))

	badItem := base()
	badItem.Items = []RefundItemRequest{{ProductID: "nope", Quantity: 1}}
	assert.Error(t, binding.Validator.ValidateStruct(&badItem))

	badEvidence := base()
	badEvidence.Evidence = []string{"javascript:alert(1)"}
	assert.Error(t, binding.Validator.ValidateStruct(&badEvidence))

	noPayment := base()
	noPayment.PaymentID = ""
	assert.Error(t, binding.Validator.ValidateStruct(&noPayment))
}

func TestBinding_Enums(t *testing.T) {
	assert.NoError(t, binding.Validator.ValidateStruct(&SellerRespondRequest{Action: "accept"}))
	assert.Error(t, binding.Validator.ValidateStruct(&SellerRespondRequest{Action: "shrug"}))
	assert.NoError(t, binding.Validator.ValidateStruct(&AdminResolveRequest{Decision: "reject"}))
	assert.Error(t, binding.Validator.ValidateStruct(&AdminResolveRequest{Decision: "maybe"}))
	zero := int64(0)
	assert.Error(t, binding.Validator.ValidateStruct(&AdminResolveRequest{Decision: "approve", Amount: &zero}))
}
