package tests

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/memoraid/memoraid/apps/api/echo"
	"github.com/memoraid/memoraid/core/billing"
	"github.com/memoraid/memoraid/core/user"
	testutil "github.com/memoraid/memoraid/tests"
)

func Test_billingApi_pricing(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.usrRepo, "ada@example.com", pwd, user.TierPlus)

	tests := []httpTest{
		{
			name:     "no token",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "success",
			token:    getToken(t, usr),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, billing.Pricing{CurrentTier: user.TierPlus, CurrentRank: 1, Tiers: billing.Tiers}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/billing/pricing", tt.token)
			e.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_billingApi_checkout(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.usrRepo, "ada@example.com", pwd, user.TierFree)
	token := getToken(t, usr)

	tests := []httpTest{
		{
			name:     "plus",
			path:     "/v1/billing/checkout/plus",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, CheckoutResponse{URL: "https://checkout.test/plus"}),
		},
		{
			name:     "upper case",
			path:     "/v1/billing/checkout/PRO",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, CheckoutResponse{URL: "https://checkout.test/pro"}),
		},
		{
			name:     "unknown tier",
			path:     "/v1/billing/checkout/gold",
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"tier": "invalid plan"}),
		},
		{
			name:     "free is not for sale",
			path:     "/v1/billing/checkout/free",
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"tier": "invalid plan"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, tt.path, token)
			e.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	require.Len(t, e.gateway.requests, 2)
	got := e.gateway.requests[0]
	assert.Equal(t, usr.ID, got.UserID)
	assert.Equal(t, usr.Email, got.CustomerEmail)
	assert.Equal(t, "price_plus", got.PriceID)
}

func Test_billingApi_webhook(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.usrRepo, "ada@example.com", pwd, user.TierFree)
	e.gateway.event = billing.Event{
		ID:             "evt_1",
		Type:           billing.EventCheckoutCompleted,
		Metadata:       map[string]string{"user_id": strconv.FormatInt(usr.ID, 10), "new_plan": user.TierPro},
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
	}

	send := func(signature string) int {
		req, rec := newRequest(http.MethodPost, "/v1/billing/webhook", []byte(`{"id": "evt_1"}`))
		if signature != "" {
			req.Header.Set("Stripe-Signature", signature)
		}
		e.app.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusBadRequest, send(""))
	assert.Equal(t, http.StatusBadRequest, send("forged"))
	got, err := e.usrRepo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.Equal(t, user.TierFree, got.Tier)

	assert.Equal(t, http.StatusOK, send("valid"))
	got, err = e.usrRepo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.Equal(t, user.TierPro, got.Tier)
	assert.Equal(t, "cus_1", got.StripeCustomerID.String)
	assert.Equal(t, "sub_1", got.SubscriptionID.String)

	// unknown users are acknowledged so the provider stops retrying
	e.gateway.event.Metadata["user_id"] = "999"
	assert.Equal(t, http.StatusOK, send("valid"))
}
