package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/postpilotapp/postpilot-backend/internal/subscriptions"
	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
	"github.com/postpilotapp/postpilot-backend/pkg/enums"
)

type stubAccess struct {
	access subscriptions.Access
	err    error
}

func (s stubAccess) AccessFor(context.Context, uuid.UUID, time.Time) (subscriptions.Access, *models.Subscription, error) {
	return s.access, nil, s.err
}

func gatedRequest(userID uuid.UUID, role string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := req.Context()
	if userID != uuid.Nil {
		ctx = WithUserID(ctx, userID)
	}
	if role != "" {
		ctx = WithRole(ctx, role)
	}
	return req.WithContext(ctx)
}

func TestSubscriptionGateAllowsActiveAccess(t *testing.T) {
	evaluator := stubAccess{access: subscriptions.Access{
		Status:         enums.SubscriptionStatusActive,
		CanUsePlatform: true,
	}}
	handler := SubscriptionGate(evaluator, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, gatedRequest(uuid.New(), string(enums.UserRoleUser)))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestSubscriptionGateBlocksExpiredAccess(t *testing.T) {
	evaluator := stubAccess{access: subscriptions.Access{
		Status:          enums.SubscriptionStatusExpired,
		CanUsePlatform:  false,
		RequiresPayment: true,
	}}
	handler := SubscriptionGate(evaluator, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run for expired access")
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, gatedRequest(uuid.New(), string(enums.UserRoleUser)))
	if resp.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 got %d", resp.Code)
	}
}

func TestSubscriptionGateBypassesAdmins(t *testing.T) {
	evaluator := stubAccess{access: subscriptions.Access{
		Status:         enums.SubscriptionStatusExpired,
		CanUsePlatform: false,
	}}
	handler := SubscriptionGate(evaluator, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, gatedRequest(uuid.New(), string(enums.UserRoleAdmin)))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected admin bypass, got %d", resp.Code)
	}
}

func TestSubscriptionGateRequiresAuthenticatedUser(t *testing.T) {
	evaluator := stubAccess{access: subscriptions.Access{CanUsePlatform: true}}
	handler := SubscriptionGate(evaluator, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without a user")
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, gatedRequest(uuid.Nil, ""))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}
