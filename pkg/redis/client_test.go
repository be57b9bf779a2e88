package redis

import "testing"

func TestKeyBuilding(t *testing.T) {
	c := &Client{}
	cases := map[string]string{
		c.RateLimitKey("login:ip:1.2.3.4"):      "pp:rate_limit:login:ip:1.2.3.4",
		c.IdempotencyKey("razorpay", "evt_123"): "pp:idempotency:razorpay:evt_123",
		c.AccessSessionKey("abc"):               "pp:session:access:abc",
		c.FlagKey("dispatch-reload"):            "pp:flag:dispatch-reload",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("key = %q, want %q", got, want)
		}
	}
}

func TestKeyBuildingSkipsEmptyParts(t *testing.T) {
	c := &Client{}
	if got := c.IdempotencyKey("", "evt_123"); got != "pp:idempotency:evt_123" {
		t.Fatalf("key = %q", got)
	}
}
