package subscription_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/subscription"
)

func TestCache_Entitlement(t *testing.T) {
	t.Parallel()

	active := subscription.Entitlement{SubscriptionActive: true, Tier: "pro", PlanRef: "pro_monthly"}

	t.Run("fills when nothing changed", func(t *testing.T) {
		t.Parallel()
		c := subscription.NewCache(time.Minute)

		gen := c.EntitlementGeneration("u1")
		assert.True(t, c.SetEntitlement("u1", active, gen))

		got, ok := c.Entitlement("u1")
		assert.True(t, ok)
		assert.Equal(t, active, got)
	})

	t.Run("drops a projection read before an invalidation", func(t *testing.T) {
		t.Parallel()
		c := subscription.NewCache(time.Minute)

		gen := c.EntitlementGeneration("u1")
		c.Invalidate("u1")
		assert.False(t, c.SetEntitlement("u1", subscription.FreeEntitlement(), gen))

		_, ok := c.Entitlement("u1")
		assert.False(t, ok)

		assert.True(t, c.SetEntitlement("u1", active, c.EntitlementGeneration("u1")))
	})

	t.Run("generations are per user", func(t *testing.T) {
		t.Parallel()
		c := subscription.NewCache(time.Minute)

		gen := c.EntitlementGeneration("u1")
		c.Invalidate("u2")
		assert.True(t, c.SetEntitlement("u1", active, gen))
	})

	t.Run("invalidate keeps customer refs", func(t *testing.T) {
		t.Parallel()
		c := subscription.NewCache(time.Minute)
		c.SetCustomerRef("u1", "cust_1")

		c.Invalidate("u1")

		ref, ok := c.CustomerRef("u1")
		assert.True(t, ok)
		assert.Equal(t, "cust_1", ref)
	})
}
