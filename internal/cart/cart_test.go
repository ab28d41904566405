package cart

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCart(t *testing.T) {
	var c Cart

	c.Add("aspirin", 450, "pain")
	c.Add("aspirin", 450, "pain")
	c.Add("zinc", 1200, "supplements")

	assert.Equal(t, []Item{
		{ProductID: "aspirin", UnitPrice: 450, Category: "pain", Quantity: 2},
		{ProductID: "zinc", UnitPrice: 1200, Category: "supplements", Quantity: 1},
	}, c.Items())
	assert.Equal(t, int64(2100), c.Total())

	assert.True(t, c.Remove("aspirin"))
	assert.Equal(t, int64(1650), c.Total())
	assert.True(t, c.Remove("aspirin"))
	assert.False(t, c.Remove("aspirin"))
	assert.Len(t, c.Items(), 1)

	c.Clear()
	assert.Empty(t, c.Items())
	assert.Zero(t, c.Total())
}

func TestCart_ConcurrentAdd(t *testing.T) {
	var (
		c  Cart
		wg sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Add("vitamin-d", 100, "supplements")
		}()
	}
	wg.Wait()

	items := c.Items()
	assert.Len(t, items, 1)
	assert.Equal(t, 50, items[0].Quantity)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	r.For("alice").Add("zinc", 1200, "supplements")
	assert.Same(t, r.For("alice"), r.For("alice"))
	assert.Empty(t, r.For("bob").Items())

	r.Drop("alice")
	assert.Empty(t, r.For("alice").Items())
}
