package filters

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrossFiltersSelectionLifecycle(t *testing.T) {
	registry := NewCrossFilters()

	_, ok := registry.Selection("brand-bars")
	assert.False(t, ok, "never touched")

	registry.SetSelection("brand-bars", []string{"Alaska", "Alaska", "Nestle"})
	values, ok := registry.Selection("brand-bars")
	assert.True(t, ok)
	assert.Equal(t, []string{"Alaska", "Nestle"}, values)

	registry.SetSelection("brand-bars", nil)
	values, ok = registry.Selection("brand-bars")
	assert.True(t, ok, "explicitly emptied is still an entry")
	assert.Empty(t, values)

	registry.ClearSelection("brand-bars")
	_, ok = registry.Selection("brand-bars")
	assert.False(t, ok)
}

func TestCrossFiltersClearAll(t *testing.T) {
	registry := NewCrossFilters()
	registry.SetSelection("a", []string{"1"})
	registry.SetSelection("b", []string{"2"})

	assert.Equal(t, []string{"a", "b"}, registry.Charts())

	registry.ClearAll()
	assert.Empty(t, registry.All())
	assert.Empty(t, registry.Charts())
}

func TestCrossFiltersReturnCopies(t *testing.T) {
	registry := NewCrossFilters()
	input := []string{"Snacks"}
	registry.SetSelection("treemap", input)
	input[0] = "mutated"

	values, _ := registry.Selection("treemap")
	values[0] = "mutated again"
	all := registry.All()
	all["treemap"][0] = "and again"

	values, _ = registry.Selection("treemap")
	assert.Equal(t, []string{"Snacks"}, values)
}

func TestCrossFiltersConcurrentAccess(t *testing.T) {
	registry := NewCrossFilters()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				registry.SetSelection("chart", []string{"x"})
				registry.Selection("chart")
				registry.All()
				if j%10 == 0 {
					registry.ClearSelection("chart")
				}
			}
		}(i)
	}
	wg.Wait()
}
