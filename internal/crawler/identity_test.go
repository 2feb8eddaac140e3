package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityKeyIgnoresCosmeticDifferences(t *testing.T) {
	t.Parallel()

	a := NewIdentity("Onyx Coffee Lab", CategoryTop100)
	b := NewIdentity("  onyx coffee-lab ", "main")
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "Top 100::onyxcoffeelab", a.Key())
}

func TestIdentityKeySeparatesCategories(t *testing.T) {
	t.Parallel()

	top := NewIdentity("Café Z", CategoryTop100)
	south := NewIdentity("Café Z", CategorySouthAmerica)
	assert.NotEqual(t, top.Key(), south.Key())
	assert.Equal(t, "South America::caféz", south.Key())
}

func TestIdentityExcludesRank(t *testing.T) {
	t.Parallel()

	first := RawRecord{Name: "Toby's Estate", Rank: 3, Category: CategoryTop100}
	moved := RawRecord{Name: "Toby's Estate", Rank: 11, Category: CategoryTop100}
	assert.Equal(t, first.Identity(), moved.Identity())
}

func TestNormalizeCategory(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CategorySouthAmerica, NormalizeCategory("South"))
	assert.Equal(t, CategorySouthAmerica, NormalizeCategory(" south america "))
	assert.Equal(t, CategoryTop100, NormalizeCategory("TOP 100"))
	assert.Equal(t, CategoryTop100, NormalizeCategory("Main"))
	assert.Equal(t, Category("Europe"), NormalizeCategory(" Europe "))
}
