package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cravemate/internal/models"
)

func sampleItems() []models.CatalogItem {
	return []models.CatalogItem{
		{Name: "Cake", Category: "dessert", Moods: []string{"happy"}, Reason: "classic comfort", Image: "/cake.png"},
		{Name: "Brownie", Category: "Dessert", Reason: "rich and fudgy"},
		{Name: "cake", Category: "dessert", Reason: "duplicate"},
		{Name: "  ", Category: "dessert"},
		{Name: "Green Tea", Category: "drink", Moods: []string{"tired"}},
	}
}

func TestFindByNameIsCaseInsensitive(t *testing.T) {
	idx := New(sampleItems())

	item, ok := idx.FindByName("CAKE")
	require.True(t, ok)
	assert.Equal(t, "classic comfort", item.Reason)
	assert.Equal(t, "/cake.png", item.Image)

	item, ok = idx.FindByName("brownie")
	require.True(t, ok)
	assert.Equal(t, "Brownie", item.Name)

	_, ok = idx.FindByName("Cakes")
	assert.False(t, ok, "plurals are not matched")
}

func TestFindByNameDoesNotTrim(t *testing.T) {
	idx := New(sampleItems())

	_, ok := idx.FindByName("Cake ")
	assert.False(t, ok)
	_, ok = idx.FindByName(" brownie")
	assert.False(t, ok)
}

func TestCatalogNamesAreTrimmedAtLoad(t *testing.T) {
	idx := New([]models.CatalogItem{{Name: "  Leche Flan ", Reason: "silky"}})

	item, ok := idx.FindByName("leche flan")
	require.True(t, ok)
	assert.Equal(t, "silky", item.Reason)
}

func TestNewSkipsBlankAndDuplicateNames(t *testing.T) {
	idx := New(sampleItems())

	assert.Equal(t, 3, idx.Len())
	item, _ := idx.FindByName("cake")
	assert.Equal(t, "classic comfort", item.Reason, "first entry wins")

	brownie, _ := idx.FindByName("brownie")
	assert.NotNil(t, brownie.Moods)
}

func TestItemsReturnsCopy(t *testing.T) {
	idx := New(sampleItems())

	items := idx.Items()
	items[0].Name = "Changed"

	_, ok := idx.FindByName("Cake")
	assert.True(t, ok)
	assert.Equal(t, "Cake", idx.Items()[0].Name)
}

func TestByCategory(t *testing.T) {
	idx := New(sampleItems())

	desserts := idx.ByCategory("dessert")
	require.Len(t, desserts, 2)
	assert.Equal(t, "Cake", desserts[0].Name)
	assert.Equal(t, "Brownie", desserts[1].Name)
	assert.Len(t, idx.ByCategory("drink"), 1)
	assert.Empty(t, idx.ByCategory("savory"))
}

func TestByMood(t *testing.T) {
	idx := New([]models.CatalogItem{
		{Name: "Cake", Moods: []string{"happy", "Celebratory"}},
		{Name: "Brownie", Moods: []string{"sad"}},
		{Name: "Ice Cream", Moods: []string{"sad", "happy"}},
		{Name: "Plain Bread"},
	})

	happy := idx.ByMood("HAPPY")
	require.Len(t, happy, 2)
	assert.Equal(t, "Cake", happy[0].Name)
	assert.Equal(t, "Ice Cream", happy[1].Name)

	assert.Len(t, idx.ByMood(" celebratory "), 1)
	assert.Empty(t, idx.ByMood("angry"))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "foods.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"name": "Ice Cream", "category": "dessert", "moods": ["happy", "excited"], "reason": "cold and sweet", "image": "/ice.png"}
	]`), 0o644))

	idx, err := LoadFile(path)
	require.NoError(t, err)
	item, ok := idx.FindByName("ice cream")
	require.True(t, ok)
	assert.Equal(t, []string{"happy", "excited"}, item.Moods)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, ErrCatalogLoad)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{not json`), 0o644))
	_, err = LoadFile(bad)
	assert.ErrorIs(t, err, ErrCatalogLoad)
}

func TestLoadFallsBackToEmptyCatalog(t *testing.T) {
	idx := Load(filepath.Join(t.TempDir(), "missing.json"), zerolog.Nop())

	require.NotNil(t, idx)
	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.Items())
	_, ok := idx.FindByName("Cake")
	assert.False(t, ok)
}
