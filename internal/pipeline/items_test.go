package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractItemsBasicShapes(t *testing.T) {
	text := "2 x APPLES $3.98\nBANANAS x 3 $1.74\nCOFFEE 2 @ $4.50 $9.00\nMILK 1 GAL $3.99"
	items := ExtractItems(text)
	require.Len(t, items, 4)

	assert.Equal(t, "APPLES", items[0].Name)
	assert.Equal(t, 2, items[0].Quantity)
	assert.InDelta(t, 1.99, items[0].UnitPrice, 0.001)

	assert.Equal(t, "BANANAS", items[1].Name)
	assert.Equal(t, 3, items[1].Quantity)
	assert.InDelta(t, 0.58, items[1].UnitPrice, 0.001)

	assert.Equal(t, "COFFEE", items[2].Name)
	assert.Equal(t, 2, items[2].Quantity)
	assert.InDelta(t, 4.50, items[2].UnitPrice, 0.001)

	assert.Equal(t, "MILK 1 GAL", items[3].Name)
	assert.Equal(t, 1, items[3].Quantity)
	assert.InDelta(t, 3.99, items[3].UnitPrice, 0.001)
}

func TestExtractItemsSinglePriceAtForm(t *testing.T) {
	text := "COFFEE 2 @ $4.50\nDONUT 3 @ 1.25"
	items := ExtractItems(text)
	require.Len(t, items, 2)

	assert.Equal(t, "COFFEE", items[0].Name)
	assert.Equal(t, 2, items[0].Quantity)
	assert.InDelta(t, 4.50, items[0].UnitPrice, 0.001)

	assert.Equal(t, "DONUT", items[1].Name)
	assert.Equal(t, 3, items[1].Quantity)
	assert.InDelta(t, 1.25, items[1].UnitPrice, 0.001)
}

func TestExtractItemsSkipsSummaryLines(t *testing.T) {
	text := "BREAD $2.19\nSUBTOTAL $13.95\nTAX $0.84\nTOTAL $14.79\nCASH $20.00\nCHANGE $5.21\nTHANK YOU"
	items := ExtractItems(text)
	require.Len(t, items, 1)
	assert.Equal(t, "BREAD", items[0].Name)
}

func TestExtractItemsDeduplicatesCaseInsensitively(t *testing.T) {
	text := "Milk $3.99\nmilk $3.99"
	items := ExtractItems(text)
	require.Len(t, items, 1)
	assert.Equal(t, "Milk", items[0].Name)
}

func TestExtractItemsRejectsImplausibleNames(t *testing.T) {
	text := "123456789 0 $4.99\nMONDAY SPECIAL $2.00\n123 MAIN STREET $1.00\nCASHIER JANE $0.00\nEGGS $4.29"
	items := ExtractItems(text)
	require.Len(t, items, 1)
	assert.Equal(t, "EGGS", items[0].Name)
}

func TestExtractItemsBounds(t *testing.T) {
	text := "GOLD BAR $99999.99\nPENCIL $0.00\n500 x NAPKIN $5.00\nGUM $0.99"
	items := ExtractItems(text)
	require.Len(t, items, 1)
	assert.Equal(t, "GUM", items[0].Name)
}

func TestValidItemName(t *testing.T) {
	assert.True(t, validItemName("MILK 1 GAL"))
	assert.True(t, validItemName("BEN & JERRY'S"))
	assert.False(t, validItemName("X"))                  // too short
	assert.False(t, validItemName("1234567890 12"))      // digit heavy
	assert.False(t, validItemName("@@##//%%!!"))         // symbol heavy
	assert.False(t, validItemName("CASHIER JANE"))       // role title
	assert.False(t, validItemName("SATURDAY"))           // day of week
	assert.False(t, validItemName("123 ELM STREET APT")) // address
}
