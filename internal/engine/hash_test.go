package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRowHash_Stable(t *testing.T) {
	row := []string{"A", "2024-01-01", "x"}
	assert.Equal(t, RowHash(row), RowHash(row))
	assert.Equal(t, RowHash(row), RowHash([]string{"A", "2024-01-01", "x"}))
}

func TestRowHash_SingleCellChangeDiffers(t *testing.T) {
	a := RowHash([]string{"A", "2024-01-01", "x"})
	b := RowHash([]string{"A", "2024-01-01", "y"})
	assert.NotEqual(t, a, b)
}

func TestRowHash_CellBoundaries(t *testing.T) {
	// adjacent cells must not collide under concatenation
	assert.NotEqual(t, RowHash([]string{"ab", "c"}), RowHash([]string{"a", "bc"}))
	assert.NotEqual(t, RowHash([]string{"a", ""}), RowHash([]string{"a"}))
}

func TestDatasetChecksum(t *testing.T) {
	h1 := []string{RowHash([]string{"a"}), RowHash([]string{"b"})}
	h2 := []string{RowHash([]string{"a"}), RowHash([]string{"b"})}
	assert.Equal(t, DatasetChecksum(h1), DatasetChecksum(h2))

	h3 := []string{RowHash([]string{"a"}), RowHash([]string{"c"})}
	assert.NotEqual(t, DatasetChecksum(h1), DatasetChecksum(h3))

	// order matters
	h4 := []string{h1[1], h1[0]}
	assert.NotEqual(t, DatasetChecksum(h1), DatasetChecksum(h4))
}
