package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanGameTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"console suffix", "The Last of Us PS4", "The Last of Us"},
		{"company and console", "Sony Gran Turismo 7 PlayStation 5", "Gran Turismo 7"},
		{"case insensitive", "halo xbox one", "halo"},
		{"nothing to strip", "Hades", "Hades"},
		{"word boundary", "PCars", "PCars"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanGameTitle(tt.in))
		})
	}
}

func TestRemoveLastWord(t *testing.T) {
	assert.Equal(t, "Red Dead", RemoveLastWord("Red Dead Redemption"))
	assert.Equal(t, "Celeste", RemoveLastWord("Celeste"))
	assert.Equal(t, "", RemoveLastWord(""))
}

func TestNormalizeForSearch(t *testing.T) {
	assert.Equal(t, "pokemon", NormalizeForSearch("Pokémon"))
	assert.Equal(t, "ico", NormalizeForSearch("  ÍCO "))
	assert.Equal(t, "final fantasy vii", NormalizeForSearch("Final Fantasy VII"))
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"£19.99", 19.99, true},
		{"$1,299.00", 1299, true},
		{"$42.00 to $50.00", 42, true},
		{"12,99 €", 12.99, true},
		{"Price: 7", 7, true},
		{"N/A", 0, false},
		{"£0.00", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParsePrice(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}
