package worldserver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ionforge/wildcore/internal/worldpackets"
)

func TestValidateName(t *testing.T) {
	cases := []struct {
		name string
		ok   bool
	}{
		{"Aeryn", true},
		{"O'Malley", true},
		{"Anna Marie", true},
		{"ab", false},                             // too short
		{strings.Repeat("a", 25), false},          // too long
		{"1Aeryn", false},                         // must start with a letter
		{"Aer yn ", false},                        // not trimmed
		{"Aer  yn", false},                        // double space
		{"Aeryn_", false},                          // disallowed char
		{"", false},
	}
	for _, c := range cases {
		require.Equal(t, c.ok, validateName(c.name), "name %q", c.name)
	}
}

func TestValidateCustomization(t *testing.T) {
	ok := worldpackets.ClientCharacterCreate{
		Labels: []string{"hairColor"},
		Values: []string{"red"},
		Bones:  []float32{0, 9.9, -9.9},
	}
	require.True(t, validateCustomization(ok))

	mismatched := worldpackets.ClientCharacterCreate{
		Labels: []string{"hairColor"},
		Values: []string{},
	}
	require.False(t, validateCustomization(mismatched))

	outOfRange := worldpackets.ClientCharacterCreate{Bones: []float32{10.1}}
	require.False(t, validateCustomization(outOfRange))

	tooManyLabels := worldpackets.ClientCharacterCreate{
		Labels: make([]string, maxLabels+1),
		Values: make([]string, maxLabels+1),
	}
	require.False(t, validateCustomization(tooManyLabels))
}
