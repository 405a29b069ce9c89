package phone

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		raw, country, want string
	}{
		{"070-123 45 67", "+46", "+46701234567"},
		{"0701234567", "+46", "+46701234567"},
		{"46701234567", "+46", "+46701234567"},
		{"0046701234567", "+46", "+46701234567"},
		{"+46 70 123 45 67", "+46", "+46701234567"},
		{"(+1) 415 555 2671", "+46", "+14155552671"},
		{"+1 (415) 555-2671", "+46", "+14155552671"},
		{"4155552671", "+46", "+4155552671"},
		{"0701234567", "", "+701234567"},
		{"", "+46", ""},
		{"abc", "+46", ""},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.raw, tc.country))
		})
	}
}

func TestValidate(t *testing.T) {
	assert.True(t, Validate("+46701234567"))
	assert.True(t, Validate("+1234567"))
	assert.True(t, Validate("+123456789012345"))

	assert.False(t, Validate("46701234567"))
	assert.False(t, Validate("+0701234567"))
	assert.False(t, Validate("+123456"))
	assert.False(t, Validate("+1234567890123456"))
	assert.False(t, Validate("+46 70 123"))
	assert.False(t, Validate(""))
}

// Every Swedish national number normalizes to a valid +46 number.
func TestSwedishLocalNumbersNormalize(t *testing.T) {
	rng := rand.New(rand.NewSource(46))
	for i := 0; i < 500; i++ {
		n := 8 + rng.Intn(3) // digits after the trunk zero
		local := "0"
		for j := 0; j < n; j++ {
			local += fmt.Sprint(rng.Intn(10))
		}
		got := Normalize(local, "+46")
		assert.Regexp(t, `^\+46\d{8,10}$`, got, local)
		assert.True(t, Validate(got), local)
	}
}

func TestMask(t *testing.T) {
	assert.Equal(t, "+*******4567", Mask("+46701234567"))
	assert.Equal(t, "****", Mask("1234"))
	assert.Equal(t, "******7890", Mask("1234567890"))
}
