package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsMarkup(t *testing.T) {
	cases := map[string]bool{
		"":                                  false,
		"insufficient income proof":         false,
		"  Springfield, IL 62704 ":          false,
		"O'Brien & Sons":                    false,
		`the "quoted" reason`:               false,
		"income < expenses":                 false,
		"a > b":                             false,
		"<b>home</b> repair":                true,
		"<script>alert(1)</script>Jane Doe": true,
		"debt<income ratio too high":        true,
		"see <attached> docs":               true,
		"<!-- note -->":                     true,
	}
	for in, want := range cases {
		assert.Equal(t, want, ContainsMarkup(in), in)
	}
}

func TestBlank(t *testing.T) {
	assert.True(t, Blank(""))
	assert.True(t, Blank(" \t\n"))
	assert.False(t, Blank(" x "))
}
