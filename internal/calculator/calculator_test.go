package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func press(t *testing.T, c *Calculator, keys ...string) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, c.Press(k))
	}
}

func TestSevenPlusEight(t *testing.T) {
	c := New()
	press(t, c, "7", "+", "8", "=")
	assert.Equal(t, "15", c.Display)
	assert.True(t, c.IsResult)
}

func TestClearFromAnyState(t *testing.T) {
	for _, keys := range [][]string{
		{},
		{"1", "2"},
		{"9", "÷", "0", "="},
		{"()", "3"},
	} {
		c := New()
		press(t, c, keys...)
		press(t, c, KeyClear)
		assert.Equal(t, "0", c.Display)
		assert.False(t, c.IsResult)
	}
}

func TestInvalidCharactersYieldError(t *testing.T) {
	c := Restore("2+alert(1)", false)
	press(t, c, KeyEquals)
	assert.Equal(t, "Error", c.Display)
}

func TestKeySemantics(t *testing.T) {
	cases := []struct {
		name string
		keys []string
		want string
	}{
		{"leading zero replaced", []string{"0", "5"}, "5"},
		{"zero keeps dot", []string{"0", ".", "5"}, "0.5"},
		{"multiply and divide", []string{"6", "×", "4", "÷", "3", "="}, "8"},
		{"percent", []string{"5", "0", "%", "="}, "0.5"},
		{"precedence", []string{"2", "+", "3", "×", "4", "="}, "14"},
		{"parens", []string{"()", "2", "+", "3", "()", "×", "4", "="}, "20"},
		{"negate", []string{"4", "+/-"}, "-4"},
		{"negate twice", []string{"4", "+/-", "+/-"}, "4"},
		{"negate zero is noop", []string{"+/-"}, "0"},
		{"float artefact kept", []string{".", "1", "+", ".", "2", "="}, "0.30000000000000004"},
		{"divide by zero", []string{"1", "÷", "0", "="}, "Error"},
		{"dangling operator", []string{"1", "+", "="}, "Error"},
		{"double minus", []string{"5", "-", "-", "3", "="}, "Error"},
		{"result replaced by digit", []string{"2", "+", "2", "=", "7"}, "7"},
		{"error replaced by digit", []string{"1", "÷", "0", "=", "3"}, "3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := New()
			press(t, c, tc.keys...)
			assert.Equal(t, tc.want, c.Display)
		})
	}
}

func TestUnknownKey(t *testing.T) {
	c := New()
	assert.Error(t, c.Press("sqrt"))
	assert.Equal(t, "0", c.Display)
}

func TestEvaluate(t *testing.T) {
	v, err := Evaluate("-(2+3)*-2")
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)

	for _, bad := range []string{"", "()", "1..2", "2(3)", "(1", "1)", "1/0", "0/0"} {
		_, err := Evaluate(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "15", Format(15))
	assert.Equal(t, "-2.5", Format(-2.5))
	assert.Equal(t, "1e+21", Format(1e21))
	assert.Equal(t, "1e-7", Format(1e-7))
	assert.Equal(t, "0.000001", Format(1e-6))
	assert.Equal(t, "123456789012345680000", Format(123456789012345678901))
}
