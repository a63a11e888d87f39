package calculator

import (
	"fmt"
	"strings"
)

const (
	KeyClear    = "C"
	KeyEquals   = "="
	KeyNegate   = "+/-"
	KeyParens   = "()"
	KeyPercent  = "%"
	KeyDivide   = "÷"
	KeyMultiply = "×"
	KeyMinus    = "-"
	KeyPlus     = "+"
	KeyDot      = "."

	errorDisplay = "Error"
)

// Keys is the keypad in display order, four per row.
var Keys = []string{
	KeyClear, KeyParens, KeyPercent, KeyDivide,
	"7", "8", "9", KeyMultiply,
	"4", "5", "6", KeyMinus,
	"1", "2", "3", KeyPlus,
	KeyNegate, "0", KeyDot, KeyEquals,
}

var validKeys = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Keys))
	for _, k := range Keys {
		m[k] = struct{}{}
	}
	return m
}()

// Calculator is the keypad state. It carries no backend dependency and is
// round-tripped through the page between key presses.
type Calculator struct {
	Display  string
	IsResult bool
}

func New() *Calculator {
	return &Calculator{Display: "0"}
}

// Restore rebuilds a calculator from a rendered display.
func Restore(display string, isResult bool) *Calculator {
	if display == "" {
		display = "0"
	}
	return &Calculator{Display: display, IsResult: isResult}
}

// Press applies one key.
func (c *Calculator) Press(key string) error {
	if _, ok := validKeys[key]; !ok {
		return fmt.Errorf("unknown key %q", key)
	}
	switch key {
	case KeyClear:
		c.Display = "0"
		c.IsResult = false
	case KeyEquals:
		c.calculate()
	case KeyNegate:
		if c.Display != "0" {
			if strings.HasPrefix(c.Display, "-") {
				c.Display = c.Display[1:]
			} else {
				c.Display = "-" + c.Display
			}
		}
	case KeyParens:
		if strings.Count(c.Display, "(") > strings.Count(c.Display, ")") {
			c.input(")")
		} else {
			c.input("(")
		}
	default:
		c.input(key)
	}
	return nil
}

func (c *Calculator) input(v string) {
	if c.IsResult {
		c.Display = v
		c.IsResult = false
		return
	}
	if c.Display == "0" && v != KeyDot {
		c.Display = v
		return
	}
	c.Display += v
}

func (c *Calculator) calculate() {
	expr := strings.NewReplacer(KeyMultiply, "*", KeyDivide, "/", KeyPercent, "*0.01").Replace(c.Display)
	c.IsResult = true
	for _, r := range expr {
		if !strings.ContainsRune("0123456789+-*/(). ", r) {
			c.Display = errorDisplay
			return
		}
	}
	v, err := Evaluate(expr)
	if err != nil {
		c.Display = errorDisplay
		return
	}
	c.Display = Format(v)
}
