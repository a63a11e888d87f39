package httpserver

import (
	"net/http"
	"strconv"

	"github.com/reclaimai/reclaim/internal/calculator"
)

type calculatorView struct {
	Display  string
	IsResult bool
	Rows     [][]string
}

func keypadRows() [][]string {
	var rows [][]string
	for i := 0; i < len(calculator.Keys); i += 4 {
		rows = append(rows, calculator.Keys[i:i+4])
	}
	return rows
}

func (r *Router) renderCalculator(w http.ResponseWriter, req *http.Request, c *calculator.Calculator) {
	r.render(w, req, http.StatusOK, "calculator", page{
		Title: "Calculator",
		Data:  calculatorView{Display: c.Display, IsResult: c.IsResult, Rows: keypadRows()},
	})
}

func (r *Router) handleCalculator(w http.ResponseWriter, req *http.Request) error {
	r.renderCalculator(w, req, calculator.New())
	return nil
}

// handleCalculatorPress applies one key to the display carried in the form.
func (r *Router) handleCalculatorPress(w http.ResponseWriter, req *http.Request) error {
	isResult, _ := strconv.ParseBool(req.PostFormValue("result"))
	c := calculator.Restore(req.PostFormValue("display"), isResult)
	if err := c.Press(req.PostFormValue("key")); err != nil {
		r.log.Debug("calculator key ignored", "error", err)
	}
	r.renderCalculator(w, req, c)
	return nil
}
