// Package bandmath evaluates arithmetic expressions over raster bands.
// An expression refers to bands by name and is applied pixel by pixel,
// so "(nir - red) / (nir + red)" over two input planes yields an NDVI
// plane of the same size.
package bandmath

import (
	"fmt"
	"math"
	"strings"

	goeval "github.com/edisonguo/govaluate"
)

type Expression struct {
	expr    *goeval.EvaluableExpression
	text    string
	varList []string
}

// Parse compiles a band expression and records the band names it refers
// to. Only plain variable and arithmetic tokens are accepted.
func Parse(text string) (*Expression, error) {
	if len(strings.TrimSpace(text)) == 0 {
		return nil, fmt.Errorf("empty band expression")
	}

	expr, err := goeval.NewEvaluableExpression(text)
	if err != nil {
		return nil, fmt.Errorf("parsing '%v': %v", text, err)
	}

	seen := make(map[string]struct{})
	var varList []string
	for _, token := range expr.Tokens() {
		if token.Kind == goeval.VARIABLE {
			varName, ok := token.Value.(string)
			if !ok {
				return nil, fmt.Errorf("variable token '%v' failed to cast string", token.Value)
			}
			if _, found := seen[varName]; !found {
				seen[varName] = struct{}{}
				varList = append(varList, varName)
			}
		}
	}
	if len(varList) == 0 {
		return nil, fmt.Errorf("band expression '%v' refers to no bands", text)
	}

	return &Expression{expr: expr, text: text, varList: varList}, nil
}

func (e *Expression) Text() string { return e.text }

// VarList returns the band names the expression refers to, in order of
// first appearance.
func (e *Expression) VarList() []string { return e.varList }

// Evaluate applies the expression to every pixel. The bands map must
// supply one plane per referenced band name and all planes must share
// the same length. A pixel where any input is NaN evaluates to NaN.
//
// The expression engine computes in single precision; inputs are
// narrowed to float32 for evaluation and the result widened back.
func (e *Expression) Evaluate(bands map[string][]float64) ([]float64, error) {
	nPix := -1
	for _, name := range e.varList {
		plane, ok := bands[name]
		if !ok {
			return nil, fmt.Errorf("band expression '%v' refers to band %v which is not supplied", e.text, name)
		}
		if nPix < 0 {
			nPix = len(plane)
		} else if len(plane) != nPix {
			return nil, fmt.Errorf("band %v has %d pixels, expected %d", name, len(plane), nPix)
		}
	}

	out := make([]float64, nPix)
	parameters := make(map[string]interface{}, len(e.varList))
	for p := 0; p < nPix; p++ {
		noData := false
		for _, name := range e.varList {
			v := bands[name][p]
			if v != v {
				noData = true
				break
			}
			parameters[name] = float32(v)
		}
		if noData {
			out[p] = math.NaN()
			continue
		}

		result, err := e.expr.Evaluate(parameters)
		if err != nil {
			return nil, fmt.Errorf("evaluating '%v': %v", e.text, err)
		}
		val, ok := result.(float32)
		if !ok {
			return nil, fmt.Errorf("failed to cast eval result '%v' to float32, %v", result, e.text)
		}
		out[p] = float64(val)
	}
	return out, nil
}

// Evaluate is a convenience wrapper that parses and applies a band
// expression in one call.
func Evaluate(text string, bands map[string][]float64) ([]float64, error) {
	expr, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return expr.Evaluate(bands)
}
