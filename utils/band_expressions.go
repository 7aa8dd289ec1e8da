package utils

import (
	"fmt"

	"github.com/edisonguo/govaluate"
)

// BandExpressions holds parsed derived-feature expressions. Each
// expression computes one output column from the named feature bands
// referenced as variables.
type BandExpressions struct {
	Names       []string
	ExprText    []string
	Expressions []*govaluate.EvaluableExpression
	ExprVarRef  [][]string
	VarList     []string
}

// ParseBandExpressions compiles the derived-feature definitions.
func ParseBandExpressions(derived []DerivedFeature) (*BandExpressions, error) {
	bandExpr := &BandExpressions{}
	varFound := make(map[string]bool)

	for _, df := range derived {
		expr, err := govaluate.NewEvaluableExpression(df.Expression)
		if err != nil {
			return nil, fmt.Errorf("parsing expression '%s' for derived feature %s: %v",
				df.Expression, df.Name, err)
		}

		bandExpr.Names = append(bandExpr.Names, df.Name)
		bandExpr.ExprText = append(bandExpr.ExprText, df.Expression)
		bandExpr.Expressions = append(bandExpr.Expressions, expr)

		var varRef []string
		for _, variable := range expr.Vars() {
			varRef = append(varRef, variable)
			if !varFound[variable] {
				varFound[variable] = true
				bandExpr.VarList = append(bandExpr.VarList, variable)
			}
		}
		bandExpr.ExprVarRef = append(bandExpr.ExprVarRef, varRef)
	}

	return bandExpr, nil
}

// Evaluate computes the ix-th expression against a full set of band
// values. The second return is false when any referenced band value is
// missing, in which case the derived value is Missing as well.
func (bandExpr *BandExpressions) Evaluate(ix int, values map[string]Value) (float64, bool, error) {
	parameters := make(map[string]interface{}, len(bandExpr.ExprVarRef[ix]))
	for _, variable := range bandExpr.ExprVarRef[ix] {
		val, ok := values[variable]
		if !ok || val.IsMissing() {
			return 0, false, nil
		}
		parameters[variable] = val.V
	}

	result, err := bandExpr.Expressions[ix].Evaluate(parameters)
	if err != nil {
		return 0, false, fmt.Errorf("eval '%s' error: %v", bandExpr.ExprText[ix], err)
	}

	switch v := result.(type) {
	case float64:
		return v, true, nil
	case float32:
		return float64(v), true, nil
	case int:
		return float64(v), true, nil
	default:
		return 0, false, fmt.Errorf("eval '%s' returned non-numeric result %v",
			bandExpr.ExprText[ix], result)
	}
}
