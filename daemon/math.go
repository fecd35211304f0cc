/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package daemon

import (
	"fmt"
	"math"

	"github.com/Knetic/govaluate"
	"github.com/eclesh/welford"
)

// MathHelp is a help message used by flags in main
const MathHelp = `When composing the -drift formula, here is what you can do:
supported operations:
  evaluation is done with govaluate, please check https://github.com/Knetic/govaluate/blob/master/MANUAL.md
supported variables:
  slippage (list of last timer arm slippages, in ns)
  drift (list of last applied drift adjustments, in cycles)
supported functions:
  abs(value) - absolute value of single float64, for example abs(-1) = 1
  mean(values, number) - mean of list of 'number' values
  variance(values, number) - variance of list of 'number' values
  stddev(values, number) - standard deviation of list of 'number' values`

const (
	// MathDefaultHistory is a default number of samples to keep
	MathDefaultHistory = 100
	// MathDefaultDrift is a default formula to estimate the counter drift in cycles
	MathDefaultDrift = "mean(slippage, 60) / 1000000"
)

// Math stores the drift estimation expression in two forms: string and parsed
type Math struct {
	Drift     string // counter drift in cycles, fed to the bounded adjustment
	driftExpr *govaluate.EvaluableExpression
}

// Prepare will prepare the math expression
func (m *Math) Prepare() error {
	var err error
	m.driftExpr, err = prepareExpression(m.Drift)
	if err != nil {
		return fmt.Errorf("evaluating Drift: %w", err)
	}
	return nil
}

func mean(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Mean()
}

func variance(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Variance()
}

func stddev(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Stddev()
}

// take up to n last values from input
func lastN(input []float64, n int) ([]float64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("can't take %d values from a list", n)
	}
	if len(input) < n {
		n = len(input)
	}
	return input[len(input)-n:], nil
}

func twoArgs(args ...any) ([]float64, int, error) {
	if len(args) != 2 {
		return nil, 0, fmt.Errorf("want 2 arguments, got %d", len(args))
	}
	values, ok := args[0].([]float64)
	if !ok {
		return nil, 0, fmt.Errorf("first argument must be a list of floats")
	}
	n, ok := args[1].(float64)
	if !ok {
		return nil, 0, fmt.Errorf("second argument must be a number")
	}
	taken, err := lastN(values, int(n))
	return taken, int(n), err
}

var mathFunctions = map[string]govaluate.ExpressionFunction{
	"abs": func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("want 1 argument, got %d", len(args))
		}
		v, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("argument must be a number")
		}
		return math.Abs(v), nil
	},
	"mean": func(args ...any) (any, error) {
		values, _, err := twoArgs(args...)
		if err != nil {
			return nil, err
		}
		return mean(values), nil
	},
	"variance": func(args ...any) (any, error) {
		values, _, err := twoArgs(args...)
		if err != nil {
			return nil, err
		}
		return variance(values), nil
	},
	"stddev": func(args ...any) (any, error) {
		values, _, err := twoArgs(args...)
		if err != nil {
			return nil, err
		}
		return stddev(values), nil
	},
}

func prepareExpression(expr string) (*govaluate.EvaluableExpression, error) {
	return govaluate.NewEvaluableExpressionWithFunctions(expr, mathFunctions)
}

// evalExpr evaluates a prepared expression against sample lists.
func evalExpr(expr *govaluate.EvaluableExpression, params map[string]any) (float64, error) {
	result, err := expr.Evaluate(params)
	if err != nil {
		return 0, err
	}
	v, ok := result.(float64)
	if !ok {
		return 0, fmt.Errorf("expression result is not a number: %v", result)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("expression result is not finite: %v", v)
	}
	return v, nil
}
