package formula

import (
	"fmt"
	"math"
	"strings"
)

// mathFunctions is the single-dispatch table for the plain math set.
var mathFunctions = map[string]func(args []float64) (float64, error){
	"sqrt":  fixedArgs(1, func(a []float64) float64 { return math.Sqrt(a[0]) }),
	"abs":   fixedArgs(1, func(a []float64) float64 { return math.Abs(a[0]) }),
	"pow":   fixedArgs(2, func(a []float64) float64 { return math.Pow(a[0], a[1]) }),
	"ceil":  fixedArgs(1, func(a []float64) float64 { return math.Ceil(a[0]) }),
	"floor": fixedArgs(1, func(a []float64) float64 { return math.Floor(a[0]) }),
	"log":   fixedArgs(1, func(a []float64) float64 { return math.Log(a[0]) }),
	"log10": fixedArgs(1, func(a []float64) float64 { return math.Log10(a[0]) }),
	"exp":   fixedArgs(1, func(a []float64) float64 { return math.Exp(a[0]) }),
	"sin":   fixedArgs(1, func(a []float64) float64 { return math.Sin(a[0]) }),
	"cos":   fixedArgs(1, func(a []float64) float64 { return math.Cos(a[0]) }),
	"tan":   fixedArgs(1, func(a []float64) float64 { return math.Tan(a[0]) }),
	"mod":   fixedArgs(2, func(a []float64) float64 { return math.Mod(a[0], a[1]) }),
}

func fixedArgs(n int, fn func([]float64) float64) func([]float64) (float64, error) {
	return func(args []float64) (float64, error) {
		if len(args) != n {
			return 0, fmt.Errorf("expected %d argument(s), got %d", n, len(args))
		}
		return fn(args), nil
	}
}

// KnownFunction reports whether name is part of the formula language's
// function and constant vocabulary. The batch validator uses it to reject
// bare identifiers that are not functions.
func KnownFunction(name string) bool {
	switch strings.ToLower(name) {
	case "if", "ifs", "switch", "xlookup",
		"and", "or", "not", "xor",
		"round", "min", "max",
		"pi", "e", "true", "false", "null":
		return true
	}
	_, ok := mathFunctions[strings.ToLower(name)]
	return ok
}

// callFunction dispatches a function call by case-insensitive name over
// already-evaluated arguments.
func callFunction(name string, args []any) (any, error) {
	lower := strings.ToLower(name)

	switch lower {
	case "if":
		return fnIF(args)
	case "ifs":
		return fnIFS(args)
	case "switch":
		return fnSWITCH(args)
	case "xlookup":
		return fnXLOOKUP(args)
	case "and":
		for _, a := range args {
			if !Truthy(a) {
				return false, nil
			}
		}
		return true, nil
	case "or":
		for _, a := range args {
			if Truthy(a) {
				return true, nil
			}
		}
		return false, nil
	case "not":
		if len(args) != 1 {
			return nil, fmt.Errorf("NOT: expected 1 argument, got %d", len(args))
		}
		return !Truthy(args[0]), nil
	case "xor":
		count := 0
		for _, a := range args {
			if Truthy(a) {
				count++
			}
		}
		return count%2 == 1, nil
	case "round":
		return fnROUND(args)
	case "min", "max":
		return fnMINMAX(lower, args)
	}

	if fn, ok := mathFunctions[lower]; ok {
		nums, err := numericArgs(name, args)
		if err != nil {
			return nil, err
		}
		return fn(nums)
	}
	return nil, fmt.Errorf("unknown function %q", name)
}

func numericArgs(name string, args []any) ([]float64, error) {
	nums := make([]float64, len(args))
	for i, a := range args {
		n, ok := ToNumber(a)
		if !ok {
			return nil, fmt.Errorf("%s: argument %d is not numeric", strings.ToUpper(name), i+1)
		}
		nums[i] = n
	}
	return nums, nil
}

// fnIF returns the second argument when the first is truthy, else the third
// (null when omitted).
func fnIF(args []any) (any, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, fmt.Errorf("IF: expected 2 or 3 arguments, got %d", len(args))
	}
	if Truthy(args[0]) {
		return args[1], nil
	}
	if len(args) == 3 {
		return args[2], nil
	}
	return nil, nil
}

// fnIFS walks (condition, value) pairs left to right and returns the first
// truthy pair's value. An odd trailing argument acts as the default; with
// no default and no match, IFS is an error.
func fnIFS(args []any) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("IFS: expected at least one condition/value pair")
	}
	pairs := len(args) / 2
	for i := 0; i < pairs; i++ {
		if Truthy(args[2*i]) {
			return args[2*i+1], nil
		}
	}
	if len(args)%2 == 1 {
		return args[len(args)-1], nil
	}
	return nil, fmt.Errorf("IFS: no condition matched and no default given")
}

// fnSWITCH compares the first argument against each case by value-or-string
// equality. An even total argument count means the last argument is the
// default.
func fnSWITCH(args []any) (any, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("SWITCH: expected a value and at least one case/result pair")
	}
	value := args[0]
	rest := args[1:]
	pairs := len(rest) / 2
	for i := 0; i < pairs; i++ {
		if equalValues(value, rest[2*i]) {
			return rest[2*i+1], nil
		}
	}
	if len(rest)%2 == 1 {
		return rest[len(rest)-1], nil
	}
	return nil, nil
}

// fnXLOOKUP finds the lookup value in a whole-column lookup array and
// returns the return-array element at the first matching index, else the
// optional default. Both arrays must be column bindings, not per-row
// scalars.
func fnXLOOKUP(args []any) (any, error) {
	if len(args) < 3 || len(args) > 4 {
		return nil, fmt.Errorf("XLOOKUP: expected 3 or 4 arguments, got %d", len(args))
	}
	lookupArr, ok := args[1].([]any)
	if !ok {
		return nil, fmt.Errorf("XLOOKUP: lookup array must be a column reference")
	}
	returnArr, ok := args[2].([]any)
	if !ok {
		return nil, fmt.Errorf("XLOOKUP: return array must be a column reference")
	}
	for i, candidate := range lookupArr {
		if equalValues(args[0], candidate) {
			if i < len(returnArr) {
				return returnArr[i], nil
			}
			break
		}
	}
	if len(args) == 4 {
		return args[3], nil
	}
	return nil, nil
}

// fnROUND rounds to the nearest integer, or to a digit count when a second
// argument is given.
func fnROUND(args []any) (any, error) {
	nums, err := numericArgs("round", args)
	if err != nil {
		return nil, err
	}
	switch len(nums) {
	case 1:
		return math.Round(nums[0]), nil
	case 2:
		scale := math.Pow(10, nums[1])
		return math.Round(nums[0]*scale) / scale, nil
	default:
		return nil, fmt.Errorf("ROUND: expected 1 or 2 arguments, got %d", len(nums))
	}
}

func fnMINMAX(name string, args []any) (any, error) {
	nums, err := numericArgs(name, args)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return nil, fmt.Errorf("%s: expected at least one argument", strings.ToUpper(name))
	}
	best := nums[0]
	for _, n := range nums[1:] {
		if (name == "min" && n < best) || (name == "max" && n > best) {
			best = n
		}
	}
	return best, nil
}
