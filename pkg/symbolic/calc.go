package symbolic

import (
	"fmt"
	"math/big"
)

// Factorial returns n! exactly. Negative n is an error.
func Factorial(n int) (*big.Int, error) {
	if n < 0 {
		return nil, fmt.Errorf("factorial undefined for negative n: %d", n)
	}
	if n == 0 {
		return big.NewInt(1), nil
	}
	return new(big.Int).MulRange(1, int64(n)), nil
}

// Combination returns nCr exactly.
func Combination(n, r int) (*big.Int, error) {
	if n < 0 || r < 0 || r > n {
		return nil, fmt.Errorf("invalid combination: C(%d, %d)", n, r)
	}
	return new(big.Int).Binomial(int64(n), int64(r)), nil
}

// Permutation returns nPr exactly.
func Permutation(n, r int) (*big.Int, error) {
	if n < 0 || r < 0 || r > n {
		return nil, fmt.Errorf("invalid permutation: P(%d, %d)", n, r)
	}
	if r == 0 {
		return big.NewInt(1), nil
	}
	// n * (n-1) * ... * (n-r+1)
	return new(big.Int).MulRange(int64(n-r+1), int64(n)), nil
}
