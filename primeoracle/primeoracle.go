// Package primeoracle provides the external "nearest prime >= n" lookup the
// IBLT engine uses to size its columns. The engine treats it as an opaque
// collaborator; this package is the implementation of that contract that
// iblt.New calls.
package primeoracle

import "math/big"

// GetNearest returns the smallest prime p >= n. For n <= 2 it returns 2.
//
// There is no established third-party "nearest prime" package worth pulling
// in for this, so this leans on math/big's Miller-Rabin primality test
// (ProbablyPrime) rather than a standalone number-theory dependency.
func GetNearest(n int64) int64 {
	if n <= 2 {
		return 2
	}
	candidate := big.NewInt(n)
	if candidate.Bit(0) == 0 {
		candidate.Add(candidate, big.NewInt(1))
	}
	two := big.NewInt(2)
	for !candidate.ProbablyPrime(20) {
		candidate.Add(candidate, two)
	}
	return candidate.Int64()
}
