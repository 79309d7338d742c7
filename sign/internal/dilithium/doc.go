// Package dilithium carries the parameterized implementation body shared
// by the ML-DSA modes: ring arithmetic and NTT over ℤ_q[x]/(x²⁵⁶+1),
// SHAKE-driven rejection samplers, decomposition and hints, the bit-packed
// coders, and the FIPS 204 keygen/sign/verify core with its external-μ
// entry points.
package dilithium
