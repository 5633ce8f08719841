// Package weights holds sparse interpolation weights and the operations the
// route engine needs to apply them: validation, splitting by owning PET
// pair, and weighted accumulation into destination buffers.
//
// Weights are produced elsewhere. This package never checks that factors
// sum to one; conservation is the generator's contract.
package weights
