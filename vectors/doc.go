// Package vectors provides the read-only datasets a vamana graph is built over.
//
// A Dataset maps dense node ids [0, Len()) to fixed-dimension float32 vectors.
// Dense keeps vectors as one contiguous float32 slab. Half stores them as
// IEEE-754 binary16 and widens on access, halving resident memory at the cost
// of precision. ReadFvecs and WriteFvecs speak the .fvecs format used by
// the common ANN benchmark datasets.
package vectors
