// Package distance provides the dissimilarity functions a vamana graph is
// built and searched with.
//
// Every Func returns a dissimilarity: smaller means closer. The graph relies
// on the triangle-like behavior of the metric for alpha pruning, so MetricL2
// and MetricCosine are the intended choices. MetricDot returns the negated
// inner product, which may be negative; alpha > 1 then relaxes pruning in the
// wrong direction for negative distances.
//
// # Supported Metrics
//
//   - MetricL2: squared Euclidean distance (default)
//   - MetricCosine: 1 - cosine similarity
//   - MetricDot: negated dot product
//
// # Usage
//
//	fn, err := distance.Provider(distance.MetricL2)
//	d := fn(a, b)
package distance
