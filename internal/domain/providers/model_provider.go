package providers

// FeatureScaler transforms raw [recency, frequency, monetary] rows into the
// scaled feature space the cluster model was trained on. The column order is
// fixed and row order is preserved.
type FeatureScaler interface {
	Transform(rows [][]float64) ([][]float64, error)
}

// ClusterModel predicts one cluster id per scaled feature row, in the same
// row order as the input.
type ClusterModel interface {
	Predict(rows [][]float64) ([]int, error)
}
