package mlmodel

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	apperrors "github.com/retailiq/customer-segmentation/pkg/errors"
)

// Feature column order the artifacts were fitted on. The scorer extracts
// values from feature rows in exactly this order.
var featureNames = []string{"Recency", "Frequency", "Monetary"}

// Scaler is a fitted standard scaler exported by the training job:
// transform(x) = (x - mean) / scale, column-wise.
type Scaler struct {
	Features []string  `json:"features"`
	Mean     []float64 `json:"mean"`
	Scale    []float64 `json:"scale"`
}

// KMeans is a fitted k-means model exported by the training job. Predict
// assigns each row to the nearest centroid by squared Euclidean distance,
// ties resolved to the lowest cluster index.
type KMeans struct {
	Clusters  int         `json:"clusters"`
	Centroids [][]float64 `json:"centroids"`
}

// Artifacts bundles the two fitted models. Loaded once at process start and
// treated as immutable for the process lifetime; concurrent reads are safe.
type Artifacts struct {
	Scaler *Scaler
	KMeans *KMeans
}

// Load reads and validates both artifacts from dir. A missing or malformed
// file is a ModelUnavailableError: the process must refuse to serve scoring
// requests rather than limp along.
func Load(dir, scalerFile, kmeansFile string) (*Artifacts, error) {
	scaler, err := loadScaler(filepath.Join(dir, scalerFile))
	if err != nil {
		return nil, err
	}
	kmeans, err := loadKMeans(filepath.Join(dir, kmeansFile))
	if err != nil {
		return nil, err
	}

	for i, c := range kmeans.Centroids {
		if len(c) != len(scaler.Features) {
			return nil, apperrors.NewModelUnavailableError(
				"scaler/k-means artifacts disagree on feature count",
				fmt.Errorf("centroid %d has %d values, scaler has %d features", i, len(c), len(scaler.Features)),
			)
		}
	}

	return &Artifacts{Scaler: scaler, KMeans: kmeans}, nil
}

func loadScaler(path string) (*Scaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewModelUnavailableError(fmt.Sprintf("missing scaler artifact %s", path), err)
	}

	var scaler Scaler
	if err := json.Unmarshal(data, &scaler); err != nil {
		return nil, apperrors.NewModelUnavailableError(fmt.Sprintf("malformed scaler artifact %s", path), err)
	}

	if len(scaler.Features) != len(featureNames) ||
		len(scaler.Mean) != len(featureNames) ||
		len(scaler.Scale) != len(featureNames) {
		return nil, apperrors.NewModelUnavailableError(
			fmt.Sprintf("scaler artifact %s must cover exactly %d features", path, len(featureNames)), nil)
	}
	for i, name := range featureNames {
		if scaler.Features[i] != name {
			return nil, apperrors.NewModelUnavailableError(
				fmt.Sprintf("scaler artifact %s has feature %q at position %d, want %q", path, scaler.Features[i], i, name), nil)
		}
	}
	for i, s := range scaler.Scale {
		if s == 0 {
			return nil, apperrors.NewModelUnavailableError(
				fmt.Sprintf("scaler artifact %s has zero scale for feature %q", path, scaler.Features[i]), nil)
		}
	}

	return &scaler, nil
}

func loadKMeans(path string) (*KMeans, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewModelUnavailableError(fmt.Sprintf("missing k-means artifact %s", path), err)
	}

	var kmeans KMeans
	if err := json.Unmarshal(data, &kmeans); err != nil {
		return nil, apperrors.NewModelUnavailableError(fmt.Sprintf("malformed k-means artifact %s", path), err)
	}

	if kmeans.Clusters <= 0 || len(kmeans.Centroids) != kmeans.Clusters {
		return nil, apperrors.NewModelUnavailableError(
			fmt.Sprintf("k-means artifact %s declares %d clusters but carries %d centroids", path, kmeans.Clusters, len(kmeans.Centroids)), nil)
	}

	return &kmeans, nil
}

// Transform scales each row column-wise. Row order is preserved.
func (s *Scaler) Transform(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(s.Mean) {
			return nil, fmt.Errorf("row %d has %d features, scaler expects %d", i, len(row), len(s.Mean))
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.Mean[j]) / s.Scale[j]
		}
		out[i] = scaled
	}
	return out, nil
}

// Predict assigns each scaled row to its nearest centroid. Row order is
// preserved: prediction i corresponds to input row i.
func (k *KMeans) Predict(rows [][]float64) ([]int, error) {
	out := make([]int, len(rows))
	for i, row := range rows {
		best := -1
		bestDist := 0.0
		for c, centroid := range k.Centroids {
			if len(centroid) != len(row) {
				return nil, fmt.Errorf("row %d has %d features, centroid %d has %d", i, len(row), c, len(centroid))
			}
			dist := 0.0
			for j := range row {
				d := row[j] - centroid[j]
				dist += d * d
			}
			if best == -1 || dist < bestDist {
				best = c
				bestDist = dist
			}
		}
		if best == -1 {
			return nil, fmt.Errorf("k-means model has no centroids")
		}
		out[i] = best
	}
	return out, nil
}
