package inference

import (
	"context"
	"errors"
)

// Labels reported by classifiers.
const (
	LabelMalignant    = "Malignant"
	LabelBenign       = "Benign"
	LabelInconclusive = "Inconclusive"
)

// Labels lists every label in chart order.
var Labels = []string{LabelMalignant, LabelBenign, LabelInconclusive}

var (
	// ErrUnsupportedMedia is returned for uploads that are not PDF, JPEG or PNG.
	ErrUnsupportedMedia = errors.New("unsupported media type")
	// ErrImageTooLarge is returned when decoded dimensions exceed the limits.
	ErrImageTooLarge = errors.New("image dimensions exceed limit")
	// ErrInvalidImage is returned when an upload claims a raster type but cannot be decoded.
	ErrInvalidImage = errors.New("image could not be decoded")
)

// Input is a preprocessed upload ready for classification.
type Input struct {
	UserID      string
	ContentType string
	Data        []byte
}

// Features are the cell-nucleus measurements entered on the manual tab.
type Features struct {
	RadiusMean           float64 `json:"radius_mean" binding:"required,gt=0"`
	TextureMean          float64 `json:"texture_mean" binding:"required,gt=0"`
	PerimeterMean        float64 `json:"perimeter_mean" binding:"required,gt=0"`
	AreaMean             float64 `json:"area_mean" binding:"required,gt=0"`
	SmoothnessMean       float64 `json:"smoothness_mean" binding:"required,gt=0,lte=1"`
	CompactnessMean      float64 `json:"compactness_mean" binding:"required,gt=0,lte=1"`
	ConcavityMean        float64 `json:"concavity_mean" binding:"gte=0,lte=1"`
	ConcavePointsMean    float64 `json:"concave_points_mean" binding:"gte=0,lte=1"`
	SymmetryMean         float64 `json:"symmetry_mean" binding:"required,gt=0,lte=1"`
	FractalDimensionMean float64 `json:"fractal_dimension_mean" binding:"required,gt=0,lte=1"`
}

// AsMap returns the features keyed by their wire names.
func (f Features) AsMap() map[string]float64 {
	return map[string]float64{
		"radius_mean":            f.RadiusMean,
		"texture_mean":           f.TextureMean,
		"perimeter_mean":         f.PerimeterMean,
		"area_mean":              f.AreaMean,
		"smoothness_mean":        f.SmoothnessMean,
		"compactness_mean":       f.CompactnessMean,
		"concavity_mean":         f.ConcavityMean,
		"concave_points_mean":    f.ConcavePointsMean,
		"symmetry_mean":          f.SymmetryMean,
		"fractal_dimension_mean": f.FractalDimensionMean,
	}
}

// FeaturesFromMap is the inverse of AsMap. Missing keys read as zero.
func FeaturesFromMap(m map[string]float64) Features {
	return Features{
		RadiusMean:           m["radius_mean"],
		TextureMean:          m["texture_mean"],
		PerimeterMean:        m["perimeter_mean"],
		AreaMean:             m["area_mean"],
		SmoothnessMean:       m["smoothness_mean"],
		CompactnessMean:      m["compactness_mean"],
		ConcavityMean:        m["concavity_mean"],
		ConcavePointsMean:    m["concave_points_mean"],
		SymmetryMean:         m["symmetry_mean"],
		FractalDimensionMean: m["fractal_dimension_mean"],
	}
}

// Prediction is the outcome returned by a classifier.
type Prediction struct {
	Label        string
	Confidence   float32
	ModelVersion string
}

// Classifier exposes the inference operations used by the analysis flow.
type Classifier interface {
	Classify(ctx context.Context, input Input) (*Prediction, error)
	ClassifyFeatures(ctx context.Context, userID string, features Features) (*Prediction, error)
}
