package ticket

import (
	"encoding/json"
	"errors"
	"fmt"
)

// FeatureType selects which job variant a ticket runs.
type FeatureType string

const (
	FeatureConvertOnly      FeatureType = "convert_only"
	FeatureResizeAndConvert FeatureType = "resize_and_convert"
	FeatureCropObjects      FeatureType = "crop_objects"
)

// Supported reports whether a job variant exists for the feature type.
func (f FeatureType) Supported() bool {
	switch f {
	case FeatureConvertOnly, FeatureResizeAndConvert, FeatureCropObjects:
		return true
	}
	return false
}

// Params is the tagged variant replacing the loosely-typed feature_params
// object: each feature type carries only its own fields, decoded once and
// validated at job start.
type Params interface {
	Feature() FeatureType
	Validate() error
}

// ConvertOnlyParams configures the label-only conversion variant.
type ConvertOnlyParams struct {
	OutputPrefix  string `json:"output_prefix"`
	IncludeImages bool   `json:"include_images"`
}

func (ConvertOnlyParams) Feature() FeatureType { return FeatureConvertOnly }

func (ConvertOnlyParams) Validate() error { return nil }

// ResizeParams configures the resize-and-convert variant.
type ResizeParams struct {
	OutputPrefix        string `json:"output_prefix"`
	Width               int    `json:"width"`
	Height              int    `json:"height"`
	PreserveAspectRatio bool   `json:"preserve_aspect_ratio"`
}

func (ResizeParams) Feature() FeatureType { return FeatureResizeAndConvert }

func (p ResizeParams) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return errors.New("target width and height are required for resize_and_convert")
	}
	return nil
}

// CropParams configures the crop-to-objects variant.
type CropParams struct {
	OutputPrefix    string `json:"output_prefix"`
	Padding         int    `json:"padding"`
	PerClassFolders bool   `json:"per_class_folders"`
}

func (CropParams) Feature() FeatureType { return FeatureCropObjects }

func (p CropParams) Validate() error {
	if p.Padding < 0 {
		return errors.New("padding must not be negative")
	}
	return nil
}

// DecodeParams builds the typed params for a feature type from the raw
// feature_params JSON. Absent fields keep their defaults (include_images,
// preserve_aspect_ratio and per_class_folders default to true).
func DecodeParams(feature FeatureType, raw json.RawMessage) (Params, error) {
	switch feature {
	case FeatureConvertOnly:
		p := ConvertOnlyParams{IncludeImages: true}
		if err := decodeInto(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case FeatureResizeAndConvert:
		p := ResizeParams{PreserveAspectRatio: true}
		if err := decodeInto(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case FeatureCropObjects:
		p := CropParams{PerClassFolders: true}
		if err := decodeInto(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported feature_type: %q", feature)
	}
}

func decodeInto(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("feature_params must be valid JSON: %w", err)
	}
	return nil
}
