package ticket

import (
	"encoding/json"
	"testing"
)

func TestDecodeParamsDefaults(t *testing.T) {
	p, err := DecodeParams(FeatureConvertOnly, nil)
	if err != nil {
		t.Fatalf("DecodeParams: %v", err)
	}
	if co := p.(ConvertOnlyParams); !co.IncludeImages {
		t.Error("include_images should default to true")
	}

	p, err = DecodeParams(FeatureResizeAndConvert, json.RawMessage(`{"width":320,"height":240}`))
	if err != nil {
		t.Fatalf("DecodeParams: %v", err)
	}
	if rp := p.(ResizeParams); !rp.PreserveAspectRatio {
		t.Error("preserve_aspect_ratio should default to true")
	}

	p, err = DecodeParams(FeatureCropObjects, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("DecodeParams: %v", err)
	}
	if cp := p.(CropParams); !cp.PerClassFolders {
		t.Error("per_class_folders should default to true")
	}
}

func TestDecodeParamsOverrides(t *testing.T) {
	p, err := DecodeParams(FeatureConvertOnly, json.RawMessage(`{"output_prefix":"run1","include_images":false}`))
	if err != nil {
		t.Fatalf("DecodeParams: %v", err)
	}
	co := p.(ConvertOnlyParams)
	if co.OutputPrefix != "run1" || co.IncludeImages {
		t.Errorf("params = %+v", co)
	}
}

func TestDecodeParamsErrors(t *testing.T) {
	if _, err := DecodeParams("mystery", nil); err == nil {
		t.Error("unknown feature type should fail")
	}
	if _, err := DecodeParams(FeatureCropObjects, json.RawMessage(`{broken`)); err == nil {
		t.Error("malformed JSON should fail")
	}
}

func TestParamsValidate(t *testing.T) {
	if err := (ResizeParams{Width: 320, Height: 240}).Validate(); err != nil {
		t.Errorf("valid resize params rejected: %v", err)
	}
	if err := (ResizeParams{Width: 320}).Validate(); err == nil {
		t.Error("missing height should fail validation")
	}
	if err := (ResizeParams{Width: -1, Height: 240}).Validate(); err == nil {
		t.Error("negative width should fail validation")
	}
	if err := (CropParams{Padding: -1}).Validate(); err == nil {
		t.Error("negative padding should fail validation")
	}
	if err := (CropParams{Padding: 0}).Validate(); err != nil {
		t.Errorf("zero padding rejected: %v", err)
	}
}

func TestFeatureTypeSupported(t *testing.T) {
	for _, f := range []FeatureType{FeatureConvertOnly, FeatureResizeAndConvert, FeatureCropObjects} {
		if !f.Supported() {
			t.Errorf("%s should be supported", f)
		}
	}
	if FeatureType("upscale").Supported() {
		t.Error("unknown feature type reported as supported")
	}
}
