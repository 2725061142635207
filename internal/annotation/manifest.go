package annotation

import "encoding/json"

// ManifestLabel is one vocabulary entry in the output manifest.
type ManifestLabel struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Manifest is the label_info.json summary written into every output
// archive regardless of which encoder ran.
type Manifest struct {
	LabelFormat    string          `json:"label_format"`
	FeatureType    string          `json:"feature_type"`
	ImageCount     int             `json:"image_count"`
	BoxCount       int             `json:"box_count"`
	OriginalWidth  int             `json:"original_width,omitempty"`
	OriginalHeight int             `json:"original_height,omitempty"`
	NumClasses     int             `json:"num_classes"`
	Labels         []ManifestLabel `json:"labels"`
}

// BuildManifest assembles the manifest for one conversion run. Label ids
// follow the dataset's sorted-order assignment.
func BuildManifest(labelFormat, featureType string, ds *Dataset) Manifest {
	m := Manifest{
		LabelFormat:    labelFormat,
		FeatureType:    featureType,
		ImageCount:     ds.Meta.ImageCount,
		BoxCount:       ds.Meta.BoxCount,
		OriginalWidth:  ds.Meta.OriginalWidth,
		OriginalHeight: ds.Meta.OriginalHeight,
		NumClasses:     len(ds.LabelNames),
	}

	countByName := make(map[string]int, len(ds.Meta.Labels))
	for _, lc := range ds.Meta.Labels {
		countByName[lc.Name] = lc.Count
	}

	for _, name := range ds.LabelNames {
		m.Labels = append(m.Labels, ManifestLabel{
			ID:    ds.LabelToID[name],
			Name:  name,
			Count: countByName[name],
		})
	}
	return m
}

// JSON renders the manifest with two-space indentation.
func (m Manifest) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
