package convert

import (
	"archive/zip"
	"fmt"
	"image"
	"io"
	"path"
	"strings"

	"github.com/sirupsen/logrus"

	"go-dataset-converter/internal/annotation"
	"go-dataset-converter/internal/ticket"
	"go-dataset-converter/internal/transform"
)

const (
	manifestFileName = "label_info.json"
	cropReadmeName   = "labels/README.txt"
	cropReadmeText   = "No labels are generated in crop_objects mode.\n"
)

// jobContext carries the open archive pair and parsed dataset one variant
// operates on.
type jobContext struct {
	in      *zip.Reader
	out     *zip.Writer
	index   zipIndex
	dataset *annotation.Dataset
	log     *logrus.Entry
}

// A jobVariant is one of the three conversion strategies selected by the
// ticket's feature type.
type jobVariant interface {
	Name() string
	Run(jc *jobContext) error
}

// eachImage iterates the dataset in declaration order, resolving each
// annotated name to an archive entry. Unresolvable images are logged with
// the closest candidate entry and skipped; this is the only tolerated
// partial failure, every other error aborts the job.
func (jc *jobContext) eachImage(jobName string, fn func(info annotation.ImageInfo, member, base, ext string) error) error {
	for _, name := range jc.dataset.Names {
		info := jc.dataset.Images[name]

		member, ok := jc.index.resolve(name)
		if !ok {
			fields := logrus.Fields{"job": jobName, "image": name}
			if suggestion := jc.index.nearest(name); suggestion != "" {
				fields["closest_entry"] = suggestion
			}
			jc.log.WithFields(fields).Warn("No archive entry found for annotated image, skipping")
			continue
		}

		origBase := path.Base(member)
		ext := path.Ext(origBase)
		base := strings.TrimSuffix(origBase, ext)

		if err := fn(info, member, base, ext); err != nil {
			return err
		}
	}
	return nil
}

// convertOnlyJob encodes labels in the target format and optionally copies
// the original image bytes unchanged.
type convertOnlyJob struct {
	target annotation.TargetFormat
	params ticket.ConvertOnlyParams
}

func (j *convertOnlyJob) Name() string { return string(ticket.FeatureConvertOnly) }

func (j *convertOnlyJob) Run(jc *jobContext) error {
	prefix := strings.TrimSpace(j.params.OutputPrefix)

	err := jc.eachImage(j.Name(), func(info annotation.ImageInfo, member, base, ext string) error {
		outBase := outputBase(prefix, base)

		enc, err := annotation.Encode(j.target, outBase+ext, info.Boxes, info.Width, info.Height, jc.dataset.LabelToID)
		if err != nil {
			return err
		}
		if err := writeEntry(jc.out, "labels/"+outBase+enc.Ext, []byte(enc.Content)); err != nil {
			return err
		}

		if j.params.IncludeImages {
			if err := copyEntry(jc.in, jc.out, member, "images/"+outBase+ext); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return writeManifest(jc, string(j.target), ticket.FeatureConvertOnly)
}

// resizeJob resizes every image to the target canvas and encodes labels
// against the transformed geometry.
type resizeJob struct {
	target annotation.TargetFormat
	params ticket.ResizeParams
}

func (j *resizeJob) Name() string { return string(ticket.FeatureResizeAndConvert) }

func (j *resizeJob) Run(jc *jobContext) error {
	if err := j.params.Validate(); err != nil {
		return err
	}
	prefix := strings.TrimSpace(j.params.OutputPrefix)

	err := jc.eachImage(j.Name(), func(info annotation.ImageInfo, member, base, ext string) error {
		img, err := decodeMember(jc.in, member)
		if err != nil {
			return err
		}

		var resized image.Image
		var boxes []annotation.BoundingBox
		if j.params.PreserveAspectRatio && info.Width > 0 && info.Height > 0 {
			resized, boxes = transform.Letterbox(img, info.Width, info.Height, j.params.Width, j.params.Height, info.Boxes)
		} else {
			resized, boxes = transform.Stretch(img, info.Width, info.Height, j.params.Width, j.params.Height, info.Boxes)
		}

		outBase := outputBase(prefix, base)

		w, err := jc.out.Create("images/" + outBase + ext)
		if err != nil {
			return err
		}
		if err := transform.Encode(w, resized, ext); err != nil {
			return fmt.Errorf("encoding %s: %w", outBase+ext, err)
		}

		enc, err := annotation.Encode(j.target, outBase+ext, boxes, j.params.Width, j.params.Height, jc.dataset.LabelToID)
		if err != nil {
			return err
		}
		return writeEntry(jc.out, "labels/"+outBase+enc.Ext, []byte(enc.Content))
	})
	if err != nil {
		return err
	}

	return writeManifest(jc, string(j.target), ticket.FeatureResizeAndConvert)
}

// cropJob cuts one padded crop per box. No label files are produced; a
// README note explains this in place of the labels directory.
type cropJob struct {
	params ticket.CropParams
}

func (j *cropJob) Name() string { return string(ticket.FeatureCropObjects) }

func (j *cropJob) Run(jc *jobContext) error {
	prefix := strings.TrimSpace(j.params.OutputPrefix)
	padding := j.params.Padding
	if padding < 0 {
		padding = 0
	}

	err := jc.eachImage(j.Name(), func(info annotation.ImageInfo, member, base, ext string) error {
		if len(info.Boxes) == 0 {
			return nil
		}
		img, err := decodeMember(jc.in, member)
		if err != nil {
			return err
		}

		for idx, b := range info.Boxes {
			cropped := transform.Crop(img, b, padding, info.Width, info.Height)

			outBase := fmt.Sprintf("%s_%04d", outputBase(prefix, base), idx)
			subdir := "images"
			if j.params.PerClassFolders {
				subdir = "images/" + b.Label
			}

			w, err := jc.out.Create(subdir + "/" + outBase + ext)
			if err != nil {
				return err
			}
			if err := transform.Encode(w, cropped, ext); err != nil {
				return fmt.Errorf("encoding crop %s: %w", outBase+ext, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := writeEntry(jc.out, cropReadmeName, []byte(cropReadmeText)); err != nil {
		return err
	}
	return writeManifest(jc, "none", ticket.FeatureCropObjects)
}

func outputBase(prefix, base string) string {
	if prefix == "" {
		return base
	}
	return prefix + "_" + base
}

func writeEntry(out *zip.Writer, name string, data []byte) error {
	w, err := out.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func openMember(in *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range in.File {
		if f.Name == name {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("archive entry %q disappeared", name)
}

func copyEntry(in *zip.Reader, out *zip.Writer, member, name string) error {
	rc, err := openMember(in, member)
	if err != nil {
		return err
	}
	defer rc.Close()

	w, err := out.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, rc)
	return err
}

func decodeMember(in *zip.Reader, member string) (image.Image, error) {
	rc, err := openMember(in, member)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	img, err := transform.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", member, err)
	}
	return img, nil
}

func writeManifest(jc *jobContext, labelFormat string, feature ticket.FeatureType) error {
	manifest := annotation.BuildManifest(labelFormat, string(feature), jc.dataset)
	data, err := manifest.JSON()
	if err != nil {
		return err
	}
	return writeEntry(jc.out, manifestFileName, data)
}
