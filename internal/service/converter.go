// Package service contains the business logic layer.
//
// This file implements image re-encoding to PNG, JPEG and single-page PDF.
package service

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/DukeRupert/convertly/internal/domain"
	"github.com/disintegration/imaging"
	"github.com/go-pdf/fpdf"
)

// maxPDFPagePoints is the largest page side PDF readers accept (200 inches).
const maxPDFPagePoints = 14400.0

// =============================================================================
// Interface Definition
// =============================================================================

// ImageConverter re-encodes an image into the requested output kind.
type ImageConverter interface {
	// Convert decodes data and encodes it as kind. Decode and encode
	// failures are returned as codec errors.
	Convert(data io.Reader, kind domain.ConversionKind) (*domain.ConvertedImage, error)
}

// =============================================================================
// Implementation
// =============================================================================

// imagingConverter implements ImageConverter using the imaging and fpdf libraries.
type imagingConverter struct {
	jpegQuality int
}

// NewImageConverter creates an ImageConverter that writes JPEG at the given quality.
func NewImageConverter(jpegQuality int) ImageConverter {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = domain.JPEGQuality
	}
	return &imagingConverter{jpegQuality: jpegQuality}
}

func (c *imagingConverter) Convert(data io.Reader, kind domain.ConversionKind) (*domain.ConvertedImage, error) {
	const op = "converter.convert"

	raw, err := io.ReadAll(data)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to read upload")
	}

	// DecodeConfig only reports the source format; imaging.Decode does the work.
	_, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, domain.Codec(err, op, domain.MsgUnreadableImage)
	}
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, domain.Codec(err, op, domain.MsgUnreadableImage)
	}

	bounds := img.Bounds()
	out := &domain.ConvertedImage{
		Kind:         kind,
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
		SourceFormat: format,
	}

	var buf bytes.Buffer
	switch kind {
	case domain.ConversionPNG:
		err = imaging.Encode(&buf, img, imaging.PNG)
	case domain.ConversionJPEG:
		err = imaging.Encode(&buf, flatten(img), imaging.JPEG, imaging.JPEGQuality(c.jpegQuality))
	case domain.ConversionPDF:
		err = c.writePDF(&buf, flatten(img))
	default:
		return nil, domain.Invalid(op, domain.MsgInvalidConversionType)
	}
	if err != nil {
		return nil, domain.Codec(err, op, domain.MsgConversionFailed)
	}

	out.Data = buf.Bytes()
	return out, nil
}

// flatten composites img onto opaque white, dropping the alpha channel.
func flatten(img image.Image) *image.NRGBA {
	src := imaging.Clone(img)
	bg := imaging.New(src.Bounds().Dx(), src.Bounds().Dy(), color.White)
	return imaging.Overlay(bg, src, image.Pt(0, 0), 1.0)
}

// writePDF embeds img as a DeviceRGB JPEG on a single page the size of the
// image, one pixel per point, scaled down if it exceeds the PDF page limit.
func (c *imagingConverter) writePDF(w io.Writer, img *image.NRGBA) error {
	var jpg bytes.Buffer
	if err := imaging.Encode(&jpg, img, imaging.JPEG, imaging.JPEGQuality(c.jpegQuality)); err != nil {
		return fmt.Errorf("encode page image: %w", err)
	}

	width := float64(img.Bounds().Dx())
	height := float64(img.Bounds().Dy())
	if longest := max(width, height); longest > maxPDFPagePoints {
		scale := maxPDFPagePoints / longest
		width *= scale
		height *= scale
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: width, Ht: height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "JPG"}
	pdf.RegisterImageOptionsReader("page", opts, &jpg)
	pdf.ImageOptions("page", 0, 0, width, height, false, opts, 0, "")

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	return pdf.Output(w)
}
