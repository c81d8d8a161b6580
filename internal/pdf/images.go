package pdf

import (
	"fmt"
	"image"
	_ "image/jpeg" // DCTDecode images
	_ "image/png"  // Flate images are re-encoded as PNG
	"os"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	_ "golang.org/x/image/tiff" // CCITT images
)

// newRelaxedConfig returns the pdfcpu configuration used for every read.
func newRelaxedConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// loadPageImages decodes the raster images of one page keyed by their
// resource names. Images in formats the standard decoders cannot read (JPX,
// JBIG2) are left out and later drawn as placeholders.
func loadPageImages(path string, page int) (images map[string]image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := api.ExtractImagesRaw(f, []string{strconv.Itoa(page)}, newRelaxedConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to extract images: %w", err)
	}

	images = make(map[string]image.Image)
	for _, byObj := range raw {
		for _, img := range byObj {
			if img.PageNr != 0 && img.PageNr != page {
				continue
			}
			decoded, _, err := image.Decode(img)
			if err != nil {
				continue
			}
			images[img.Name] = decoded
		}
	}
	return images, nil
}

// imageFormat maps a PDF image filter to a readable format name.
func imageFormat(filter string) string {
	switch filter {
	case "DCTDecode":
		return "JPEG"
	case "JPXDecode":
		return "JPEG2000"
	case "CCITTFaxDecode":
		return "TIFF/Fax"
	case "JBIG2Decode":
		return "JBIG2"
	case "FlateDecode":
		return "PNG/Deflate"
	case "":
		return "raw"
	default:
		return filter
	}
}
