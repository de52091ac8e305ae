package extract

import (
	"context"

	"github.com/otiai10/gosseract/v2"
)

// TesseractOCR runs the local tesseract engine on cropped region images.
// gosseract clients are not safe for concurrent use, so one client is created
// per call; the page worker bound keeps that cheap.
type TesseractOCR struct{}

func (TesseractOCR) Text(ctx context.Context, image []byte, lang string) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if lang != "" {
		if err := client.SetLanguage(lang); err != nil {
			return "", err
		}
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", err
	}
	return client.Text()
}
