package layout

import (
	"context"
	"errors"
)

var (
	// ErrServerUnavailable means the layout model could not be reached at
	// startup. Fatal for the ingestion run that needed it.
	ErrServerUnavailable = errors.New("layout model server unavailable")

	// ErrJobTimeout means a submitted page job got no response within the
	// configured wait. The page is lost; the document continues.
	ErrJobTimeout = errors.New("layout job timed out")
)

// Detection is one region found on a page image: a class label, a confidence
// score and a pixel bounding box.
type Detection struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
	X1    int     `json:"x1"`
	Y1    int     `json:"y1"`
	X2    int     `json:"x2"`
	Y2    int     `json:"y2"`
}

// Model is the layout-detection collaborator. The model is expensive to hold,
// so exactly one Model handle is owned by a Server per ingestion run and all
// page workers share it through the job queue.
type Model interface {
	Detect(ctx context.Context, pageImage []byte, lang string) ([]Detection, error)
	Ping(ctx context.Context) error
}
