package types

// PresentationType is the client rendering shape for matched stamp records.
type PresentationType string

const (
	PresentationCard     PresentationType = "card"
	PresentationCarousel PresentationType = "carousel"
)

// CarouselMaxItems caps multi-item presentations.
const CarouselMaxItems = 5

// Presentation is either a single-item card or a multi-item carousel,
// derived deterministically from validated tool-call records.
type Presentation struct {
	Type  PresentationType `json:"type"`
	Items []StampRecord    `json:"items"`
}

// NewPresentation builds a presentation from validated records. Records must
// already have passed Identified(); ordering is preserved (no re-ranking).
// Returns nil when records is empty: a presentation is never fabricated.
func NewPresentation(records []StampRecord) *Presentation {
	if len(records) == 0 {
		return nil
	}
	if len(records) == 1 {
		return &Presentation{Type: PresentationCard, Items: records[:1]}
	}
	if len(records) > CarouselMaxItems {
		records = records[:CarouselMaxItems]
	}
	return &Presentation{Type: PresentationCarousel, Items: records}
}
