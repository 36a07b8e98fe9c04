package crawler

import (
	"errors"
	"fmt"
	"net/url"
)

// Extractor turns a parsed listing page into Records.
type Extractor struct {
	layout Layout
	origin *url.URL
}

// NewExtractor builds an Extractor for the given layout.
func NewExtractor(layout Layout) (*Extractor, error) {
	origin, err := layout.OriginURL()
	if err != nil {
		return nil, err
	}
	return &Extractor{layout: layout, origin: origin}, nil
}

// Extract builds one Record per listing container. Malformed entries are
// skipped and reported in the Extraction; only a failure of the container
// query itself returns an error, together with an empty Extraction.
func (e *Extractor) Extract(doc Document) (result Extraction, err error) {
	if doc == nil {
		return Extraction{}, &ExtractionError{Err: errors.New("nil document")}
	}
	defer func() {
		if r := recover(); r != nil {
			result = Extraction{}
			err = &ExtractionError{Err: fmt.Errorf("query panicked: %v", r)}
		}
	}()

	containers, err := doc.FindAll(e.layout.ContainerTag, e.layout.ContainerAttr, e.layout.ContainerValue)
	if err != nil {
		return Extraction{}, &ExtractionError{Err: err}
	}

	result = Extraction{
		Records:    make([]Record, 0, len(containers)),
		Containers: len(containers),
	}
	for _, container := range containers {
		rec, err := e.extractEntry(container)
		if err != nil {
			result.Skipped++
			result.Failures = append(result.Failures, err)
			continue
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

func (e *Extractor) extractEntry(container Element) (Record, error) {
	if container == nil {
		return Record{}, &RecordConstructionError{Field: "container", Err: errors.New("nil element")}
	}
	link, ok := container.FindFirst(e.layout.LinkTag)
	if !ok {
		return Record{}, &RecordConstructionError{Field: "url", Err: ErrMissingLink}
	}
	href, ok := link.Attr("href")
	if !ok {
		return Record{}, &RecordConstructionError{Field: "url", Err: ErrMissingLink}
	}
	priceEl, ok := container.FindFirst(e.layout.PriceTag)
	if !ok {
		return Record{}, &RecordConstructionError{Field: "price", Err: fmt.Errorf("%w: no %s element", ErrInvalidPrice, e.layout.PriceTag)}
	}
	return NewRecord(link.Text(), priceEl.Text(), href, e.origin)
}
