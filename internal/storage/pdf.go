package storage

import (
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFInspector reads page counts from documents small enough to parse in
// memory. Larger documents are skipped.
type PDFInspector struct {
	maxBytes int64
	conf     *model.Configuration
}

func NewPDFInspector(maxBytes int64) *PDFInspector {
	api.DisableConfigDir()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFInspector{maxBytes: maxBytes, conf: conf}
}

// PageCount rewinds rs before returning. It returns 0 with no error for
// documents above the size limit.
func (p *PDFInspector) PageCount(rs io.ReadSeeker, size int64) (int, error) {
	if size <= 0 || size > p.maxBytes {
		return 0, nil
	}

	n, err := api.PageCount(rs, p.conf)
	if _, serr := rs.Seek(0, io.SeekStart); serr != nil && err == nil {
		err = serr
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}
