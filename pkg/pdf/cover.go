package pdf

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

const (
	coverDPI             = 100
	instanceCheckoutWait = 30 * time.Second
)

// CoverRenderer rasterizes the first page of a PDF to use as its cover.
// The PDFium runtime is started on first use and shared by all renders.
type CoverRenderer struct {
	mu   sync.Mutex
	pool pdfium.Pool
}

func NewCoverRenderer() *CoverRenderer {
	return &CoverRenderer{}
}

func (r *CoverRenderer) instance() (pdfium.Pdfium, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pool == nil {
		pool, err := webassembly.Init(webassembly.Config{
			MinIdle:  1,
			MaxIdle:  1,
			MaxTotal: 2,
		})
		if err != nil {
			return nil, errors.WithStack(err)
		}
		r.pool = pool
	}

	instance, err := r.pool.GetInstance(instanceCheckoutWait)
	return instance, errors.WithStack(err)
}

// RenderFirstPage returns page 1 of the PDF at path as an image. The result
// is a copy that stays valid after the PDFium document is closed.
func (r *CoverRenderer) RenderFirstPage(ctx context.Context, path string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	instance, err := r.instance()
	if err != nil {
		return nil, err
	}
	defer instance.Close()

	doc, err := instance.OpenDocument(&requests.OpenDocument{FilePath: &path})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document}) //nolint:errcheck

	render, err := instance.RenderPageInDPI(&requests.RenderPageInDPI{
		DPI: coverDPI,
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: doc.Document,
				Index:    0,
			},
		},
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer render.Cleanup()

	src := render.Result.Image
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst, nil
}

// Close shuts the PDFium runtime down if it was started.
func (r *CoverRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pool == nil {
		return nil
	}
	err := r.pool.Close()
	r.pool = nil
	return errors.WithStack(err)
}
