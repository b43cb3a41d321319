package render

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// DisabledEngine rejects every render. Wired when Chrome is turned off in
// configuration so the rest of the wizard keeps working.
type DisabledEngine struct{}

func (DisabledEngine) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	return nil, fmt.Errorf("pdf engine disabled in configuration")
}

// ChromeEngine drives headless Chrome for HTML to PDF conversion. Each
// render spins up a fresh browser context so a wedged tab cannot poison
// later renders.
type ChromeEngine struct {
	logger arbor.ILogger
}

func NewChromeEngine(logger arbor.ILogger) *ChromeEngine {
	return &ChromeEngine{logger: logger}
}

// RenderPDF loads html into a blank tab and prints it. The page declares
// its own A4 size, so CSS page geometry wins over the print defaults.
func (e *ChromeEngine) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("font-render-hinting", "none"),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	var pdf []byte
	err := chromedp.Run(tabCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = data
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome print: %w", err)
	}

	e.logger.Debug().Int("pdf_size", len(pdf)).Msg("Chrome render complete")
	return pdf, nil
}
