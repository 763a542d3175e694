// Package onepage renders a continuously scrollable web page as a single PDF
// page of unconstrained height.
//
// Chrome paginates printed output at a fixed paper size. onepage treats the
// printer as an oracle that, given a paper height, reports how many pages the
// document needs, and searches for the smallest height that yields exactly one.
//
// # Search
//
// [FindSinglePageHeight] works with any [Oracle]:
//
//	res, err := onepage.FindSinglePageHeight(ctx, oracle, 11, 17)
//	res.Height() // smallest confirmed single-page height
//	res.Probes() // every render, in order
//
// A render at height h that comes out as p pages brackets the answer in
// [(p-k)h, ph] for a small slack k ([WithSlack], default 3). The bracket is
// bisected; if its top turns out to be too short, the search expands again
// from there. [WithMaxProbes] bounds the number of renders.
//
// Failures carry an [ErrorKind]:
//
//	switch onepage.KindOf(err) {
//	case onepage.KindInvalidInput:      // bad width or height, nothing rendered
//	case onepage.KindRenderUnavailable: // the renderer failed
//	case onepage.KindNotConverged:      // probe budget or height ceiling exhausted
//	case onepage.KindTimedOut:          // ctx ended
//	}
//
// # Chrome
//
// A [Browser] owns a headless Chrome process; a [Session] is one of its tabs
// and implements Oracle:
//
//	b, err := onepage.NewBrowser(onepage.WithNoSandbox())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close()
//
//	s, err := b.NewSession(ctx)
//	err = s.SetViewport(ctx, onepage.DefaultViewport)
//	err = s.Navigate(ctx, "https://example.com/long-page")
//	res, err := s.FindSinglePageHeight(ctx, 11, 17)
//
// Use [PageConfig] to control margins, scale and backgrounds:
//
//	b, err := onepage.NewBrowser(onepage.WithPageConfig(onepage.PageConfig{
//	    Margin: onepage.UniformMargin(0.5),
//	}))
//
// A [Result] gives flexible access to the generated PDF bytes:
//
//	res.Bytes()                       // []byte
//	res.Base64()                      // base64 string (RFC 4648)
//	res.Reader()                      // *bytes.Reader
//	res.WriteTo(w)                    // io.WriterTo
//	res.WriteToFile("out.pdf", 0o644) // write to disk
//
// Chrome or Chromium must be available in PATH, or use [WithAutoDownload]:
//
//	b, err := onepage.NewBrowser(onepage.WithAutoDownload())
package onepage
