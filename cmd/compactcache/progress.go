package main

import (
	"github.com/eak1mov/go-compactcache/bundle/spec"
	"github.com/schollz/progressbar/v3"
)

// barProgress reports cache build progress on a progress bar, one step per bundle.
type barProgress struct {
	bar *progressbar.ProgressBar
}

func newBarProgress() *barProgress {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("bundles"),
		progressbar.OptionShowIts(),
		progressbar.OptionShowCount(),
	)
	return &barProgress{bar: bar}
}

func (p *barProgress) Planned(bundles int) {
	p.bar.ChangeMax(bundles)
}

func (p *barProgress) Written(spec.Key, int) {
	p.bar.Add(1)
}

func (p *barProgress) Finish() {
	p.bar.Finish()
}
