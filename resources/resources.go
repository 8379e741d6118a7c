// Package resources bundles the sample help articles and movie catalogue.
package resources

import (
	"bytes"
	_ "embed"
	"io"
)

var (
	//go:embed help_articles.json
	helpArticles []byte

	//go:embed movies.json
	movies []byte
)

func HelpArticles() io.Reader { return bytes.NewReader(helpArticles) }

func Movies() io.Reader { return bytes.NewReader(movies) }
