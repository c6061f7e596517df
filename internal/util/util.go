// Package util provides content hashing, front matter parsing and naming helpers.
package util

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/gomarkdown/markdown"

	"github.com/mmarkdown/mmark/v2/mast"
)

// FrontMatter is the Mmark title block of a markdown document.
type FrontMatter struct {
	*mast.TitleData

	// Location hints where the author wants the document published.
	Location string `toml:"location"`

	// Consumed is the offset where the body starts in the normalized input.
	Consumed int
	Body     []byte `toml:"-"`
}

func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

func ContentHashString(content string) string {
	return ContentHash([]byte(content))
}

var frontMatterDelimiter = []byte("%%%")

var errFrontMatterFormat = fmt.Errorf("invalid front matter format")

// GetFrontMatter parses the %%%-delimited TOML header at the top of md.
func GetFrontMatter(md []byte) (*FrontMatter, error) {
	md = markdown.NormalizeNewlines(md)
	md = bytes.TrimLeft(md, "\n \t\r")

	d := len(frontMatterDelimiter)
	if len(md) < 2*d {
		return nil, errFrontMatterFormat
	}

	first := bytes.Index(md[:d+1], frontMatterDelimiter)
	if first == -1 {
		return nil, errFrontMatterFormat
	}

	second := bytes.Index(md[first+d:], frontMatterDelimiter)
	if second == -1 {
		return nil, errFrontMatterFormat
	}

	end := second + 2*d + 1
	if end > len(md) {
		return nil, errFrontMatterFormat
	}

	info := &FrontMatter{
		TitleData: &mast.TitleData{},
	}
	if _, err := toml.Decode(string(md[d:end-d-1]), info); err != nil {
		return nil, fmt.Errorf("failed to decode front matter: %w", err)
	}

	if info.Language == "" {
		info.Language = "en"
	}
	info.Consumed = end
	info.Body = bytes.TrimLeft(md[end:], "\n")

	return info, nil
}
