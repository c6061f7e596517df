// Package render turns draft markdown into the HTML snapshot stored when a
// post is published.
package render

import (
	"fmt"
	"html"
	"io"
	"regexp"
	"slices"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/debemdeboas/folio/internal/cache"
	"github.com/debemdeboas/folio/internal/config"
	"github.com/debemdeboas/folio/internal/util"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	md_html "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/mmarkdown/mmark/v2/lang"
	"github.com/mmarkdown/mmark/v2/mast"
	"github.com/mmarkdown/mmark/v2/mparser"
	"github.com/mmarkdown/mmark/v2/render/mhtml"
	"github.com/rs/zerolog"
)

var renderLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	renderLogger = l
}

const (
	EngineMmark   = "mmark"
	EngineClassic = "classic"
)

// DefaultCacheSize bounds the number of rendered documents kept in memory.
const DefaultCacheSize = 256

var regexCallout = regexp.MustCompile(`//\s*<<(\d+)>>`)

// Rendered is the output of one markdown document.
type Rendered struct {
	HTML []byte
	// Title is only set by the mmark engine.
	Title *mast.TitleData
}

type Renderer struct {
	engine      string
	syntaxTheme string

	rendered *cache.Cache[string, *Rendered]
	css      *cache.Cache[string, string]
}

func New(engine, syntaxTheme string) (*Renderer, error) {
	switch engine {
	case EngineMmark, EngineClassic:
	case "":
		engine = EngineMmark
	default:
		return nil, fmt.Errorf("unknown markdown renderer %q", engine)
	}
	if syntaxTheme == "" {
		syntaxTheme = "gruvbox"
	}

	return &Renderer{
		engine:      engine,
		syntaxTheme: syntaxTheme,
		rendered:    cache.NewBoundedCache[string, *Rendered](DefaultCacheSize),
		css:         cache.NewCache[string, string](),
	}, nil
}

func FromConfig(cfg config.ContentConfig) (*Renderer, error) {
	return New(cfg.Renderer, cfg.SyntaxTheme)
}

func (r *Renderer) Engine() string { return r.engine }

func (r *Renderer) SyntaxTheme() string { return r.syntaxTheme }

// Render renders md, reusing the output of identical earlier input.
func (r *Renderer) Render(md []byte) *Rendered {
	key := util.ContentHash(md) + ":" + r.syntaxTheme
	out, hit := r.rendered.GetOrSet(key, func() *Rendered {
		return r.render(md)
	})
	renderLogger.Debug().Str("key", key).Bool("hit", hit).Msg("Rendered markdown")
	return out
}

func (r *Renderer) render(md []byte) *Rendered {
	if r.engine == EngineClassic {
		return &Rendered{HTML: r.renderClassic(md)}
	}
	return r.renderMmark(md)
}

// HighlightCode renders code with chroma using CSS classes, falling back to
// the raw code when the lexer or formatter fails.
func HighlightCode(code, language, syntaxTheme string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter().Format(&buf, style(syntaxTheme), iterator); err != nil {
		return code
	}

	res := html.UnescapeString(buf.String())
	return regexCallout.ReplaceAllString(res, "<span class=\"callout\">$1</span>")
}

func formatter() *chromahtml.Formatter {
	return chromahtml.New(
		chromahtml.WithClasses(true),
		chromahtml.TabWidth(4),
		chromahtml.WithLineNumbers(true),
		chromahtml.WrapLongLines(true),
	)
}

func style(name string) *chroma.Style {
	if s := styles.Get(name); s != nil {
		return s
	}
	return styles.Fallback
}

// SyntaxThemes lists the available chroma styles.
func SyntaxThemes() []string {
	names := styles.Names()
	slices.Sort(names)
	return names
}

// SyntaxCSS returns the stylesheet for the renderer's syntax theme.
func (r *Renderer) SyntaxCSS() string {
	css, _ := r.css.GetOrSet(r.syntaxTheme, func() string {
		var buf strings.Builder
		s := style(r.syntaxTheme)

		bg := s.Get(chroma.Background)
		if !bg.Colour.IsSet() {
			// Pick a readable text colour when the theme has none.
			luminance := (0.299*float64(bg.Background.Red()) +
				0.587*float64(bg.Background.Green()) +
				0.114*float64(bg.Background.Blue())) / 255
			if luminance > 0.5 {
				buf.WriteString(".chroma { color: #181818; }\n")
			}
		}

		if err := formatter().WriteCSS(&buf, s); err != nil {
			renderLogger.Error().Err(err).Str("theme", r.syntaxTheme).Msg("Error writing syntax CSS")
		}
		return buf.String()
	})
	return css
}

func (r *Renderer) codeBlockHook(w io.Writer, node ast.Node, entering bool) bool {
	code, ok := node.(*ast.CodeBlock)
	if !ok || !entering {
		return false
	}
	var language string
	if info := code.Info; info != nil {
		language = string(info)
	}
	fmt.Fprintf(w, "<div class=\"highlight\">%s</div>", HighlightCode(string(code.Literal), language, r.syntaxTheme))
	return true
}

func (r *Renderer) renderClassic(md []byte) []byte {
	opts := md_html.RendererOptions{
		Flags:    md_html.CommonFlags | md_html.HrefTargetBlank | md_html.FootnoteReturnLinks,
		Comments: [][]byte{[]byte("//"), []byte("#")},
		RenderNodeHook: func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
			if r.codeBlockHook(w, node, entering) {
				return ast.GoToNext, true
			}
			if callout, ok := node.(*ast.Callout); ok && entering {
				fmt.Fprintf(w, "<span class=\"callout\">%s</span>", callout.ID)
				return ast.GoToNext, true
			}
			return ast.GoToNext, false
		},
	}

	doc := parser.NewWithExtensions(
		parser.Tables | parser.FencedCode | parser.Autolink | parser.Strikethrough | parser.SpaceHeadings |
			parser.HeadingIDs | parser.BackslashLineBreak | parser.SuperSubscript | parser.DefinitionLists |
			parser.MathJax | parser.AutoHeadingIDs | parser.Footnotes | parser.OrderedListStart |
			parser.Attributes | parser.NonBlockingSpace,
	).Parse(markdown.NormalizeNewlines(md))

	return markdown.Render(doc, md_html.NewRenderer(opts))
}

func (r *Renderer) renderMmark(md []byte) *Rendered {
	md = markdown.NormalizeNewlines(md)

	p := parser.NewWithExtensions(mparser.Extensions | parser.NoIntraEmphasis)

	init := mparser.NewInitial("")
	var info *mast.TitleData
	p.Opts = parser.Options{
		ParserHook: func(data []byte) (ast.Node, []byte, int) {
			node, data, consumed := mparser.Hook(data)
			if t, ok := node.(*mast.Title); ok {
				info = t.TitleData
			}
			return node, data, consumed
		},
		ReadIncludeFn: init.ReadInclude,
		Flags:         parser.FlagsNone,
	}

	doc := markdown.Parse(md, p)
	mparser.AddIndex(doc)

	// Documents without a title block still need a language for mhtml.
	if info == nil {
		info = &mast.TitleData{Title: "Untitled", Language: "en"}
	}

	mhtmlOpts := mhtml.RendererOptions{
		Language: lang.New(info.Language),
	}

	opts := md_html.RendererOptions{
		Comments: [][]byte{[]byte("//"), []byte("#")},
		RenderNodeHook: func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
			if r.codeBlockHook(w, node, entering) {
				return ast.GoToNext, true
			}
			return mhtmlOpts.RenderHook(w, node, entering)
		},
		Flags: md_html.CommonFlags | md_html.FootnoteNoHRTag | md_html.FootnoteReturnLinks,
	}

	return &Rendered{
		HTML:  markdown.Render(doc, md_html.NewRenderer(opts)),
		Title: info,
	}
}
