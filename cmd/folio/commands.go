package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"

	"github.com/debemdeboas/folio/internal/config"
	"github.com/debemdeboas/folio/internal/model"
	"github.com/debemdeboas/folio/internal/repository"
	"github.com/debemdeboas/folio/internal/util"
)

const configHeader = "# folio configuration example\n# Copy this file to config.yaml and customize as needed\n\n"

func writeExampleConfig(args []string, out io.Writer) error {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error generating YAML: %w", err)
	}
	if err := writeOutput(args, "config.example.yaml", configHeader+string(yamlData), out); err != nil {
		return fmt.Errorf(config.ErrWriteConfigContentFmt, err)
	}
	return nil
}

// writeOutput writes content to the file named by args[0], to fallback when
// args is empty, or to out for "-".
func writeOutput(args []string, fallback, content string, out io.Writer) error {
	target := fallback
	if len(args) > 0 {
		target = args[0]
	}
	if target == "-" {
		_, err := io.WriteString(out, content)
		return err
	}
	if err := os.WriteFile(target, []byte(content), 0644); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s\n", target)
	return nil
}

func (a *app) importCommand(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("import", flag.ContinueOnError)
	flags.SetOutput(a.out)
	path := flags.String("path", "", "directory containing .md files")
	publish := flags.Bool("publish", false, "publish every imported post")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return errors.New("import: -path is required")
	}

	files, err := os.ReadDir(*path)
	if err != nil {
		return fmt.Errorf("error reading directory %s: %w", *path, err)
	}

	imported := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".md") {
			continue
		}
		post, err := a.importFile(ctx, filepath.Join(*path, file.Name()), *publish)
		if err != nil {
			a.log.Error().Err(err).Str("file", file.Name()).Msgf(config.ErrImportFileFmt, file.Name(), err)
			continue
		}
		imported++
		a.log.Info().Str("file", file.Name()).Str("post_id", string(post.ID)).Msg("Imported post")
	}

	fmt.Fprintf(a.out, "Imported %d posts\n", imported)
	return nil
}

// importFile creates a post from a markdown file. Front matter supplies the
// title, date and suggested location when present.
func (a *app) importFile(ctx context.Context, path string, publish bool) (*model.Post, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	title, location, body := stem, "", content
	var fm *util.FrontMatter
	if fm, err = util.GetFrontMatter(content); err == nil {
		if fm.Title != "" {
			title = fm.Title
		}
		location = fm.Location
		body = fm.Body
	}

	post, draft, err := a.store.CreatePost(ctx, title, location)
	if err != nil {
		return nil, err
	}
	draft, err = a.store.AppendDraft(ctx, post.ID, title, body, nil)
	if err != nil {
		return nil, err
	}
	if !publish {
		return post, nil
	}

	params := repository.PublishParams{
		PostID:  post.ID,
		DraftID: draft.ID,
	}
	if fm != nil && !fm.Date.IsZero() {
		params.PublishedAt = fm.Date.UTC()
	}
	if group := model.StaticGroup(location); location != "" && slices.Contains(a.store.StaticGroups(), group) {
		params.StaticGroup = &group
	} else {
		url := slug.Make(stem)
		if url == "" {
			url = string(post.ID)
			a.log.Warn().Str("file", path).Str("url", url).Msg("File name has no usable slug, publishing under the post id")
		}
		params.URL = &url
	}
	return a.publishDraft(ctx, params, draft)
}

// publishDraft renders draft into params and publishes it.
func (a *app) publishDraft(ctx context.Context, params repository.PublishParams, draft *model.Draft) (*model.Post, error) {
	rendered := a.renderer.Render(draft.Content)

	params.Title = draft.Title
	if rendered.Title != nil && rendered.Title.Title != "" && rendered.Title.Title != "Untitled" {
		params.Title = rendered.Title.Title
	}
	params.Content = rendered.HTML
	if params.PublishedAt.IsZero() {
		params.PublishedAt = a.store.Now()
	}
	return a.store.PublishPost(ctx, params)
}

func (a *app) publishCommand(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("publish", flag.ContinueOnError)
	flags.SetOutput(a.out)
	id := flags.String("id", "", "post id")
	url := flags.String("url", "", "publish to this url")
	index := flags.Bool("index", false, "publish as the index post")
	group := flags.String("group", "", "publish into this static group")
	after := flags.String("after", "", "place after this page of the group")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("publish: -id is required")
	}

	postID := model.PostID(*id)
	post, err := a.store.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	draft, err := a.store.GetNewestDraft(ctx, postID)
	if err != nil {
		return err
	}

	images, err := publishedImages(ctx, a.store, postID)
	if err != nil {
		return err
	}

	params := repository.PublishParams{PostID: postID, DraftID: draft.ID, PublishedImages: images}
	if post.PublishedAt != nil {
		now := a.store.Now()
		params.PublishedAt = *post.PublishedAt
		params.RepublishedAt = &now
	}
	switch {
	case *index:
		params.URL = new(string)
	case *url != "":
		params.URL = url
	}
	if *group != "" {
		g := model.StaticGroup(*group)
		params.StaticGroup = &g
		if *after != "" {
			p := model.PostID(*after)
			params.AfterPageID = &p
		}
	}

	published, err := a.publishDraft(ctx, params, draft)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Published %s (%s)\n", published.ID, placement(published))
	return nil
}

// publishedImages lists the images a previous publish made public so the
// command keeps them online.
func publishedImages(ctx context.Context, store *repository.PostStore, id model.PostID) ([]model.PublishedImage, error) {
	images, err := store.GetImagesForPost(ctx, id)
	if err != nil {
		return nil, err
	}
	var published []model.PublishedImage
	for _, img := range images {
		if img.Published {
			published = append(published, model.PublishedImage{Filename: img.Filename, ImageID: img.ID})
		}
	}
	return published, nil
}

func (a *app) unpublishCommand(ctx context.Context, args []string) error {
	id, err := parseID("unpublish", args, a.out)
	if err != nil {
		return err
	}
	if err := a.store.UnPublishPost(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Unpublished %s\n", id)
	return nil
}

func (a *app) deleteCommand(ctx context.Context, args []string) error {
	id, err := parseID("delete", args, a.out)
	if err != nil {
		return err
	}
	if err := a.store.DeletePost(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s\n", id)
	return nil
}

func parseID(name string, args []string, out io.Writer) (model.PostID, error) {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(out)
	id := flags.String("id", "", "post id")
	if err := flags.Parse(args); err != nil {
		return "", err
	}
	if *id == "" {
		return "", fmt.Errorf("%s: -id is required", name)
	}
	return model.PostID(*id), nil
}

func placement(p *model.Post) string {
	switch {
	case p.IsIndex():
		return "index"
	case p.URL != nil:
		return "/" + *p.URL
	case p.StaticGroup != nil:
		return string(*p.StaticGroup)
	}
	return "unpublished"
}

var (
	headingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	itemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func (a *app) pagesCommand(ctx context.Context) error {
	pages, err := a.store.GetAllStaticPages(ctx)
	if err != nil {
		return err
	}
	for _, group := range a.store.StaticGroups() {
		fmt.Fprintln(a.out, headingStyle.Render(string(group)))
		if len(pages[group]) == 0 {
			fmt.Fprintln(a.out, mutedStyle.Render("  (empty)"))
		}
		for i, p := range pages[group] {
			fmt.Fprintf(a.out, "  %d. %s %s\n", i+1, itemStyle.Render(p.Title), mutedStyle.Render(string(p.ID)))
		}
	}

	total, err := a.store.CountPublishedPosts(ctx)
	if err != nil {
		return err
	}
	posts, err := a.store.GetPublishedPosts(ctx, 0, a.cfg.Content.PostsPerPage)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, headingStyle.Render(fmt.Sprintf("posts (%d)", total)))
	for _, p := range posts {
		fmt.Fprintf(a.out, "  %s %s %s\n",
			mutedStyle.Render(p.PublishedAt.Format("2006-01-02")),
			itemStyle.Render(p.Title),
			mutedStyle.Render(placement(&p)))
	}
	return nil
}
