package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
)

func handleUpload(ctx context.Context, args Args, s schemas.BrowserSession) (string, error) {
	idx, filenames := args.Int("index"), args.Strings("filenames")
	if len(filenames) == 0 {
		return "", schemas.NewError(schemas.CodeValidation, "filenames must name at least one file")
	}
	el, err := s.ElementByIndex(idx)
	if err != nil {
		return "", err
	}

	paths := make([]string, 0, len(filenames))
	for _, name := range filenames {
		p, err := filepath.Abs(filepath.Join(s.UploadsDir(), filepath.Base(name)))
		if err != nil {
			return "", schemas.WrapError(schemas.CodeEnvironment, err, "resolving %s", name)
		}
		if _, err := os.Stat(p); err != nil {
			return "", schemas.NewError(schemas.CodeNotFound, "file %s does not exist in the uploads directory", name)
		}
		paths = append(paths, p)
	}

	if err := s.UploadFiles(ctx, el.Locator, paths); err != nil {
		return "", err
	}
	return fmt.Sprintf("Uploaded %s to element at label %d", strings.Join(filenames, ", "), idx), nil
}

func downloadHandler(client *http.Client) Handler {
	return func(ctx context.Context, args Args, s schemas.BrowserSession) (string, error) {
		url, filename := args.String("url"), args.String("filename")
		name := filepath.Base(filename)
		if name == "." || name == string(filepath.Separator) || name == "" {
			return "", schemas.NewError(schemas.CodeValidation, "filename %q is not a valid file name", filename)
		}

		dir := s.DownloadsDir()
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", schemas.WrapError(schemas.CodeEnvironment, err, "creating downloads directory")
		}
		dest := filepath.Join(dir, name)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", schemas.WrapError(schemas.CodeValidation, err, "invalid url %q", url)
		}
		resp, err := client.Do(req)
		if err != nil {
			return "", schemas.WrapError(schemas.CodeEnvironment, err, "fetching %s", url)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= http.StatusBadRequest {
			return "", schemas.NewError(schemas.CodeEnvironment, "fetching %s: unexpected status %s", url, resp.Status)
		}

		f, err := os.Create(dest)
		if err != nil {
			return "", schemas.WrapError(schemas.CodeEnvironment, err, "creating %s", dest)
		}
		if _, err := io.Copy(f, resp.Body); err != nil {
			f.Close()
			os.Remove(dest)
			return "", schemas.WrapError(schemas.CodeEnvironment, err, "writing %s", dest)
		}
		if err := f.Close(); err != nil {
			return "", schemas.WrapError(schemas.CodeEnvironment, err, "closing %s", dest)
		}
		return fmt.Sprintf("Downloaded %s from %s and saved it to %s", name, url, dest), nil
	}
}

// handleScrape returns the main content of the current page. Navigation,
// headers and footers are dropped and links point at absolute URLs.
func handleScrape(ctx context.Context, args Args, s schemas.BrowserSession) (string, error) {
	page, err := s.PageHTML(ctx)
	if err != nil {
		return "", err
	}
	var pageURL string
	if tab, err := s.CurrentTab(ctx); err == nil {
		pageURL = tab.URL
	}

	var content string
	if args.String("format") == "text" {
		content, err = PageText(page, pageURL)
	} else {
		content, err = PageMarkdown(page, pageURL)
	}
	if err != nil {
		return "", schemas.WrapError(schemas.CodeEnvironment, err, "converting page content")
	}
	return fmt.Sprintf("Scraped the contents of the entire webpage:\n%s", content), nil
}
