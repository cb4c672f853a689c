package client

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-authoring/internal/archive"
	"github.com/stemsi/exstem-authoring/internal/upload"
)

// ParserClient calls the archive-parsing service.
type ParserClient struct {
	base
}

// NewParserClient creates a ParserClient for baseURL.
func NewParserClient(baseURL string, timeout time.Duration, log zerolog.Logger) *ParserClient {
	return &ParserClient{base: newBase("parser", baseURL, timeout, log)}
}

type parseHints struct {
	StatementDir        string   `json:"statementDir"`
	StatementExtensions []string `json:"statementExtensions"`
}

// ParseProblem parses the archive already stored for problemID.
func (c *ParserClient) ParseProblem(ctx context.Context, problemID int64, hints archive.Hints) (archive.RawProblem, error) {
	var raw archive.RawProblem
	body := parseHints{StatementDir: hints.StatementDir, StatementExtensions: hints.StatementExts}
	if err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/problems/%d/parse", problemID), body, &raw); err != nil {
		return archive.RawProblem{}, err
	}
	return raw, nil
}

// ParseArchive uploads f as zipFile and parses it.
func (c *ParserClient) ParseArchive(ctx context.Context, f upload.File, hints archive.Hints) (archive.RawProblem, error) {
	var raw archive.RawProblem
	write := func(mw *multipart.Writer) error {
		if err := mw.WriteField("statementDir", hints.StatementDir); err != nil {
			return err
		}
		if err := mw.WriteField("statementExtensions", strings.Join(hints.StatementExts, ",")); err != nil {
			return err
		}
		fw, err := mw.CreateFormFile("zipFile", f.Name)
		if err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		defer rc.Close()
		_, err = io.Copy(fw, rc)
		return err
	}
	if err := c.doMultipart(ctx, http.MethodPost, "/archives/parse", write, &raw); err != nil {
		return archive.RawProblem{}, err
	}
	return raw, nil
}

var _ archive.Parser = (*ParserClient)(nil)
