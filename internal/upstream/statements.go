package upstream

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// Response headers of the parse endpoint.
const (
	HeaderFileID                = "X-File-Id"
	HeaderCategorizationError   = "X-Categorization-Error"
	HeaderCategorizationWarning = "X-Categorization-Warning"
)

// ParsedStatement is the parse endpoint's reply. CSV holds the normalized
// rows for review before import; the rest comes from response headers.
type ParsedStatement struct {
	CSV                   string `json:"csv"`
	FileID                string `json:"fileId,omitempty"`
	CategorizationError   string `json:"categorizationError,omitempty"`
	CategorizationWarning string `json:"categorizationWarning,omitempty"`
}

// ProgressFunc receives download progress in percent, 0 to 100.
type ProgressFunc func(percent int)

// ParseStatement uploads a statement file as multipart form data and reads
// the CSV text as it streams back, reporting progress when the response
// length is known. Only ctx can stop it.
func (c *Client) ParseStatement(ctx context.Context, userID, filename string, file io.Reader, progress ProgressFunc) (ParsedStatement, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(part, file)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/api/statements/parse", nil, userID, pr)
	if err != nil {
		pr.CloseWithError(err)
		return ParsedStatement{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.send(req)
	if err != nil {
		pr.CloseWithError(err)
		return ParsedStatement{}, err
	}
	defer resp.Body.Close()

	var tracker *progressReader
	body := io.Reader(resp.Body)
	if progress != nil {
		tracker = &progressReader{r: resp.Body, total: resp.ContentLength, report: progress, last: -1}
		body = tracker
	}
	csv, err := io.ReadAll(body)
	if err != nil {
		return ParsedStatement{}, fmt.Errorf("read statement parse: %w", err)
	}
	if tracker != nil && tracker.last != 100 {
		progress(100)
	}
	return ParsedStatement{
		CSV:                   string(csv),
		FileID:                resp.Header.Get(HeaderFileID),
		CategorizationError:   resp.Header.Get(HeaderCategorizationError),
		CategorizationWarning: resp.Header.Get(HeaderCategorizationWarning),
	}, nil
}

// progressReader reports percent of total read, once per change.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	report ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 {
		pct := int(p.read * 100 / p.total)
		if pct > 100 {
			pct = 100
		}
		if pct != p.last {
			p.last = pct
			p.report(pct)
		}
	}
	return n, err
}

// StatementMeta describes the source of an imported statement.
type StatementMeta struct {
	FileID   string `json:"fileId,omitempty"`
	Filename string `json:"filename,omitempty"`
	Account  string `json:"account,omitempty"`
}

// ImportRequest is the POST /api/statements/import body.
type ImportRequest struct {
	CSV           string        `json:"csv"`
	StatementMeta StatementMeta `json:"statementMeta"`
}

// ImportResult counts what the import wrote. Rows with unparseable dates
// are skipped and counted, not rejected.
type ImportResult struct {
	Inserted            int `json:"inserted"`
	SkippedInvalidDates int `json:"skippedInvalidDates"`
}

// ImportStatement commits reviewed rows upstream.
func (c *Client) ImportStatement(ctx context.Context, userID string, in ImportRequest) (ImportResult, error) {
	var out ImportResult
	if err := c.postJSON(ctx, "/api/statements/import", userID, in, &out); err != nil {
		return ImportResult{}, err
	}
	return out, nil
}
