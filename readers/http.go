//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of WDIShape.
//
// WDIShape is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// WDIShape is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with WDIShape. If not, see https://www.gnu.org/licenses/.

package readers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aaronlmathis/wdishape/core"
)

// HTTPReaderError represents an error that occurred while fetching a CSV over HTTP.
type HTTPReaderError struct {
	Op         string // Operation that failed (e.g., "request", "status", "read")
	StatusCode int    // HTTP status code if applicable
	URL        string // URL being accessed when error occurred
	Err        error  // Underlying error
}

func (e *HTTPReaderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("http reader %s [%d] %s: %v", e.Op, e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("http reader %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *HTTPReaderError) Unwrap() error {
	return e.Err
}

// HTTPReaderStats holds statistics about the HTTP fetch.
type HTTPReaderStats struct {
	RequestCount int64         // Total HTTP requests made, retries included
	RetryCount   int64         // Number of retries performed
	RowsRead     int64         // Rows read from the response
	ResponseTime time.Duration // Time until response headers of the successful request
	ReadDuration time.Duration // Total time spent reading rows
}

// HTTPReaderOptions configures the HTTP reader.
type HTTPReaderOptions struct {
	Headers       map[string]string // Additional headers
	BearerToken   string            // Sent as Authorization: Bearer
	Timeout       time.Duration     // Whole-request timeout
	RetryAttempts int               // Retries after the first attempt
	RetryDelay    time.Duration     // Base delay between retries, doubled per attempt
	UserAgent     string            // User agent string
	CSVOptions    []ReaderOptionCSV // Options for the CSV decoder over the body
	CustomClient  *http.Client      // Custom HTTP client
}

// ReaderOptionHTTP is a functional option for HTTPReader.
type ReaderOptionHTTP func(*HTTPReaderOptions)

// WithHTTPHeaders adds request headers.
func WithHTTPHeaders(headers map[string]string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		if opts.Headers == nil {
			opts.Headers = make(map[string]string)
		}
		for k, v := range headers {
			opts.Headers[k] = v
		}
	}
}

// WithHTTPBearerToken authenticates with a bearer token.
func WithHTTPBearerToken(token string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.BearerToken = token
	}
}

// WithHTTPTimeout sets the request timeout.
func WithHTTPTimeout(timeout time.Duration) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.Timeout = timeout
	}
}

// WithHTTPRetry sets the retry policy for transport errors, 429 and 5xx responses.
func WithHTTPRetry(attempts int, delay time.Duration) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.RetryAttempts = attempts
		opts.RetryDelay = delay
	}
}

// WithHTTPUserAgent sets the User-Agent header.
func WithHTTPUserAgent(userAgent string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.UserAgent = userAgent
	}
}

// WithHTTPCSVOptions passes options to the CSV decoder.
func WithHTTPCSVOptions(options ...ReaderOptionCSV) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.CSVOptions = append(opts.CSVOptions, options...)
	}
}

// WithHTTPClient uses a custom client.
func WithHTTPClient(client *http.Client) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.CustomClient = client
	}
}

// HTTPReader streams indicator rows from a CSV served over HTTP(S).
type HTTPReader struct {
	url   string
	csv   *CSVReader
	stats HTTPReaderStats
	opts  HTTPReaderOptions
}

var (
	_ core.RowSource  = (*HTTPReader)(nil)
	_ core.Positioner = (*HTTPReader)(nil)
)

// NewHTTPReader issues the GET and prepares a CSV decoder over the body.
// 404 and 410 responses yield a *core.SourceNotFoundError.
func NewHTTPReader(ctx context.Context, url string, options ...ReaderOptionHTTP) (*HTTPReader, error) {
	opts := HTTPReaderOptions{
		Timeout:       60 * time.Second,
		RetryAttempts: 2,
		RetryDelay:    500 * time.Millisecond,
		UserAgent:     "wdishape/1.0",
	}
	for _, option := range options {
		option(&opts)
	}

	reader := &HTTPReader{url: url, opts: opts}

	body, err := reader.fetch(ctx)
	if err != nil {
		return nil, err
	}

	csvReader, err := NewCSVReader(body, opts.CSVOptions...)
	if err != nil {
		body.Close()
		return nil, &HTTPReaderError{Op: "open_csv", URL: url, Err: err}
	}
	reader.csv = csvReader
	return reader, nil
}

func (h *HTTPReader) client() *http.Client {
	if h.opts.CustomClient != nil {
		return h.opts.CustomClient
	}
	return &http.Client{Timeout: h.opts.Timeout}
}

func (h *HTTPReader) fetch(ctx context.Context) (io.ReadCloser, error) {
	client := h.client()
	delay := h.opts.RetryDelay
	var lastErr error

	for attempt := 0; attempt <= h.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			h.stats.RetryCount++
			select {
			case <-ctx.Done():
				return nil, &HTTPReaderError{Op: "request", URL: h.url, Err: ctx.Err()}
			case <-time.After(delay):
			}
			delay *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
		if err != nil {
			return nil, &HTTPReaderError{Op: "build_request", URL: h.url, Err: err}
		}
		req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.8")
		if h.opts.UserAgent != "" {
			req.Header.Set("User-Agent", h.opts.UserAgent)
		}
		if h.opts.BearerToken != "" {
			req.Header.Set("Authorization", "Bearer "+h.opts.BearerToken)
		}
		for k, v := range h.opts.Headers {
			req.Header.Set(k, v)
		}

		start := time.Now()
		h.stats.RequestCount++
		resp, err := client.Do(req)
		if err != nil {
			lastErr = &HTTPReaderError{Op: "request", URL: h.url, Err: err}
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			h.stats.ResponseTime = time.Since(start)
			return resp.Body, nil
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
			resp.Body.Close()
			return nil, &core.SourceNotFoundError{
				Location: h.url,
				Err:      &HTTPReaderError{Op: "status", StatusCode: resp.StatusCode, URL: h.url, Err: fmt.Errorf("%s", resp.Status)},
			}
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = &HTTPReaderError{Op: "status", StatusCode: resp.StatusCode, URL: h.url, Err: fmt.Errorf("%s", resp.Status)}
		default:
			resp.Body.Close()
			return nil, &HTTPReaderError{Op: "status", StatusCode: resp.StatusCode, URL: h.url, Err: fmt.Errorf("%s", resp.Status)}
		}
	}

	return nil, lastErr
}

// Read returns the next row of the response body.
func (h *HTTPReader) Read(ctx context.Context) (core.Row, error) {
	start := time.Now()
	defer func() { h.stats.ReadDuration += time.Since(start) }()

	row, err := h.csv.Read(ctx)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, &HTTPReaderError{Op: "read_row", URL: h.url, Err: err}
	}
	h.stats.RowsRead++
	return row, nil
}

// Line returns the input line of the last row read.
func (h *HTTPReader) Line() int {
	return h.csv.Line()
}

// Close closes the response body.
func (h *HTTPReader) Close() error {
	return h.csv.Close()
}

// Stats returns the reader statistics.
func (h *HTTPReader) Stats() HTTPReaderStats {
	return h.stats
}
