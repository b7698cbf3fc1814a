package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushchain/validator-trust/trustClient/errors"
)

// maxBodySize bounds the validator list document a URL source will read.
const maxBodySize = 16 << 20

// URLSource downloads a validator list over HTTP(S). Transport failures and
// 5xx responses are retried with exponential backoff.
type URLSource struct {
	url        string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	capacity   int
	maxBody    int64
	logger     zerolog.Logger
}

func NewURLSource(rawURL string, opts Options) (*URLSource, error) {
	opts = opts.withDefaults()
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.NewValidationError("url", "invalid source url: "+rawURL)
	}
	return &URLSource{
		url:        u.String(),
		client:     opts.HTTPClient,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		maxBody:    maxBodySize,
		capacity:   opts.ExpectedResults,
		logger:     opts.Logger.With().Str("component", "url_source").Str("url", u.Redacted()).Logger(),
	}, nil
}

func (s *URLSource) Fetch(ctx context.Context) (*Result, error) {
	var res *Result

	op := &errors.RetryOperation{
		Name: "fetch " + s.url,
		Fn: func() error {
			var err error
			res, err = s.fetchOnce(ctx)
			return err
		},
		Config: &errors.RetryConfig{
			MaxAttempts:     s.maxRetries,
			InitialDelay:    s.retryDelay,
			MaxDelay:        30 * s.retryDelay,
			Multiplier:      2.0,
			RetryableErrors: []errors.ErrorCode{errors.ErrCodeNetwork, errors.ErrCodeTimeout},
		},
		OnRetry: func(attempt int, err error) {
			s.logger.Warn().Err(err).Int("attempt", attempt).Msg("validator list download failed, retrying")
		},
	}

	if err := op.Execute(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCancelledError(s.Name(), ctx.Err())
		}
		return nil, err
	}
	return res, nil
}

func (s *URLSource) fetchOnce(ctx context.Context) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, errors.NewValidationError(s.Name(), err.Error())
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, text/plain;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCancelledError(s.Name(), ctx.Err())
		}
		return nil, errors.NewNetworkError(s.Name(), "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.NewNetworkError(s.Name(), fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, errors.NewFetchError(s.Name(), fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBody+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCancelledError(s.Name(), ctx.Err())
		}
		return nil, errors.NewNetworkError(s.Name(), "failed to read body", err)
	}
	if int64(len(body)) > s.maxBody {
		return nil, errors.NewParseError(s.Name(), "validator list exceeds size limit", nil).
			WithContext("limit_bytes", s.maxBody)
	}

	res, err := decode(s.Name(), body, formatFromContentType(resp.Header.Get("Content-Type")), s.capacity)
	if err != nil {
		return nil, err
	}

	if res.Expiration.IsZero() {
		if expires, err := http.ParseTime(resp.Header.Get("Expires")); err == nil {
			res.Expiration = expires
		}
	}
	s.logger.Debug().Int("count", len(res.List)).Msg("downloaded validator list")
	return res, nil
}

func (s *URLSource) Name() string        { return "url " + s.url }
func (s *URLSource) UniqueID() string    { return UniqueIDFor(s.url) }
func (s *URLSource) CreateParam() string { return s.url }
