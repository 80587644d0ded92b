package dictionary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/mrlokans/wordsync/internal/apperrors"
	"github.com/mrlokans/wordsync/internal/entities"
)

// HTTPOrigin fetches dictionary documents from {base}/dictionary/.
type HTTPOrigin struct {
	client        *resty.Client
	indexAttempts int
	baseBackoff   time.Duration
	log           zerolog.Logger
}

// HTTPOriginConfig configures an HTTPOrigin.
type HTTPOriginConfig struct {
	BaseURL string
	Timeout time.Duration
	// IndexMaxAttempts bounds retries of the index load on transport errors and 5xx.
	IndexMaxAttempts int
	// BaseBackoff is the first retry delay, doubled per attempt.
	BaseBackoff time.Duration
	Logger      zerolog.Logger
}

// NewHTTPOrigin creates an origin client for the given base URL.
func NewHTTPOrigin(cfg HTTPOriginConfig) *HTTPOrigin {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.IndexMaxAttempts <= 0 {
		cfg.IndexMaxAttempts = 1
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 200 * time.Millisecond
	}

	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "wordsync/1.0").
		SetTimeout(cfg.Timeout)

	return &HTTPOrigin{
		client:        c,
		indexAttempts: cfg.IndexMaxAttempts,
		baseBackoff:   cfg.BaseBackoff,
		log:           cfg.Logger,
	}
}

// FetchIndex loads /dictionary/index.json, retrying transient failures.
func (o *HTTPOrigin) FetchIndex(ctx context.Context) (*entities.DictionaryIndex, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = o.baseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = 5 * time.Second
	exp.Reset()

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(o.indexAttempts-1)), ctx)

	var index entities.DictionaryIndex
	attempt := 0
	op := func() error {
		attempt++
		resp, err := o.client.R().SetContext(ctx).Get("/dictionary/index.json")
		if err != nil {
			o.log.Warn().Err(err).Int("attempt", attempt).Msg("index fetch failed")
			return apperrors.Remote(err)
		}
		if resp.StatusCode() != http.StatusOK {
			classified := apperrors.FromStatus(resp.StatusCode(), resp.String())
			if apperrors.IsIrrecoverable(classified) {
				return backoff.Permanent(classified)
			}
			o.log.Warn().Int("status", resp.StatusCode()).Int("attempt", attempt).Msg("index fetch failed")
			return classified
		}
		if err := json.Unmarshal(resp.Body(), &index); err != nil {
			return backoff.Permanent(fmt.Errorf("decode index: %w", err))
		}
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Err
		}
		return nil, fmt.Errorf("load dictionary index: %w", err)
	}

	if index.TotalWords == 0 {
		index.TotalWords = len(index.Words)
	}
	o.log.Info().Int("total_words", index.TotalWords).Msg("dictionary index loaded")
	return &index, nil
}

// FetchWord loads /dictionary/{word}.json. Any non-2xx status is a miss.
func (o *HTTPOrigin) FetchWord(ctx context.Context, word string) (*entities.WordRecord, error) {
	word = Normalize(word)
	if word == "" {
		return nil, fmt.Errorf("empty word: %w", apperrors.ErrInvalidInput)
	}

	resp, err := o.client.R().
		SetContext(ctx).
		Get("/dictionary/" + url.PathEscape(word) + ".json")
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", word, apperrors.Remote(err))
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, fmt.Errorf("word %q (HTTP %d): %w", word, resp.StatusCode(), apperrors.ErrNotFound)
	}

	var record entities.WordRecord
	if err := json.Unmarshal(resp.Body(), &record); err != nil {
		return nil, fmt.Errorf("decode %q: %w", word, err)
	}
	if record.Word == "" {
		record.Word = word
	}
	return &record, nil
}
