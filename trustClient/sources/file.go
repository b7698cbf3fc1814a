package sources

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/pushchain/validator-trust/trustClient/errors"
)

// FileSource reads a validator list from the local filesystem on every fetch.
type FileSource struct {
	path     string
	format   format
	capacity int
	logger   zerolog.Logger
}

func NewFileSource(path string, opts Options) (*FileSource, error) {
	if path == "" {
		return nil, errors.NewValidationError("file", "empty file path")
	}
	path = filepath.Clean(path)
	return &FileSource{
		path:     path,
		format:   formatFromPath(path),
		capacity: opts.ExpectedResults,
		logger:   opts.Logger.With().Str("component", "file_source").Str("path", path).Logger(),
	}, nil
}

func (s *FileSource) Fetch(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelledError(s.Name(), err)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.NewFetchError(s.Name(), "failed to read validator list", err)
	}

	res, err := decode(s.Name(), data, s.format, s.capacity)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Int("count", len(res.List)).Msg("read validator list")
	return res, nil
}

func (s *FileSource) Name() string        { return "file " + s.path }
func (s *FileSource) UniqueID() string    { return UniqueIDFor(s.CreateParam()) }
func (s *FileSource) CreateParam() string { return SchemeFile + s.path }
