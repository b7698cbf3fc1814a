package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/pushchain/validator-trust/trustClient/errors"
	"github.com/pushchain/validator-trust/trustClient/validators"
)

// StaticSource serves a fixed list, typically validators pinned in config.
type StaticSource struct {
	list  []validators.Record
	param string
}

func NewStaticSource(list []validators.Record) *StaticSource {
	parts := make([]string, 0, len(list))
	for _, r := range list {
		if r.Label == "" {
			parts = append(parts, r.PublicKey.String())
			continue
		}
		parts = append(parts, r.PublicKey.String()+"="+r.Label)
	}
	return &StaticSource{
		list:  append([]validators.Record(nil), list...),
		param: SchemeStatic + strings.Join(parts, ","),
	}
}

// NewStaticSourceFromParam parses "static:0xab=label,0xcd".
func NewStaticSourceFromParam(param string) (*StaticSource, error) {
	body := strings.TrimPrefix(param, SchemeStatic)
	var list []validators.Record
	for _, entry := range strings.Split(body, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		keyStr, label, _ := strings.Cut(entry, "=")
		key, err := validators.ParsePublicKey(keyStr)
		if err != nil {
			return nil, errors.NewParseError("static", "invalid static entry", err).WithContext("entry", entry)
		}
		list = append(list, validators.Record{PublicKey: key, Label: strings.TrimSpace(label)})
	}
	return &StaticSource{list: list, param: param}, nil
}

func (s *StaticSource) Fetch(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelledError(s.Name(), err)
	}
	return &Result{List: append([]validators.Record(nil), s.list...)}, nil
}

func (s *StaticSource) Name() string {
	return fmt.Sprintf("static (%d validators)", len(s.list))
}

func (s *StaticSource) UniqueID() string    { return UniqueIDFor(s.param) }
func (s *StaticSource) CreateParam() string { return s.param }
