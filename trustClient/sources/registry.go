package sources

import (
	"strings"

	"github.com/pushchain/validator-trust/trustClient/errors"
)

const (
	SchemeStatic   = "static:"
	SchemeFile     = "file://"
	SchemeHTTP     = "http://"
	SchemeHTTPS    = "https://"
	SchemeContract = "contract+"
)

// New reconstructs a source from its create param.
//
//	static:<key>[=<label>],...
//	file:///path/to/list.{yaml,yml,json,txt}
//	http(s)://host/path
//	contract+http(s)://rpc-host?address=0x...
func New(param string, opts Options) (Source, error) {
	param = strings.TrimSpace(param)
	opts = opts.withDefaults()

	switch {
	case strings.HasPrefix(param, SchemeStatic):
		return NewStaticSourceFromParam(param)
	case strings.HasPrefix(param, SchemeFile):
		return NewFileSource(strings.TrimPrefix(param, SchemeFile), opts)
	case strings.HasPrefix(param, SchemeContract):
		return NewContractSourceFromParam(param, opts)
	case strings.HasPrefix(param, SchemeHTTP), strings.HasPrefix(param, SchemeHTTPS):
		return NewURLSource(param, opts)
	case param == "":
		return nil, errors.NewValidationError("sources", "empty source param")
	default:
		return nil, errors.NewValidationError("sources", "unsupported source param: "+param)
	}
}
