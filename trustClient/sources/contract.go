package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/pushchain/validator-trust/trustClient/errors"
	"github.com/pushchain/validator-trust/trustClient/validators"
)

// Registry contract ABI for the validator list
const registryABI = `[
	{
		"inputs": [],
		"name": "getValidators",
		"outputs": [
			{"internalType": "bytes[]", "name": "keys", "type": "bytes[]"},
			{"internalType": "string[]", "name": "labels", "type": "string[]"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

const getValidatorsMethod = "getValidators"

// ContractSource reads the validator list from an on-chain registry contract.
type ContractSource struct {
	rpcURL  string
	address common.Address
	caller  ethereum.ContractCaller
	abi     abi.ABI
	logger  zerolog.Logger
}

// NewContractSourceFromParam parses "contract+https://rpc?address=0x..." and
// dials the RPC endpoint.
func NewContractSourceFromParam(param string, opts Options) (*ContractSource, error) {
	rpcURL, address, err := parseContractParam(param)
	if err != nil {
		return nil, err
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, errors.NewNetworkError("contract", "failed to connect to RPC", err)
	}
	return NewContractSource(client, rpcURL, address, opts)
}

// NewContractSource builds a source on top of an existing contract caller.
func NewContractSource(caller ethereum.ContractCaller, rpcURL string, address common.Address, opts Options) (*ContractSource, error) {
	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, errors.NewInternalError("contract", "failed to parse ABI", err)
	}
	return &ContractSource{
		rpcURL:  rpcURL,
		address: address,
		caller:  caller,
		abi:     parsed,
		logger: opts.Logger.With().
			Str("component", "contract_source").
			Str("address", address.Hex()).
			Logger(),
	}, nil
}

func parseContractParam(param string) (string, common.Address, error) {
	u, err := url.Parse(strings.TrimPrefix(param, SchemeContract))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", common.Address{}, errors.NewValidationError("contract", "invalid contract source: "+param)
	}

	address := u.Query().Get("address")
	if !common.IsHexAddress(address) {
		return "", common.Address{}, errors.NewValidationError("contract", "invalid registry address: "+address)
	}

	q := u.Query()
	q.Del("address")
	u.RawQuery = q.Encode()
	return u.String(), common.HexToAddress(address), nil
}

func (s *ContractSource) Fetch(ctx context.Context) (*Result, error) {
	data, err := s.abi.Pack(getValidatorsMethod)
	if err != nil {
		return nil, errors.NewInternalError(s.Name(), "failed to pack method", err)
	}

	result, err := s.caller.CallContract(ctx, ethereum.CallMsg{To: &s.address, Data: data}, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCancelledError(s.Name(), ctx.Err())
		}
		return nil, errors.NewNetworkError(s.Name(), "failed to call contract", err)
	}

	values, err := s.abi.Methods[getValidatorsMethod].Outputs.UnpackValues(result)
	if err != nil {
		return nil, errors.NewParseError(s.Name(), "failed to unpack result", err)
	}
	if len(values) != 2 {
		return nil, errors.NewParseError(s.Name(), fmt.Sprintf("unexpected number of return values: %d", len(values)), nil)
	}

	keys, ok := values[0].([][]byte)
	if !ok {
		return nil, errors.NewParseError(s.Name(), "failed to convert keys to [][]byte", nil)
	}
	labels, ok := values[1].([]string)
	if !ok {
		return nil, errors.NewParseError(s.Name(), "failed to convert labels to []string", nil)
	}
	if len(labels) != len(keys) {
		return nil, errors.NewParseError(s.Name(), fmt.Sprintf("%d keys but %d labels", len(keys), len(labels)), nil)
	}

	list := make([]validators.Record, 0, len(keys))
	for i, key := range keys {
		if len(key) == 0 {
			s.logger.Warn().Int("index", i).Msg("skipping empty validator key")
			continue
		}
		list = append(list, validators.Record{PublicKey: validators.PublicKey(key), Label: labels[i]})
	}
	return &Result{List: list}, nil
}

func (s *ContractSource) Name() string {
	return fmt.Sprintf("contract %s at %s", s.address.Hex(), s.rpcURL)
}

func (s *ContractSource) UniqueID() string { return UniqueIDFor(s.CreateParam()) }

func (s *ContractSource) CreateParam() string {
	u, err := url.Parse(s.rpcURL)
	if err != nil {
		return SchemeContract + s.rpcURL + "?address=" + s.address.Hex()
	}
	q := u.Query()
	q.Set("address", s.address.Hex())
	u.RawQuery = q.Encode()
	return SchemeContract + u.String()
}

// Close releases the RPC connection when the source owns one.
func (s *ContractSource) Close() {
	if c, ok := s.caller.(*ethclient.Client); ok {
		c.Close()
	}
}
