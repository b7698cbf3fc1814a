package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pushchain/validator-trust/trustClient/api"
	"github.com/pushchain/validator-trust/trustClient/config"
	"github.com/pushchain/validator-trust/trustClient/scheduler"
	"github.com/pushchain/validator-trust/trustClient/store"
	"github.com/pushchain/validator-trust/trustClient/validators"
)

// Output formats
const (
	OutputFormatYAML = "yaml"
	OutputFormatJSON = "json"
)

const (
	flagNode   = "node"
	flagOutput = "output"

	queryTimeout = 30 * time.Second
)

// QueryResponse is the envelope returned by the daemon's HTTP API.
type QueryResponse struct {
	Data        json.RawMessage `json:"data"`
	LastFetched time.Time       `json:"last_fetched"`
}

// ValidatorsOutput represents the output format for the known set
type ValidatorsOutput struct {
	Count       int            `yaml:"count" json:"count"`
	Validators  validators.Set `yaml:"validators" json:"validators"`
	LastFetched time.Time      `yaml:"last_fetched" json:"last_fetched"`
}

// ChosenOutput represents the output format for the chosen set
type ChosenOutput struct {
	Count       int            `yaml:"count" json:"count"`
	Required    int            `yaml:"required" json:"required"`
	Sufficient  bool           `yaml:"sufficient" json:"sufficient"`
	Validators  validators.Set `yaml:"validators" json:"validators"`
	UpdatedAt   time.Time      `yaml:"updated_at" json:"updated_at"`
	LastFetched time.Time      `yaml:"last_fetched" json:"last_fetched"`
}

// SourceOutput is one row of `query sources`.
type SourceOutput struct {
	SourceID            string    `yaml:"source_id" json:"source_id"`
	Name                string    `yaml:"name" json:"name"`
	Status              string    `yaml:"status" json:"status"`
	LastCount           int       `yaml:"last_count" json:"last_count"`
	ConsecutiveFailures int       `yaml:"consecutive_failures" json:"consecutive_failures"`
	NextFetch           time.Time `yaml:"next_fetch" json:"next_fetch"`
	LastSuccess         time.Time `yaml:"last_success,omitempty" json:"last_success,omitempty"`
	LastError           string    `yaml:"last_error,omitempty" json:"last_error,omitempty"`
	LastMessage         string    `yaml:"last_message,omitempty" json:"last_message,omitempty"`
}

// SourcesOutput represents the output format for registered sources
type SourcesOutput struct {
	Sources     []SourceOutput `yaml:"sources" json:"sources"`
	LastFetched time.Time      `yaml:"last_fetched" json:"last_fetched"`
}

// AttemptOutput is one row of `sources attempts`.
type AttemptOutput struct {
	StartedAt  time.Time `yaml:"started_at" json:"started_at"`
	DurationMs int64     `yaml:"duration_ms" json:"duration_ms"`
	Status     string    `yaml:"status" json:"status"`
	Count      int       `yaml:"count" json:"count"`
	Added      int       `yaml:"added" json:"added"`
	Removed    int       `yaml:"removed" json:"removed"`
	Failures   int       `yaml:"failures" json:"failures"`
	Error      string    `yaml:"error,omitempty" json:"error,omitempty"`
}

// AttemptsOutput represents the output format for fetch history
type AttemptsOutput struct {
	SourceID string          `yaml:"source_id" json:"source_id"`
	Attempts []AttemptOutput `yaml:"attempts" json:"attempts"`
}

// queryClient talks to a running daemon's query server.
type queryClient struct {
	baseURL string
	http    *http.Client
}

func newQueryClient(baseURL string) *queryClient {
	return &queryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: queryTimeout},
	}
}

// queryClientFor resolves the daemon address from --node, falling back to
// the query server port in the node config.
func queryClientFor(cmd *cobra.Command) (*queryClient, error) {
	node, _ := cmd.Flags().GetString(flagNode)
	if node != "" {
		return newQueryClient(node), nil
	}

	cfg, err := config.Load(homeDir(cmd))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return newQueryClient(fmt.Sprintf("http://localhost:%d", cfg.QueryServerPort)), nil
}

// do issues the request and decodes the envelope into out when out is non-nil.
func (c *queryClient) do(ctx context.Context, method, path string, body interface{}, out *QueryResponse) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error == "" {
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		return fmt.Errorf("server error: %s", errResp.Error)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *queryClient) Validators(ctx context.Context) (ValidatorsOutput, error) {
	var resp QueryResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/validators", nil, &resp); err != nil {
		return ValidatorsOutput{}, err
	}
	var set validators.Set
	if err := json.Unmarshal(resp.Data, &set); err != nil {
		return ValidatorsOutput{}, fmt.Errorf("failed to unmarshal validators: %w", err)
	}
	return ValidatorsOutput{Count: len(set), Validators: set, LastFetched: resp.LastFetched}, nil
}

func (c *queryClient) Chosen(ctx context.Context) (ChosenOutput, error) {
	var resp QueryResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/validators/chosen", nil, &resp); err != nil {
		return ChosenOutput{}, err
	}
	var chosen struct {
		Validators validators.Set `json:"validators"`
		Sufficient bool           `json:"sufficient"`
		Required   int            `json:"required"`
		UpdatedAt  time.Time      `json:"updated_at"`
	}
	if err := json.Unmarshal(resp.Data, &chosen); err != nil {
		return ChosenOutput{}, fmt.Errorf("failed to unmarshal chosen set: %w", err)
	}
	return ChosenOutput{
		Count:       len(chosen.Validators),
		Required:    chosen.Required,
		Sufficient:  chosen.Sufficient,
		Validators:  chosen.Validators,
		UpdatedAt:   chosen.UpdatedAt,
		LastFetched: resp.LastFetched,
	}, nil
}

func (c *queryClient) Sources(ctx context.Context) (SourcesOutput, error) {
	var resp QueryResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/sources", nil, &resp); err != nil {
		return SourcesOutput{}, err
	}
	var schedules []scheduler.Schedule
	if err := json.Unmarshal(resp.Data, &schedules); err != nil {
		return SourcesOutput{}, fmt.Errorf("failed to unmarshal sources: %w", err)
	}

	out := SourcesOutput{Sources: make([]SourceOutput, 0, len(schedules)), LastFetched: resp.LastFetched}
	for _, s := range schedules {
		out.Sources = append(out.Sources, SourceOutput{
			SourceID:            s.SourceID,
			Name:                s.Name,
			Status:              s.Status.String(),
			LastCount:           s.LastCount,
			ConsecutiveFailures: s.ConsecutiveFailures,
			NextFetch:           s.NextFetch,
			LastSuccess:         s.LastSuccess,
			LastError:           s.LastError,
			LastMessage:         s.LastMessage,
		})
	}
	return out, nil
}

func (c *queryClient) AddSource(ctx context.Context, param string) (string, error) {
	var resp QueryResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/sources", api.AddSourceRequest{Param: param}, &resp); err != nil {
		return "", err
	}
	var accepted api.SourceAccepted
	if err := json.Unmarshal(resp.Data, &accepted); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return accepted.SourceID, nil
}

func (c *queryClient) RemoveSource(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/sources/"+url.PathEscape(id), nil, nil)
}

func (c *queryClient) RefreshSource(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/sources/"+url.PathEscape(id)+"/refresh", nil, nil)
}

func (c *queryClient) Attempts(ctx context.Context, id string, limit int) (AttemptsOutput, error) {
	path := "/api/v1/sources/" + url.PathEscape(id) + "/attempts"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var resp QueryResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return AttemptsOutput{}, err
	}
	var attempts []store.FetchAttempt
	if err := json.Unmarshal(resp.Data, &attempts); err != nil {
		return AttemptsOutput{}, fmt.Errorf("failed to unmarshal attempts: %w", err)
	}

	out := AttemptsOutput{SourceID: id, Attempts: make([]AttemptOutput, 0, len(attempts))}
	for _, a := range attempts {
		out.Attempts = append(out.Attempts, AttemptOutput{
			StartedAt:  a.StartedAt,
			DurationMs: a.DurationMs,
			Status:     a.Status,
			Count:      a.Count,
			Added:      a.Added,
			Removed:    a.Removed,
			Failures:   a.Failures,
			Error:      a.ErrorMsg,
		})
	}
	return out, nil
}

func queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "query",
		Aliases: []string{"q"},
		Short:   "Querying commands",
	}

	cmd.PersistentFlags().String(flagNode, "", "Daemon query server URL (defaults to localhost and the configured port)")
	cmd.PersistentFlags().StringP(flagOutput, "o", OutputFormatYAML, "Output format (yaml|json)")

	cmd.AddCommand(
		queryValidatorsCmd(),
		queryChosenCmd(),
		querySourcesCmd(),
	)
	return cmd
}

func queryValidatorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validators",
		Short: "Query the known validator set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := queryClientFor(cmd)
			if err != nil {
				return err
			}
			out, err := c.Validators(cmd.Context())
			if err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), out, outputFormat(cmd))
		},
	}
}

func queryChosenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chosen",
		Short: "Query the chosen validator set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := queryClientFor(cmd)
			if err != nil {
				return err
			}
			out, err := c.Chosen(cmd.Context())
			if err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), out, outputFormat(cmd))
		},
	}
}

func querySourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "Query registered sources and their fetch state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := queryClientFor(cmd)
			if err != nil {
				return err
			}
			out, err := c.Sources(cmd.Context())
			if err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), out, outputFormat(cmd))
		},
	}
}

func sourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage the sources of a running daemon",
	}

	cmd.PersistentFlags().String(flagNode, "", "Daemon query server URL (defaults to localhost and the configured port)")
	cmd.PersistentFlags().StringP(flagOutput, "o", OutputFormatYAML, "Output format (yaml|json)")

	cmd.AddCommand(
		sourcesAddCmd(),
		sourcesRemoveCmd(),
		sourcesRefreshCmd(),
		sourcesAttemptsCmd(),
	)
	return cmd
}

func sourcesAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <param>",
		Short: "Register a source, e.g. https://host/validators.json or file:///etc/validators.yaml",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := queryClientFor(cmd)
			if err != nil {
				return err
			}
			id, err := c.AddSource(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), api.SourceAccepted{SourceID: id}, outputFormat(cmd))
		},
	}
}

func sourcesRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <source-id>",
		Short: "Unregister a source and drop its validators",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := queryClientFor(cmd)
			if err != nil {
				return err
			}
			if err := c.RemoveSource(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}
}

func sourcesRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <source-id>",
		Short: "Fetch a source now, ignoring its schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := queryClientFor(cmd)
			if err != nil {
				return err
			}
			if err := c.RefreshSource(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refresh queued for %s\n", args[0])
			return nil
		},
	}
}

func sourcesAttemptsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "attempts <source-id>",
		Short: "Show recent fetch attempts of a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := queryClientFor(cmd)
			if err != nil {
				return err
			}
			out, err := c.Attempts(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), out, outputFormat(cmd))
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of attempts to show")
	return cmd
}

func outputFormat(cmd *cobra.Command) string {
	format, err := cmd.Flags().GetString(flagOutput)
	if err != nil || format == "" {
		return OutputFormatYAML
	}
	return format
}

// printOutput prints the output in the specified format
func printOutput(w io.Writer, data interface{}, format string) error {
	switch format {
	case OutputFormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	case OutputFormatYAML:
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		encoder.SetIndent(2)
		return encoder.Encode(data)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
