package powerbi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xelth-com/argoxlabels/internal/apperr"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Config holds endpoint settings for the identity provider and the Power BI API
type Config struct {
	AuthURL string // e.g. https://login.microsoftonline.com
	APIURL  string // e.g. https://api.powerbi.com/v1.0/myorg
	Timeout time.Duration
}

// Credentials identifies the service principal
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Scope        string
}

// Dataset addresses the table to query
type Dataset struct {
	GroupID   string
	DatasetID string
	Table     string
}

// Row is one raw result row keyed by column name
type Row map[string]interface{}

// Client talks to Azure AD and the Power BI executeQueries endpoint
type Client struct {
	cfg        Config
	HttpClient *http.Client
}

// NewClient creates a new Power BI client
func NewClient(cfg Config) *Client {
	if cfg.AuthURL == "" {
		cfg.AuthURL = "https://login.microsoftonline.com"
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.powerbi.com/v1.0/myorg"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.AuthURL = strings.TrimRight(cfg.AuthURL, "/")
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	return &Client{
		cfg:        cfg,
		HttpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// TokenURL returns the v2.0 token endpoint for a tenant
func (c *Client) TokenURL(tenantID string) string {
	return fmt.Sprintf("%s/%s/oauth2/v2.0/token", c.cfg.AuthURL, url.PathEscape(tenantID))
}

// Authenticate performs the client-credentials grant and returns the bearer token.
// A non-2xx answer becomes an authentication error carrying status and body verbatim.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (string, error) {
	cc := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     c.TokenURL(creds.TenantID),
		Scopes:       []string{creds.Scope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.HttpClient)
	tok, err := cc.Token(ctx)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			return "", apperr.HTTP(apperr.KindAuthentication, "Azure AD rejected the token request",
				rerr.Response.StatusCode, string(rerr.Body))
		}
		return "", apperr.New(apperr.KindAuthentication, "token request failed", err)
	}
	return tok.AccessToken, nil
}

type queryRequest struct {
	Queries            []queryText        `json:"queries"`
	SerializerSettings serializerSettings `json:"serializerSettings"`
}

type queryText struct {
	Query string `json:"query"`
}

type serializerSettings struct {
	IncludeNulls bool `json:"includeNulls"`
}

type queryResponse struct {
	Results []struct {
		Tables []struct {
			Rows []Row `json:"rows"`
		} `json:"tables"`
		Error json.RawMessage `json:"error,omitempty"`
	} `json:"results"`
	Error json.RawMessage `json:"error,omitempty"`
}

// QueryURL returns the executeQueries endpoint for a dataset
func (c *Client) QueryURL(ds Dataset) string {
	return fmt.Sprintf("%s/groups/%s/datasets/%s/executeQueries",
		c.cfg.APIURL, url.PathEscape(ds.GroupID), url.PathEscape(ds.DatasetID))
}

// ExecuteQuery runs the label DAX query and returns the raw rows of the first table
func (c *Client) ExecuteQuery(ctx context.Context, token string, ds Dataset) ([]Row, error) {
	payload, err := json.Marshal(queryRequest{
		Queries:            []queryText{{Query: BuildLabelQuery(ds.Table)}},
		SerializerSettings: serializerSettings{IncludeNulls: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.QueryURL(ds), bytes.NewReader(payload))
	if err != nil {
		return nil, apperr.New(apperr.KindQuery, "failed to build query request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, apperr.New(apperr.KindQuery, "Power BI unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.New(apperr.KindQuery, "failed to read Power BI response", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		e := apperr.HTTP(apperr.KindQuery, fmt.Sprintf(
			"dataset %s or workspace %s not found, or the service principal is not authorized "+
				"(add it as Member or Admin of the Power BI workspace)", ds.DatasetID, ds.GroupID),
			resp.StatusCode, string(body))
		return nil, e.WithCode("dataset_not_found")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.HTTP(apperr.KindQuery, "Power BI query failed", resp.StatusCode, string(body))
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var parsed queryResponse
	if err := dec.Decode(&parsed); err != nil {
		return nil, apperr.New(apperr.KindQuery, "invalid JSON from Power BI", err)
	}

	if hasPayload(parsed.Error) {
		return nil, apperr.New(apperr.KindRemoteQuery, "Power BI returned a query error: "+string(parsed.Error), nil)
	}
	if len(parsed.Results) == 0 {
		return []Row{}, nil
	}
	if hasPayload(parsed.Results[0].Error) {
		return nil, apperr.New(apperr.KindRemoteQuery, "Power BI returned a query error: "+string(parsed.Results[0].Error), nil)
	}
	if len(parsed.Results[0].Tables) == 0 || parsed.Results[0].Tables[0].Rows == nil {
		return []Row{}, nil
	}
	return parsed.Results[0].Tables[0].Rows, nil
}

func hasPayload(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s != "" && s != "null"
}
