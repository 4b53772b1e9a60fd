// Package demandassdk is a minimal typed client for the demandas HTTP API.
package demandassdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a demandas server.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	UsuarioID   string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "api",
		Timeout:  10 * time.Second,
	}
}

// Demanda mirrors the API demanda model (partial; unknown fields are
// ignored on decode).
type Demanda struct {
	ID            int64  `json:"id"`
	Tag           string `json:"tag"`
	NomeDemanda   string `json:"nomeDemanda"`
	Descricao     string `json:"descricao,omitempty"`
	Categoria     string `json:"categoria"`
	Prioridade    string `json:"prioridade,omitempty"`
	Status        string `json:"status"`
	FuncionarioID int64  `json:"funcionarioId"`
	DataLimite    string `json:"dataLimite"`
	DataCriacao   string `json:"dataCriacao"`
}

// CreateDemandaInput holds the writable creation fields.
type CreateDemandaInput struct {
	Tag           string `json:"tag,omitempty"`
	NomeDemanda   string `json:"nomeDemanda"`
	Descricao     string `json:"descricao,omitempty"`
	Categoria     string `json:"categoria"`
	Prioridade    string `json:"prioridade,omitempty"`
	DataLimite    string `json:"dataLimite"`
	FuncionarioID int64  `json:"funcionarioId"`
}

// ListFilters narrows ListDemandas. Zero values are omitted.
type ListFilters struct {
	Status        string
	FuncionarioID int64
	Categoria     string
	Prioridade    string
	Mes           int
	Ano           int
	Limit         int
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d error=%s", e.StatusCode, e.Message)
}

type demandaEnvelope struct {
	Success bool    `json:"success"`
	Demanda Demanda `json:"demanda"`
}

type demandaListEnvelope struct {
	Success  bool      `json:"success"`
	Total    int       `json:"total"`
	Demandas []Demanda `json:"demandas"`
}

// CreateDemanda submits a new demanda; the server assigns the tag when
// omitted.
func (c *Client) CreateDemanda(ctx context.Context, in CreateDemandaInput) (Demanda, error) {
	var resp demandaEnvelope
	err := c.do(ctx, http.MethodPost, c.apiPath("demandas"), in, &resp)
	return resp.Demanda, err
}

// GetDemanda fetches one demanda by id.
func (c *Client) GetDemanda(ctx context.Context, id int64) (Demanda, error) {
	var resp demandaEnvelope
	err := c.do(ctx, http.MethodGet, c.apiPath(fmt.Sprintf("demandas/%d", id)), nil, &resp)
	return resp.Demanda, err
}

// ListDemandas lists demandas matching the filters.
func (c *Client) ListDemandas(ctx context.Context, f ListFilters) ([]Demanda, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.FuncionarioID != 0 {
		q.Set("funcionarioId", fmt.Sprintf("%d", f.FuncionarioID))
	}
	if f.Categoria != "" {
		q.Set("categoria", f.Categoria)
	}
	if f.Prioridade != "" {
		q.Set("prioridade", f.Prioridade)
	}
	if f.Mes != 0 {
		q.Set("mes", fmt.Sprintf("%d", f.Mes))
	}
	if f.Ano != 0 {
		q.Set("ano", fmt.Sprintf("%d", f.Ano))
	}
	if f.Limit != 0 {
		q.Set("limit", fmt.Sprintf("%d", f.Limit))
	}
	endpoint := c.apiPath("demandas")
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var resp demandaListEnvelope
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Demandas, err
}

// UpdateDemanda applies a partial update; only the fields present in patch
// are touched.
func (c *Client) UpdateDemanda(ctx context.Context, id int64, patch map[string]any) (Demanda, error) {
	var resp demandaEnvelope
	err := c.do(ctx, http.MethodPut, c.apiPath(fmt.Sprintf("demandas/%d", id)), patch, &resp)
	return resp.Demanda, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	reqURL := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.UsuarioID != "":
		req.Header.Set("X-Usuario-Id", c.UsuarioID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		var envelope struct {
			Error string `json:"error"`
		}
		msg := string(b)
		if json.Unmarshal(b, &envelope) == nil && envelope.Error != "" {
			msg = envelope.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) apiPath(p string) string {
	return strings.Trim(c.BasePath, "/") + "/" + strings.TrimLeft(p, "/")
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
