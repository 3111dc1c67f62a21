package supabase

import (
	"errors"
	"fmt"

	supa "github.com/supabase-community/supabase-go"
)

// Config captures the settings for reaching the hosted PostgREST endpoint.
type Config struct {
	URL        string
	ServiceKey string
	Schema     string
}

// Connect builds a Supabase client authenticated with the service key. No
// request is issued; use Gateway.Ping to verify reachability.
func Connect(cfg Config) (*supa.Client, error) {
	if cfg.URL == "" || cfg.ServiceKey == "" {
		return nil, errors.New("supabase: url and service key are required")
	}
	var opts *supa.ClientOptions
	if cfg.Schema != "" && cfg.Schema != "public" {
		opts = &supa.ClientOptions{Schema: cfg.Schema}
	}
	client, err := supa.NewClient(cfg.URL, cfg.ServiceKey, opts)
	if err != nil {
		return nil, fmt.Errorf("supabase client: %w", err)
	}
	return client, nil
}
