package model

import (
	"context"
	"io"
	"net/url"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

const (
	AuthTypeNone        = "none"
	AuthTypeStaticToken = "static_token"

	LogStderr  = "stderr"
	LogStdout  = "stdout"
	LogDiscard = "discard"

	DefaultEndpoint  = "https://openrouter.ai/api/v1/chat/completions"
	DefaultModel     = "mistralai/mistral-7b-instruct-v0.2:free"
	DefaultAPIKeyEnv = "OPENROUTER_API_KEY"
	DefaultTitle     = "Code Vulnerability Analyzer"
	DefaultMaxSize   = 10 * 1024 * 1024
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Version int     `json:"version" yaml:"version"` // fixed 0 for now
	Remote  Remote  `json:"remote" yaml:"remote"`
	Scan    Scan    `json:"scan" yaml:"scan"`
	History History `json:"history" yaml:"history"`
	Service Service `json:"service" yaml:"service"`
}

// Remote configures the chat-completion endpoint.
type Remote struct {
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	Endpoint  URL      `json:"endpoint" yaml:"endpoint"`
	Model     string   `json:"model" yaml:"model"`
	APIKeyEnv string   `json:"api_key_env" yaml:"api_key_env"` // name of env variable with a credential
	Timeout   Duration `json:"timeout" yaml:"timeout"`
	Referer   string   `json:"referer,omitempty" yaml:"referer,omitempty"`
	Title     string   `json:"title" yaml:"title"`
}

// Scan configures batch scanning of files and directories.
type Scan struct {
	Parallelism int      `json:"parallelism" yaml:"parallelism"`
	MaxFileSize int64    `json:"max_file_size" yaml:"max_file_size"`
	Include     []string `json:"include,omitempty" yaml:"include,omitempty"` // doublestar globs
	Exclude     []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	Secrets     bool     `json:"secrets" yaml:"secrets"`
}

type History struct {
	Enabled    bool        `json:"enabled" yaml:"enabled"`
	Dir        string      `json:"dir,omitempty" yaml:"dir,omitempty"`   // empty => user cache dir
	User       string      `json:"user,omitempty" yaml:"user,omitempty"` // empty => $USER
	Repository *Repository `json:"repository,omitempty" yaml:"repository,omitempty"`
}

// Repository publication settings.
type Repository struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	URL     string `json:"url" yaml:"url"`
	Auth    Auth   `json:"auth" yaml:"auth"` // discriminated union by Auth.Type
}

// Auth is a tagged union: Type "none" or "static_token".
type Auth struct {
	Type  string `json:"type" yaml:"type"`                       // "none" | "static_token"
	Token string `json:"token,omitempty" yaml:"token,omitempty"` // required when Type == "static_token"
}

type Service struct {
	Verbose bool   `json:"verbose" yaml:"verbose"`
	Log     string `json:"log" yaml:"log"` // "stderr"|"stdout"|"discard"|path
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (*Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return nil, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return nil, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return nil, err
	}

	return &out, nil
}

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig(_ context.Context) Config {
	endpoint, _ := url.Parse(DefaultEndpoint)
	return Config{
		Version: 0,
		Remote: Remote{
			Enabled:   true,
			Endpoint:  URL{URL: endpoint},
			Model:     DefaultModel,
			APIKeyEnv: DefaultAPIKeyEnv,
			Timeout:   Duration{Duration: 60 * time.Second},
			Title:     DefaultTitle,
		},
		Scan: Scan{
			Parallelism: 4,
			MaxFileSize: DefaultMaxSize,
		},
		History: History{
			Enabled: true,
		},
		Service: Service{
			Log: LogStderr,
		},
	}
}

// HistoryUser returns the configured identity records are keyed by.
func (h History) HistoryUser() string {
	if h.User != "" {
		return h.User
	}
	if u, ok := os.LookupEnv("USER"); ok && u != "" {
		return u
	}
	return "local"
}
