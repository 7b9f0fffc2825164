// Package config loads the connector's endpoint and pricing configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Operation names as they appear under endpoint.api.endpoints.
const (
	OperationProductData  = "setProductData"
	OperationStockLevel   = "setProductStockLevel"
	OperationProductPrice = "setProductPrice"
	OperationDelete       = "deleteProduct"
	OperationLookupSKU    = "getSkuByJtlId"
)

// Confirmation contracts a deployment can choose from.
const (
	ConfirmArticleNumber = "articleNumber"
	ConfirmTransferID    = "transferId"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxDuration = 30 * time.Second
	DefaultTaxClass    = "1"
)

// ErrInvalid wraps every validation failure reported by Load.
var ErrInvalid = errors.New("invalid connector configuration")

// Operations lists every configurable operation in a stable order.
var Operations = []string{OperationProductData, OperationStockLevel, OperationProductPrice, OperationDelete, OperationLookupSKU}

// Config is the whole connector configuration document.
type Config struct {
	Endpoint Endpoint `yaml:"endpoint"`
	Pricing  Pricing  `yaml:"pricing"`
}

type Endpoint struct {
	API API `yaml:"api"`
}

// API describes the e-commerce endpoint and its per-operation sub-endpoints.
type API struct {
	URL              string               `yaml:"url"`
	Key              string               `yaml:"key"`
	Timeout          time.Duration        `yaml:"timeout"`
	MaxDuration      time.Duration        `yaml:"maxDuration"`
	RateLimit        float64              `yaml:"rateLimit"`
	RateBurst        int                  `yaml:"rateBurst"`
	Confirmation     string               `yaml:"confirmation"`
	IgnoreMissingSKU bool                 `yaml:"ignoreMissingSku"`
	BasicAuth        *BasicAuth           `yaml:"basicAuth,omitempty"`
	Endpoints        map[string]Operation `yaml:"endpoints"`
}

type BasicAuth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Operation is one sub-endpoint. Key and BasicAuth override the API-wide values.
type Operation struct {
	URL       string     `yaml:"url"`
	Method    string     `yaml:"method"`
	Active    *bool      `yaml:"active,omitempty"`
	PriceType string     `yaml:"priceType"`
	Key       string     `yaml:"key"`
	BasicAuth *BasicAuth `yaml:"basicAuth,omitempty"`
}

// IsActive treats an unset flag as active.
func (o Operation) IsActive() bool {
	return o.Active == nil || *o.Active
}

// Pricing holds the customer group and tax class lookup data.
type Pricing struct {
	CustomerGroups  map[string]string `yaml:"customerGroups"`
	PriceTypes      map[string]string `yaml:"priceTypes"`
	RetailPriceType string            `yaml:"retailPriceType"`
	TaxClasses      []TaxClass        `yaml:"taxClasses"`
	DefaultTaxClass string            `yaml:"defaultTaxClass"`
}

type TaxClass struct {
	Rate  float64 `yaml:"rate"`
	Class string  `yaml:"class"`
}

// Load reads and validates the YAML document at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	cfg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses a YAML document, applies defaults and validates the result. Unknown keys
// are rejected.
func Decode(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decode yaml: %w", ErrInvalid, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every unset value with the connector defaults.
func (c *Config) ApplyDefaults() {
	api := &c.Endpoint.API
	api.URL = strings.TrimSpace(api.URL)
	api.Key = strings.TrimSpace(api.Key)
	if api.Timeout <= 0 {
		api.Timeout = DefaultTimeout
	}
	if api.MaxDuration <= 0 {
		api.MaxDuration = DefaultMaxDuration
	}
	if api.RateBurst <= 0 {
		api.RateBurst = 1
	}
	api.Confirmation = strings.TrimSpace(api.Confirmation)
	if api.Confirmation == "" {
		api.Confirmation = ConfirmArticleNumber
	}
	if api.Endpoints == nil {
		api.Endpoints = make(map[string]Operation, len(Operations))
	}
	for name, op := range api.Endpoints {
		op.Method = strings.ToUpper(strings.TrimSpace(op.Method))
		if op.Method == "" {
			op.Method = defaultMethod(name)
		}
		op.URL = strings.TrimSpace(op.URL)
		op.PriceType = strings.TrimSpace(op.PriceType)
		api.Endpoints[name] = op
	}

	p := &c.Pricing
	if len(p.CustomerGroups) == 0 {
		p.CustomerGroups = map[string]string{
			"b1d7b4cbe4d846f0b323a9d840800177": "B2B",
			"c2c6154f05b342d4b2da85e51ec805c9": "B2C",
		}
	}
	if len(p.PriceTypes) == 0 {
		p.PriceTypes = map[string]string{"B2C": "VK21"}
	}
	if len(p.TaxClasses) == 0 {
		p.TaxClasses = []TaxClass{{Rate: 19, Class: "1"}, {Rate: 7, Class: "2"}}
	}
	if strings.TrimSpace(p.DefaultTaxClass) == "" {
		p.DefaultTaxClass = DefaultTaxClass
	}
}

func defaultMethod(operation string) string {
	switch operation {
	case OperationLookupSKU:
		return "GET"
	case OperationDelete:
		return "DELETE"
	default:
		return "POST"
	}
}

// Validate reports every problem at once, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	var problems []error
	api := c.Endpoint.API
	if api.URL == "" {
		problems = append(problems, errors.New("endpoint.api.url is required"))
	} else if u, err := url.Parse(api.URL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, fmt.Errorf("endpoint.api.url %q must be an absolute URL", api.URL))
	}
	if api.Key == "" {
		problems = append(problems, errors.New("endpoint.api.key is required"))
	}
	if api.MaxDuration < api.Timeout {
		problems = append(problems, fmt.Errorf("endpoint.api.maxDuration %s is shorter than timeout %s", api.MaxDuration, api.Timeout))
	}
	if api.RateLimit < 0 {
		problems = append(problems, errors.New("endpoint.api.rateLimit must not be negative"))
	}
	switch api.Confirmation {
	case ConfirmArticleNumber, ConfirmTransferID:
	default:
		problems = append(problems, fmt.Errorf("endpoint.api.confirmation %q must be %q or %q", api.Confirmation, ConfirmArticleNumber, ConfirmTransferID))
	}
	for name, op := range api.Endpoints {
		if !knownOperation(name) {
			problems = append(problems, fmt.Errorf("endpoint.api.endpoints.%s is not a known operation", name))
			continue
		}
		switch op.Method {
		case "GET", "POST", "PUT", "PATCH", "DELETE":
		default:
			problems = append(problems, fmt.Errorf("endpoint.api.endpoints.%s.method %q is not supported", name, op.Method))
		}
		if op.IsActive() && op.URL == "" {
			problems = append(problems, fmt.Errorf("endpoint.api.endpoints.%s.url is required", name))
		}
	}
	for i, tc := range c.Pricing.TaxClasses {
		if strings.TrimSpace(tc.Class) == "" {
			problems = append(problems, fmt.Errorf("pricing.taxClasses[%d].class is required", i))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(problems...))
}

func knownOperation(name string) bool {
	for _, op := range Operations {
		if op == name {
			return true
		}
	}
	return false
}

// String renders the configuration with secrets redacted.
func (c *Config) String() string {
	redacted := *c
	redacted.Endpoint.API = c.Endpoint.API.redacted()
	out, err := yaml.Marshal(redacted)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(out)
}

func (a API) redacted() API {
	a.Key = redact(a.Key)
	a.BasicAuth = a.BasicAuth.redacted()
	endpoints := make(map[string]Operation, len(a.Endpoints))
	for name, op := range a.Endpoints {
		op.Key = redact(op.Key)
		op.BasicAuth = op.BasicAuth.redacted()
		endpoints[name] = op
	}
	a.Endpoints = endpoints
	return a
}

func (b *BasicAuth) redacted() *BasicAuth {
	if b == nil {
		return nil
	}
	return &BasicAuth{Username: b.Username, Password: redact(b.Password)}
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "[redacted]"
}
