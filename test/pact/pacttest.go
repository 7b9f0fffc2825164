//go:build pact
// +build pact

package pacttest

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

const (
	ProviderName = "shop-endpoint-api"
	ConsumerName = "product-sync-connector"

	StateProductExists = "product ABC123 exists"
	StateHostLinked    = "host id 7 is linked to ABC123"
	StateHostUnknown   = "no product for host id 404"
)

const (
	APIKey         = "pact-key"
	ArticleNumber  = "ABC123"
	LinkedHostID   = int64(7)
	UnknownHostID  = int64(404)
	StockLevelPath = "/artikel/lagerbestand"
	LookupPath     = "/artikel/jtl/{jtlId}"
)

// PactDir returns the workspace-level directory for generated pact files.
func PactDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "pacts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact dir: %v", err)
	}
	return dir
}

// LogDir returns the log output directory for pact-go.
func LogDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "bin", "pact-logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact log dir: %v", err)
	}
	return dir
}

// ConnectorYAML renders a connector configuration pointing at the mock provider.
func ConnectorYAML(baseURL string) string {
	return `
endpoint:
  api:
    url: ` + baseURL + `
    key: ` + APIKey + `
    endpoints:
      setProductStockLevel:
        url: ` + StockLevelPath + `
      getSkuByJtlId:
        url: ` + LookupPath + `
`
}

func projectRoot(t testing.TB) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine caller for pact paths")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}
