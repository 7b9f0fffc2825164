package endpoint

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Apurer/product-sync-connector/internal/domains/products/ports"
	"github.com/Apurer/product-sync-connector/internal/platform/config"
)

// Confirmation decides whether a response proves the endpoint applied a request.
type Confirmation interface {
	Check(status int, body map[string]any, articleNumber string) error
}

// ConfirmationFor returns the contract named by the configuration. Unknown names fall back
// to the article number contract.
func ConfirmationFor(name string) Confirmation {
	if name == config.ConfirmTransferID {
		return TransferIDConfirmation{}
	}
	return ArticleNumberConfirmation{}
}

// ArticleNumberConfirmation requires status 200 and an echoed artikelNr equal to the request's.
type ArticleNumberConfirmation struct{}

func (ArticleNumberConfirmation) Check(status int, body map[string]any, articleNumber string) error {
	if status != http.StatusOK {
		return fmt.Errorf("%w: status %d", ports.ErrProtocol, status)
	}
	echoed, ok := stringField(body, "artikelNr")
	if !ok {
		return fmt.Errorf("%w: response does not confirm an article number: %s", ports.ErrProtocol, apiError(body))
	}
	if echoed != articleNumber {
		return fmt.Errorf("%w: response confirms article %q, expected %q", ports.ErrProtocol, echoed, articleNumber)
	}
	return nil
}

// TransferIDConfirmation requires status 200 and a non-empty transferID.
type TransferIDConfirmation struct{}

func (TransferIDConfirmation) Check(status int, body map[string]any, _ string) error {
	if status != http.StatusOK {
		return fmt.Errorf("%w: status %d", ports.ErrProtocol, status)
	}
	if id, ok := stringField(body, "transferID"); !ok || id == "" {
		return fmt.Errorf("%w: response carries no transfer id: %s", ports.ErrProtocol, apiError(body))
	}
	return nil
}

// stringField reads key as a string; numeric article numbers are accepted as well.
func stringField(body map[string]any, key string) (string, bool) {
	if body == nil {
		return "", false
	}
	switch v := body[key].(type) {
	case string:
		return strings.TrimSpace(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	return "", false
}

func apiError(body map[string]any) string {
	if msg, ok := stringField(body, "error"); ok && msg != "" {
		return msg
	}
	return "unknown error"
}
