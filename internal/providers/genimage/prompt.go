package genimage

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/contentgecko/imagegecko/internal/domain"
)

// BuildPrompt composes the final prompt from the configured or overridden base
// text plus product context so the remote model keeps the subject recognizable.
func BuildPrompt(base string, item *domain.CatalogItem) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "Studio lit product photo with professional lighting and clean background"
	}
	if item == nil {
		return base
	}

	var b strings.Builder
	b.WriteString(base)

	if label := strings.TrimSpace(item.Label); label != "" {
		title := cases.Title(language.English, cases.NoLower).String(label)
		fmt.Fprintf(&b, ". Product: %s", title)
		if sku := strings.TrimSpace(item.SKU); sku != "" {
			fmt.Fprintf(&b, " (SKU %s)", sku)
		}
		b.WriteString(".")
	}

	return b.String()
}
