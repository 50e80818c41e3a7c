// Package prompt renders the system prompt that frames every conversation.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/epir-jewellery/shop-assistant/backend/internal/model/catalog"
)

// DefaultRole is used when no role description is configured.
const DefaultRole = "Jesteś doradcą klienta w sklepie EPIR Jewellery."

const (
	catalogHeader      = "Oto aktualna lista produktów:"
	emptyCatalogNotice = "Lista produktów jest chwilowo niedostępna. Odpowiadaj ogólnie i zaproponuj kontakt ze sklepem w sprawie konkretnych produktów."
	trendsHeader       = "Najczęściej kupowane produkty:"
)

// BuildSystemPrompt renders the role, one "<title>: <description>" line per
// product in input order, and the optional trend block. It is deterministic
// and never returns an empty string.
func BuildSystemPrompt(products []catalog.Product, role, trends string) string {
	role = strings.TrimSpace(role)
	if role == "" {
		role = DefaultRole
	}

	var builder strings.Builder
	builder.WriteString(role)
	builder.WriteString("\n")

	if len(products) == 0 {
		builder.WriteString(emptyCatalogNotice)
	} else {
		builder.WriteString(catalogHeader)
		for _, product := range products {
			builder.WriteString("\n")
			builder.WriteString(RenderProduct(product))
		}
	}

	if trends = strings.TrimSpace(trends); trends != "" {
		builder.WriteString("\n\n")
		builder.WriteString(trendsHeader)
		builder.WriteString("\n")
		builder.WriteString(trends)
	}

	return builder.String()
}

// RenderProduct formats a product as a single line.
func RenderProduct(product catalog.Product) string {
	return fmt.Sprintf("%s: %s", singleLine(product.Title), singleLine(product.Description))
}

// FormatTrends renders sales counts as "<title>: sold <count>" lines, most sold
// first, ties broken by title.
func FormatTrends(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}

	titles := make([]string, 0, len(counts))
	for title := range counts {
		titles = append(titles, title)
	}
	sort.Slice(titles, func(i, j int) bool {
		if counts[titles[i]] != counts[titles[j]] {
			return counts[titles[i]] > counts[titles[j]]
		}
		return titles[i] < titles[j]
	})

	lines := make([]string, len(titles))
	for i, title := range titles {
		lines[i] = fmt.Sprintf("%s: sold %d", singleLine(title), counts[title])
	}
	return strings.Join(lines, "\n")
}

// singleLine collapses runs of whitespace, newlines included, into one space.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
