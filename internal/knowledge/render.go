package knowledge

import (
	"fmt"
	"strings"
)

// ProcessedText builds the natural-language rendering of a record that is
// handed to the embedding provider and stored alongside the vector. The
// rendering is the unit the fingerprint protects: any change to it must be
// reflected in the fingerprint inputs so stale embeddings are replaced.
func (r *SourceRecord) ProcessedText() string {
	var b strings.Builder

	switch r.Kind {
	case KindCompanyMetadata:
		b.WriteString("Company information")
	case KindSupportDocument:
		b.WriteString("Support document")
	default:
		b.WriteString("Business rule")
	}
	if r.Title != "" {
		b.WriteString(": ")
		b.WriteString(r.Title)
	}
	b.WriteString("\n")

	if r.BodyText != "" {
		b.WriteString(r.BodyText)
		b.WriteString("\n")
	}

	if rendered := r.Fields.render(); rendered != "" {
		b.WriteString(rendered)
		b.WriteString("\n")
	}

	if r.IsTemporary {
		fmt.Fprintf(&b, "Valid from %s until %s.\n",
			r.ValidFrom.Format("2006-01-02"), r.ValidUntil.Format("2006-01-02"))
	}

	return strings.TrimRight(b.String(), "\n")
}
