package fingerprint

import (
	"github.com/google/uuid"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
)

// pointNamespace is the UUID namespace for derived point IDs. Changing it
// orphans every existing index point, so it is fixed forever.
var pointNamespace = uuid.MustParse("7a9c1e58-4f2b-4d3a-9c6e-2b8f0d1a5e37")

// PointID derives the deterministic vector-index identity of a record.
//
// The ID is a name-based UUID over (tenant, kind, external id), which makes
// repeated upserts land on the same point instead of accumulating
// duplicates, keeps the mapping recomputable without a side table, and
// separates tenants that share an external id. The original external id is
// still stored in the point payload for reverse lookup.
func PointID(tenantID string, kind knowledge.Kind, externalID string) string {
	name := tenantID + "\x1f" + string(kind) + "\x1f" + externalID
	return uuid.NewSHA1(pointNamespace, []byte(name)).String()
}
