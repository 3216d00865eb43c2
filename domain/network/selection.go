package network

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
	"github.com/NikolaosSamperis/PlaqueMS-project/pkg/utils"
)

// networkNamespace scopes deterministic remote network titles.
var networkNamespace = uuid.MustParse("6f1c2a4e-9b1d-5c3e-8a7f-2d4b6e8c0a11")

// Selection scopes one analysis request. The key separators |, = and , are
// not allowed inside any criterion.
type Selection struct {
	Cohort          string   `json:"cohort" validate:"required,excludesall=0x7C=0x2C"`
	TissueRegion    string   `json:"tissue_region" validate:"required,excludesall=0x7C=0x2C"`
	ProteomeExtract string   `json:"proteome_extract" validate:"required,excludesall=0x7C=0x2C"`
	ProteinIDs      []string `json:"protein_ids,omitempty" validate:"omitempty,dive,required,excludesall=0x7C=0x2C"`
}

// NewSelection trims the criteria, normalizes and deduplicates the protein
// filter, and validates the result.
func NewSelection(cohort, region, extract string, proteinIDs []string) (Selection, error) {
	s := Selection{
		Cohort:          strings.TrimSpace(cohort),
		TissueRegion:    strings.TrimSpace(region),
		ProteomeExtract: strings.TrimSpace(extract),
	}

	seen := make(map[string]struct{}, len(proteinIDs))
	for _, raw := range proteinIDs {
		id := NormalizeID(raw)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		s.ProteinIDs = append(s.ProteinIDs, id)
	}
	sort.Strings(s.ProteinIDs)

	if err := utils.ValidateStruct(s); err != nil {
		return Selection{}, pkgerrors.NewValidationError("invalid selection: " + err.Error())
	}
	return s, nil
}

// HasProteinFilter reports whether the selection restricts proteins.
func (s Selection) HasProteinFilter() bool {
	return len(s.ProteinIDs) > 0
}

// Key is the canonical selection key under which artifacts and locks are stored.
func (s Selection) Key() string {
	var b strings.Builder
	b.WriteString("cohort=")
	b.WriteString(strings.ToLower(s.Cohort))
	b.WriteString("|region=")
	b.WriteString(strings.ToLower(s.TissueRegion))
	b.WriteString("|extract=")
	b.WriteString(strings.ToLower(s.ProteomeExtract))
	b.WriteString("|proteins=")
	b.WriteString(strings.Join(s.ProteinIDs, ","))
	return b.String()
}

// NetworkTitle derives a stable remote network name from the selection so
// that a retried cycle reuses the same name instead of creating a duplicate.
func (s Selection) NetworkTitle() string {
	return "plaquems-" + uuid.NewSHA1(networkNamespace, []byte(s.Key())).String()
}
