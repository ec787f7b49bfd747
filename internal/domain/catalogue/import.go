package catalogue

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type importFile struct {
	Items []importItem `yaml:"items"`
}

type importItem struct {
	SupportItem `yaml:",inline"`
	Caps        []importCap `yaml:"caps"`
}

type importCap struct {
	Tier   Tier   `yaml:"tier"`
	Region Region `yaml:"region"`
	Amount string `yaml:"amount"`
}

// ParseYAML reads a catalogue document of the form
//
//	items:
//	  - code: 01_011_0107_1_1
//	    name: Assistance With Self-Care Activities
//	    unit: hour
//	    caps:
//	      - {tier: standard, region: NSW, amount: "67.56"}
func ParseYAML(r io.Reader) ([]SupportItem, error) {
	var doc importFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decoding catalogue: %w", err)
	}

	items := make([]SupportItem, 0, len(doc.Items))
	for _, in := range doc.Items {
		item := in.SupportItem
		item.Caps = nil
		for _, c := range in.Caps {
			amount, err := decimal.NewFromString(c.Amount)
			if err != nil {
				return nil, fmt.Errorf("%w: cap %q for %s: %v", ErrInvalidInput, c.Amount, item.Code, err)
			}
			tier := c.Tier
			if tier == "" {
				tier = TierStandard
			}
			item.SetCap(tier, c.Region, amount)
		}
		items = append(items, item)
	}
	return items, nil
}
