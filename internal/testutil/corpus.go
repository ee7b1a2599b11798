package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// MinimumWageHCL is a three-node chain: a $2 minimum wage rise lifts
// household income by 0.8 and lowers food insecurity by 0.24.
const MinimumWageHCL = `
node "minimum_wage" {
  name    = "State minimum wage"
  scale   = 1
  domains = ["economic"]
  type    = "policy"
  unit    = "USD per hour"
  source  = "DOL"
}

node "household_income" {
  name    = "Household income"
  scale   = 3
  domains = ["economic"]
  type    = "stock"
  unit    = "USD per household per year"
  source  = "ACS"
}

node "food_insecurity" {
  name    = "Food insecurity"
  scale   = 3
  domains = ["nutrition"]
  type    = "stock"
  unit    = "percent of households"
  source  = "CPS-FSS"
}

mechanism "wage_income" {
  source        = "minimum_wage"
  target        = "household_income"
  pathway       = "earnings"
  strength      = 0.4
  evidence_tier = 2
}

mechanism "income_food" {
  source        = "household_income"
  target        = "food_insecurity"
  pathway       = "purchasing power"
  strength      = -0.3
  evidence_tier = 2
}

intervention "raise_wage" {
  delta "minimum_wage" {
    value = 2
    unit  = "USD per hour"
  }
}
`

// DanglingYAML declares a mechanism whose target was never registered.
const DanglingYAML = `
nodes:
  - id: housing_cost
    name: Housing cost burden
    scale: 2
    domains: [housing]
    type: stock
    unit: percent of income
    source: ACS
mechanisms:
  - id: cost_ghost
    source: housing_cost
    target: ghost
    pathway: displacement
    strength: 0.2
    evidence_tier: 3
`

// WriteCorpus writes files (relative name to content) under a fresh
// temporary directory and returns it. Subdirectories are created as needed.
func WriteCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}
