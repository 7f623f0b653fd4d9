package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Bracket Trader Configuration

[instrument]
# Instrument symbol
symbol = "ES"
# Tick size and point value; leave at 0 to take them from the live feed
tick_size = 0.0
point_value = 0.0
# Namespace prefix for drawing tags and order names; must be unique per
# running instance
tag_prefix = "BT1"

[risk]
# Fixed dollar risk per trade
fixed_risk_usd = 200.0
# Hard cap on contracts per trade
max_contracts = 10
# Include commission in per-contract risk
commission_on = true
commission_per_contract = 4.5
# Warn when per-trade risk exceeds this amount
max_risk_warning_usd = 500.0

[bracket]
# Default stop and target distances from entry, in ticks
default_stop_ticks = 20
default_target_ticks = 40
# Break-even stop offset from average entry, in ticks
break_even_offset_ticks = 1
# Trailing stop distance from the market, in ticks
trail_offset_ticks = 20

[feed]
# Feed mode: "ws" or "sim"
mode = "sim"
url = ""

[logging]
level = "info"
console = true
file = true
file_path = ""

[journal]
enabled = true
path = ""

[metrics]
enabled = false
addr = ":9187"
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return fmt.Errorf("config file not found; template created at %s, edit it and re-run", path)
}
