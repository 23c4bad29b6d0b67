package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Chart pattern scanner configuration
# Every key is optional; missing keys keep the defaults shown here.

[scan]
# Number of workers sharing the per-candle pass
workers = 1
# SQLite file for stored series and scan runs
# database = "~/.config/chart-patterns/chartpatterns.db"

[doubles]
lookback = 25
# tops, bottoms or both
mode = "tops"
# first peak may exceed the second by at most this ratio
tops_max_ratio = 1.01
# first trough may undercut the second by at most this ratio
bottoms_min_ratio = 0.98
pivot_window = 3

[head_and_shoulders]
lookback = 60
pivot_interval = 10
# must be below pivot_interval
short_pivot_interval = 5
head_ratio_before = 1.0002
head_ratio_after = 1.0002
# bound on |slope| of the neckline
neckline_slope = 0.0001

[inverse_head_and_shoulders]
lookback = 60
pivot_interval = 10
short_pivot_interval = 5
head_ratio_before = 0.98
head_ratio_after = 0.98
neckline_slope = 0.0001

[flag]
lookback = 25
min_points = 3
pivot_window = 3
r_max = 0.9
r_min = 0.9
slope_max = 0.0
slope_min = 0.0
lower_ratio_slope = 0.9
upper_ratio_slope = 1.05

[pennant]
lookback = 20
min_points = 3
pivot_window = 3
r_max = 0.9
r_min = 0.9
slope_max = -0.0001
slope_min = 0.0001
lower_ratio_slope = 0.95
upper_ratio_slope = 1.0

[triangle]
lookback = 25
min_points = 3
pivot_window = 3
r_limit = 0.9
slope_max_limit = 0.00001
slope_min_limit = 0.00001
# ascending, descending or symmetrical
type = "ascending"

[logging]
# debug, info, warn, error
level = "info"
console = true
file = false
# file_path = "~/.config/chart-patterns/logs/chartpatterns.log"
max_size = 100
max_backups = 7
max_age = 30

[ui]
color_enabled = true
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, FileName+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}
