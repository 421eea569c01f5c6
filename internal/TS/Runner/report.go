package Runner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/cyw0ng95/aggoracle/internal/TS/AggOracle"
)

// Report is the on-disk record of one bug. RunSeed populated the tables and
// Seed drove the check; together they replay it.
type Report struct {
	ID                string    `yaml:"id"`
	RunSeed           uint64    `yaml:"run_seed"`
	Seed              uint64    `yaml:"seed"`
	FoundAt           time.Time `yaml:"found_at"`
	Reason            string    `yaml:"reason"`
	Aggregate         string    `yaml:"aggregate"`
	Predicate         string    `yaml:"predicate"`
	Tables            []string  `yaml:"tables"`
	Direct            string    `yaml:"direct"`
	Partitioned       string    `yaml:"partitioned"`
	DirectResult      string    `yaml:"direct_result"`
	PartitionedResult string    `yaml:"partitioned_result"`
}

// Reporter stores bug reports in a directory: <id>.yaml holds the report and
// <id>.sql a script that reproduces the two queries.
type Reporter struct {
	Path string
	now  func() time.Time
}

func NewReporter(path string) *Reporter {
	return &Reporter{Path: path, now: time.Now}
}

// Add writes res, found by the check with the given seed in the run with
// runSeed, and returns the report.
func (r *Reporter) Add(runSeed, seed uint64, res AggOracle.Result) (Report, error) {
	ev := res.Evidence
	rep := Report{
		ID:                uuid.NewString(),
		RunSeed:           runSeed,
		Seed:              seed,
		FoundAt:           r.now().UTC(),
		Reason:            res.Reason,
		Aggregate:         ev.Aggregate,
		Predicate:         ev.Predicate,
		Tables:            ev.Tables,
		Direct:            ev.Direct,
		Partitioned:       ev.Partitioned,
		DirectResult:      ev.DirectResult.String(),
		PartitionedResult: ev.PartitionedResult.String(),
	}

	if err := os.MkdirAll(r.Path, 0755); err != nil {
		return Report{}, fmt.Errorf("create report dir: %w", err)
	}
	data, err := yaml.Marshal(&rep)
	if err != nil {
		return Report{}, fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.Path, rep.ID+".yaml"), data, 0644); err != nil {
		return Report{}, err
	}
	if err := os.WriteFile(filepath.Join(r.Path, rep.ID+".sql"), []byte(ev.Script()), 0644); err != nil {
		return Report{}, err
	}
	return rep, nil
}

// Load reads every report in the directory, oldest first.
func (r *Reporter) Load() ([]Report, error) {
	entries, err := os.ReadDir(r.Path)
	if err != nil {
		return nil, err
	}

	var reports []Report
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.Path, entry.Name()))
		if err != nil {
			return nil, err
		}
		var rep Report
		if err := yaml.Unmarshal(data, &rep); err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		reports = append(reports, rep)
	}
	sort.SliceStable(reports, func(i, j int) bool {
		if !reports[i].FoundAt.Equal(reports[j].FoundAt) {
			return reports[i].FoundAt.Before(reports[j].FoundAt)
		}
		return strings.Compare(reports[i].ID, reports[j].ID) < 0
	})
	return reports, nil
}

// ReplayCommand is the aggoracle invocation that reruns the reported check.
func (rep Report) ReplayCommand() string {
	return fmt.Sprintf("aggoracle check --seed %d --check-seed %d", rep.RunSeed, rep.Seed)
}
