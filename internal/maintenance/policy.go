package maintenance

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/memory"
)

// Policy tunes the maintenance jobs. Everything has a sane default so the
// YAML file is optional.
type Policy struct {
	// Decay half-life in days, per record kind. Records not accessed for
	// one half-life lose half their importance.
	HalfLifeDays map[string]float64 `yaml:"half_life_days"`

	// PinnedFloor is the importance below which pinned records never decay.
	PinnedFloor float64 `yaml:"pinned_floor"`

	// ConsolidateSimilarity is the minimum cosine similarity for two
	// same-subject records to be merged.
	ConsolidateSimilarity float64 `yaml:"consolidate_similarity"`

	// ResummarizeAfter triggers an off-schedule summary rebuild once a
	// category has accumulated this many new records.
	ResummarizeAfter int `yaml:"resummarize_after"`

	// StaleDays and StaleImportance gate cleanup archival: an unpinned
	// record untouched for StaleDays with importance below StaleImportance
	// is archived.
	StaleDays       int     `yaml:"stale_days"`
	StaleImportance float64 `yaml:"stale_importance"`

	MaxAttempts  int `yaml:"max_attempts"`
	BackoffBase  int `yaml:"backoff_base_seconds"`
	WorkerCount  int `yaml:"worker_count"`
	PollInterval int `yaml:"poll_interval_seconds"`

	// Cron expressions (standard five-field) for the recurring sweeps.
	Schedule map[string]string `yaml:"schedule"`
}

func DefaultPolicy() *Policy {
	return &Policy{
		HalfLifeDays: map[string]float64{
			string(memory.KindEntity):     365,
			string(memory.KindFact):       180,
			string(memory.KindPreference): 365,
			string(memory.KindEvent):      30,
			string(memory.KindGoal):       90,
			string(memory.KindProcedure):  365,
			string(memory.KindDecision):   180,
			string(memory.KindAction):     60,
		},
		PinnedFloor:           0.3,
		ConsolidateSimilarity: 0.85,
		ResummarizeAfter:      10,
		StaleDays:             180,
		StaleImportance:       0.2,
		MaxAttempts:           3,
		BackoffBase:           30,
		WorkerCount:           2,
		PollInterval:          5,
		Schedule: map[string]string{
			JobDecay:       "0 3 * * *",
			JobCleanup:     "15 3 * * *",
			JobConsolidate: "30 3 * * *",
			JobResummarize: "0 4 * * 0",
			JobReindex:     "0 5 1 * *",
			JobBackup:      "0 6 * * *",
		},
	}
}

// LoadPolicy reads a YAML policy file and overlays it on the defaults.
// A missing path returns the defaults unchanged.
func LoadPolicy(path string) (*Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("read policy: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	return p, nil
}

func (p *Policy) halfLife(kind memory.Kind) float64 {
	if d, ok := p.HalfLifeDays[string(kind)]; ok && d > 0 {
		return d
	}
	return 180
}
