// Package catalog holds the static crop pipelines and badge definitions.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
)

const (
	pipelinesFile = "pipelines.yaml"
	badgesFile    = "badges.yaml"
)

//go:embed data/*.yaml
var embedded embed.FS

type pipelinesDoc struct {
	Crops []struct {
		Name   string                 `yaml:"name"`
		Stages []models.PipelineStage `yaml:"stages"`
	} `yaml:"crops"`
}

type badgesDoc struct {
	Badges []models.Badge `yaml:"badges"`
}

type pipeline struct {
	name   string
	stages []models.PipelineStage
}

// Catalog is read-only after Load and safe for concurrent use.
type Catalog struct {
	pipelines map[string]pipeline
	badges    []models.Badge
	badgeByID map[string]int
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, err
	}
	return Load(sub)
}

// FromDir loads pipelines.yaml and badges.yaml from dir, or the embedded catalog when dir is empty.
func FromDir(dir string) (*Catalog, error) {
	if dir == "" {
		return Default()
	}
	return Load(os.DirFS(dir))
}

// Load parses and validates both catalog files from fsys.
func Load(fsys fs.FS) (*Catalog, error) {
	var pd pipelinesDoc
	if err := decode(fsys, pipelinesFile, &pd); err != nil {
		return nil, err
	}
	var bd badgesDoc
	if err := decode(fsys, badgesFile, &bd); err != nil {
		return nil, err
	}

	c := &Catalog{
		pipelines: make(map[string]pipeline, len(pd.Crops)),
		badgeByID: make(map[string]int, len(bd.Badges)),
	}
	for _, crop := range pd.Crops {
		key := models.CropKey(crop.Name)
		if key == "" {
			return nil, fmt.Errorf("%s: crop with empty name", pipelinesFile)
		}
		if _, dup := c.pipelines[key]; dup {
			return nil, fmt.Errorf("%s: duplicate crop %q", pipelinesFile, crop.Name)
		}
		if len(crop.Stages) == 0 {
			return nil, fmt.Errorf("%s: crop %q has no stages", pipelinesFile, crop.Name)
		}
		for i, st := range crop.Stages {
			if st.ID != i+1 {
				return nil, fmt.Errorf("%s: crop %q stage %d has id %d, ids must run 1..n", pipelinesFile, crop.Name, i+1, st.ID)
			}
			if st.Title == "" || st.Points <= 0 {
				return nil, fmt.Errorf("%s: crop %q stage %d needs a title and positive points", pipelinesFile, crop.Name, st.ID)
			}
		}
		c.pipelines[key] = pipeline{name: crop.Name, stages: crop.Stages}
	}

	for i, b := range bd.Badges {
		if b.ID == "" {
			return nil, fmt.Errorf("%s: badge %d has no id", badgesFile, i)
		}
		if _, dup := c.badgeByID[b.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate badge %q", badgesFile, b.ID)
		}
		if err := validateCriteria(b.Criteria); err != nil {
			return nil, fmt.Errorf("%s: badge %q: %w", badgesFile, b.ID, err)
		}
		c.badgeByID[b.ID] = i
	}
	c.badges = bd.Badges
	return c, nil
}

func decode(fsys fs.FS, name string, out interface{}) error {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

func validateCriteria(c models.BadgeCriteria) error {
	switch c.Type {
	case models.CriteriaLegendStatus:
		return nil
	case models.CriteriaMissionCount, models.CriteriaStreak, models.CriteriaCommunityPosts,
		models.CriteriaCommunityReplies, models.CriteriaLearningModules, models.CriteriaLevel,
		models.CriteriaEcoScoreGain, models.CriteriaQuizScore:
		if c.Threshold <= 0 {
			return fmt.Errorf("threshold must be positive")
		}
		return nil
	default:
		return fmt.Errorf("unknown criteria type %q", c.Type)
	}
}

// Pipeline returns the canonical crop name and a copy of its ordered stages.
func (c *Catalog) Pipeline(crop string) (string, []models.PipelineStage, bool) {
	p, ok := c.pipelines[models.CropKey(crop)]
	if !ok {
		return "", nil, false
	}
	out := make([]models.PipelineStage, len(p.stages))
	copy(out, p.stages)
	return p.name, out, true
}

// Stage looks up the stage with the given 1-based id.
func (c *Catalog) Stage(crop string, id int) (models.PipelineStage, bool) {
	p, ok := c.pipelines[models.CropKey(crop)]
	if !ok || id < 1 || id > len(p.stages) {
		return models.PipelineStage{}, false
	}
	return p.stages[id-1], true
}

// Crops lists the crops that have a pipeline, sorted.
func (c *Catalog) Crops() []string {
	out := make([]string, 0, len(c.pipelines))
	for _, p := range c.pipelines {
		out = append(out, p.name)
	}
	sort.Strings(out)
	return out
}

// Badges returns a copy of all badge definitions in catalog order.
func (c *Catalog) Badges() []models.Badge {
	out := make([]models.Badge, len(c.badges))
	copy(out, c.badges)
	return out
}

func (c *Catalog) Badge(id string) (models.Badge, bool) {
	i, ok := c.badgeByID[id]
	if !ok {
		return models.Badge{}, false
	}
	return c.badges[i], true
}
