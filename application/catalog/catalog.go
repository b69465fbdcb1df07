package catalog

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"

	"biztrack_e2e/domain/entities"

	"gopkg.in/yaml.v3"
)

//go:embed scenarios/*.yaml
var builtin embed.FS

const fragmentsFile = "fragments.yaml"

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// scenarioDoc is the on-disk form of a scenario
type scenarioDoc struct {
	entities.Scenario `yaml:",inline"`
	Uses              []string `yaml:"uses,omitempty"`
}

// Catalog is an ordered, id-unique set of validated scenarios
type Catalog struct {
	scenarios []*entities.Scenario
	byID      map[string]*entities.Scenario
}

// Load - reads the built-in scenarios plus every *.yaml/*.yml in dirs,
// expanding ${VAR} placeholders from vars
func Load(vars map[string]string, dirs ...string) (*Catalog, error) {
	fsyses := []fs.FS{mustSub(builtin, "scenarios")}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("scenario directory %s: %w", dir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("scenario directory %s: not a directory", dir)
		}
		fsyses = append(fsyses, os.DirFS(dir))
	}

	c := &Catalog{byID: make(map[string]*entities.Scenario)}
	fragments := make(map[string][]entities.Step)

	for _, fsys := range fsyses {
		if err := loadFragments(fsys, fragments); err != nil {
			return nil, err
		}
	}

	for _, fsys := range fsyses {
		names, err := scenarioFiles(fsys)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			data, err := fs.ReadFile(fsys, name)
			if err != nil {
				return nil, err
			}
			scenarios, err := Parse(data, name, fragments, vars)
			if err != nil {
				return nil, err
			}
			for _, sc := range scenarios {
				if err := c.add(sc); err != nil {
					return nil, err
				}
			}
		}
	}

	sort.SliceStable(c.scenarios, func(i, j int) bool {
		return c.scenarios[i].ID < c.scenarios[j].ID
	})
	return c, nil
}

// Parse - decodes one or more YAML documents into validated scenarios
func Parse(data []byte, source string, fragments map[string][]entities.Step, vars map[string]string) ([]*entities.Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var scenarios []*entities.Scenario
	for {
		var doc scenarioDoc
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}

		sc := doc.Scenario
		var steps []entities.Step
		for _, name := range doc.Uses {
			fragment, ok := fragments[name]
			if !ok {
				return nil, fmt.Errorf("%s: scenario %s uses unknown step group %q", source, sc.ID, name)
			}
			steps = append(steps, fragment...)
		}
		sc.Steps = append(steps, sc.Steps...)

		if err := expandScenario(&sc, vars); err != nil {
			return nil, fmt.Errorf("%s: scenario %s: %w", source, sc.ID, err)
		}
		if err := sc.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		scenarios = append(scenarios, &sc)
	}

	if len(scenarios) == 0 {
		return nil, fmt.Errorf("%s: no scenarios", source)
	}
	return scenarios, nil
}

// All returns every scenario ordered by id
func (c *Catalog) All() []*entities.Scenario {
	return append([]*entities.Scenario(nil), c.scenarios...)
}

// Get returns the scenario with the given id
func (c *Catalog) Get(id string) (*entities.Scenario, bool) {
	sc, ok := c.byID[strings.ToUpper(id)]
	return sc, ok
}

// Select - returns scenarios matching any of ids, then filters by every tag.
// No ids selects the whole catalog.
func (c *Catalog) Select(ids, tags []string) ([]*entities.Scenario, error) {
	selected := c.scenarios
	if len(ids) > 0 {
		selected = make([]*entities.Scenario, 0, len(ids))
		seen := make(map[string]bool)
		for _, id := range ids {
			sc, ok := c.Get(id)
			if !ok {
				return nil, fmt.Errorf("unknown scenario %q", id)
			}
			if seen[sc.ID] {
				continue
			}
			seen[sc.ID] = true
			selected = append(selected, sc)
		}
	}

	var out []*entities.Scenario
	for _, sc := range selected {
		if hasAllTags(sc, tags) {
			out = append(out, sc)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no scenario matches the selection")
	}
	return out, nil
}

func (c *Catalog) add(sc *entities.Scenario) error {
	key := strings.ToUpper(sc.ID)
	if _, exists := c.byID[key]; exists {
		return fmt.Errorf("duplicate scenario id %s", sc.ID)
	}
	c.byID[key] = sc
	c.scenarios = append(c.scenarios, sc)
	return nil
}

func hasAllTags(sc *entities.Scenario, tags []string) bool {
	for _, tag := range tags {
		if !sc.HasTag(tag) {
			return false
		}
	}
	return true
}

// loadFragments adds the step groups of fsys to into. Group names are unique
// across all scenario directories.
func loadFragments(fsys fs.FS, into map[string][]entities.Step) error {
	data, err := fs.ReadFile(fsys, fragmentsFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	groups := make(map[string][]entities.Step)
	if err := dec.Decode(&groups); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: %w", fragmentsFile, err)
	}
	for name, steps := range groups {
		if _, exists := into[name]; exists {
			return fmt.Errorf("%s: step group %q is already defined", fragmentsFile, name)
		}
		into[name] = steps
	}
	return nil
}

func scenarioFiles(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == fragmentsFile {
			continue
		}
		switch path.Ext(e.Name()) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// expandScenario substitutes ${VAR} in urls, text, files and the assertion
func expandScenario(sc *entities.Scenario, vars map[string]string) error {
	var err error
	if sc.Start, err = Expand(sc.Start, vars); err != nil {
		return err
	}
	if sc.Assert.Text, err = Expand(sc.Assert.Text, vars); err != nil {
		return err
	}

	steps := make([]entities.Step, len(sc.Steps))
	for i, step := range sc.Steps {
		if step.URL, err = Expand(step.URL, vars); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		if step.Text, err = Expand(step.Text, vars); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		files := make([]string, len(step.Files))
		for j, f := range step.Files {
			if files[j], err = Expand(f, vars); err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
		}
		step.Files = files
		steps[i] = step
	}
	sc.Steps = steps
	return nil
}

// Expand - replaces ${VAR} placeholders; unknown names are an error
func Expand(s string, vars map[string]string) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(s, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		v, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("undefined variable(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
