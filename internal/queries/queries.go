package queries

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wonny/leadscore/pkg/database"
)

// maxDepth bounds the directory walk of an override collection
const maxDepth = 3

// Template names used by the pipeline
const (
	LeadsEventsCount = "leads_events_count"
	LeadsMedianValue = "leads_median_value"
	LeadsConversions = "leads_conversions"
	CreateLeadScores = "create_lead_scores"
	InsertLeadScore  = "insert_lead_score"
)

var (
	// ErrMissingParam is returned by Bind when a declared parameter has no value
	ErrMissingParam = database.ErrMissingParam
	// ErrUnknownQuery is returned by Get for a name not in the collection
	ErrUnknownQuery = errors.New("unknown query")

	identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)
)

// Dialects with their own embedded templates. Other drivers use collection/default.
const (
	DefaultDialect   = "default"
	SnowflakeDialect = "snowflake"
)

//go:embed collection
var embedded embed.FS

// Template is one parametrised query document
type Template struct {
	Name        string   `yaml:"-"`
	Desc        string   `yaml:"desc"`
	Params      []string `yaml:"params"`
	Identifiers []string `yaml:"identifiers"` // {name} 치환 (테이블명 등, 바인딩 불가)
	Query       string   `yaml:"query"`
}

// Bind selects exactly the declared parameters from values
func (t Template) Bind(values map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(t.Params))
	for _, name := range t.Params {
		v, ok := values[name]
		if !ok {
			return nil, fmt.Errorf("%s: %w: %s", t.Name, ErrMissingParam, name)
		}
		out[name] = v
	}
	return out, nil
}

// Expand substitutes {identifier} tokens. Values must be plain or schema-qualified names.
func (t Template) Expand(idents map[string]string) (string, error) {
	q := t.Query
	for _, name := range t.Identifiers {
		v, ok := idents[name]
		if !ok {
			return "", fmt.Errorf("%s: missing identifier %s", t.Name, name)
		}
		if !identPattern.MatchString(v) {
			return "", fmt.Errorf("%s: invalid identifier %s=%q", t.Name, name, v)
		}
		q = strings.ReplaceAll(q, "{"+name+"}", v)
	}
	return q, nil
}

// Collection is the set of templates by name
type Collection struct {
	templates map[string]Template
}

// Default returns the embedded collection for postgres and duckdb
func Default() (*Collection, error) {
	return Load("", "")
}

// DialectOf maps a warehouse driver to its template dialect
func DialectOf(driver string) string {
	if strings.EqualFold(driver, SnowflakeDialect) {
		return SnowflakeDialect
	}
	return DefaultDialect
}

// Load returns the embedded collection of the driver's dialect, with templates from dir
// replacing those of the same name. The dialect set overlays the default set.
// dir is read recursively up to three levels deep; empty dir means embedded only.
func Load(driver, dir string) (*Collection, error) {
	c := &Collection{templates: make(map[string]Template)}

	dirs := []string{DefaultDialect}
	if d := DialectOf(driver); d != DefaultDialect {
		dirs = append(dirs, d)
	}
	for _, d := range dirs {
		base, err := fs.Sub(embedded, path.Join("collection", d))
		if err != nil {
			return nil, err
		}
		set, err := readDir(base)
		if err != nil {
			return nil, fmt.Errorf("embedded %s collection: %w", d, err)
		}
		for name, t := range set {
			c.templates[name] = t
		}
	}

	if dir != "" {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("queries dir: %w", err)
		}
		override, err := readDir(os.DirFS(dir))
		if err != nil {
			return nil, fmt.Errorf("queries dir %s: %w", dir, err)
		}
		for name, t := range override {
			c.templates[name] = t
		}
	}

	return c, nil
}

// Get returns a template by name
func (c *Collection) Get(name string) (Template, error) {
	t, ok := c.templates[name]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrUnknownQuery, name)
	}
	return t, nil
}

// Names returns template names in sorted order
func (c *Collection) Names() []string {
	names := make([]string, 0, len(c.templates))
	for name := range c.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func readDir(fsys fs.FS) (map[string]Template, error) {
	out := make(map[string]Template)
	sources := make(map[string]string)

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != "." && strings.Count(p, "/")+1 > maxDepth {
				return fs.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(path.Ext(p))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		name := strings.TrimSuffix(path.Base(p), path.Ext(p))
		if prev, dup := sources[name]; dup {
			return fmt.Errorf("query %s defined twice (%s, %s)", name, prev, p)
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		t, err := parse(name, data)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.FromSlash(p), err)
		}

		out[name] = t
		sources[name] = p
		return nil
	})
	return out, err
}

func parse(name string, data []byte) (Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Template{}, err
	}
	t.Name = name

	if strings.TrimSpace(t.Query) == "" {
		return Template{}, errors.New("query is empty")
	}

	// 선언되지 않은 :param 참조 검사
	declared := make(map[string]any, len(t.Params))
	for _, p := range t.Params {
		declared[p] = nil
	}
	stmt := t.Query
	for _, id := range t.Identifiers {
		stmt = strings.ReplaceAll(stmt, "{"+id+"}", "x")
	}
	if _, _, err := database.Bind(stmt, declared, database.Dollar); err != nil {
		return Template{}, fmt.Errorf("undeclared parameter: %w", err)
	}

	return t, nil
}
