package gateway

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// configFile is one ordered YAML route fragment (spec §6 "Gateway
// config format").
type configFile struct {
	Order  int           `yaml:"order"`
	Routes []RouteConfig `yaml:"routes"`
}

// RouteConfig is the raw, uncompiled shape read from YAML.
type RouteConfig struct {
	ID             string                 `yaml:"id" validate:"required"`
	URI            string                 `yaml:"uri" validate:"required"`
	Predicates     []PredicateConfig      `yaml:"predicates"`
	Filters        []FilterConfig         `yaml:"filters"`
	Authorizations []AuthorizationConfig  `yaml:"authorizations"`
}

// AuthorizationConfig mirrors spec §3 "Authorization" before compilation.
type AuthorizationConfig struct {
	Method    string   `yaml:"method"`
	HasRoles  []string `yaml:"has_roles"`
	HasGroups []string `yaml:"has_groups"`
}

// PredicateConfig captures one `!host`/`!path`/`!method` tagged YAML
// entry before compilation.
type PredicateConfig struct {
	Kind  string
	Value string
}

func (p *PredicateConfig) UnmarshalYAML(node *yaml.Node) error {
	kind, err := predicateKindForTag(node.Tag)
	if err != nil {
		return err
	}
	p.Kind = kind
	return node.Decode(&p.Value)
}

func predicateKindForTag(tag string) (string, error) {
	switch tag {
	case "!host":
		return "host", nil
	case "!path":
		return "path", nil
	case "!method":
		return "method", nil
	default:
		return "", fmt.Errorf("unknown predicate tag %q", tag)
	}
}

// FilterConfig captures one `!rewrite_path`/`!add_request_header`/
// `!remove_request_header` tagged YAML entry before compilation.
type FilterConfig struct {
	Kind        string
	Source      string // rewrite_path
	Dest        string // rewrite_path
	HeaderName  string // add_request_header
	HeaderValue string // add_request_header
	RemoveName  string // remove_request_header
}

func (f *FilterConfig) UnmarshalYAML(node *yaml.Node) error {
	switch node.Tag {
	case "!rewrite_path":
		var v struct {
			Source string `yaml:"source"`
			Dest   string `yaml:"dest"`
		}
		if err := node.Decode(&v); err != nil {
			return err
		}
		f.Kind, f.Source, f.Dest = "rewrite_path", v.Source, v.Dest
	case "!add_request_header":
		var v struct {
			Key   string `yaml:"key"`
			Value string `yaml:"value"`
		}
		if err := node.Decode(&v); err != nil {
			return err
		}
		f.Kind, f.HeaderName, f.HeaderValue = "add_request_header", v.Key, v.Value
	case "!remove_request_header":
		var v string
		if err := node.Decode(&v); err != nil {
			return err
		}
		f.Kind, f.RemoveName = "remove_request_header", v
	default:
		return fmt.Errorf("unknown filter tag %q", node.Tag)
	}
	return nil
}

// LoadRoutes reads every *.yml/*.yaml fragment in dir, merges them in
// ascending `order` (later files' routes appended after earlier ones,
// spec §6), validates and compiles each route, and panics on any
// fail-fast invariant violation (spec §4.2): duplicate route id,
// invalid regex, or a missing upstream host. Header names and values in
// add/remove_request_header filters are not validated.
func LoadRoutes(dir string) []*Route {
	entries, err := os.ReadDir(dir)
	if err != nil {
		panic(fmt.Sprintf("gateway: cannot read config directory %q: %v", dir, err))
	}

	var files []configFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yml") && !strings.HasSuffix(name, ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			panic(fmt.Sprintf("gateway: cannot read config file %q: %v", name, err))
		}
		var cf configFile
		if err := yaml.Unmarshal(data, &cf); err != nil {
			panic(fmt.Sprintf("gateway: cannot parse config file %q: %v", name, err))
		}
		files = append(files, cf)
	}

	sort.SliceStable(files, func(i, j int) bool { return files[i].Order < files[j].Order })

	seen := make(map[string]bool)
	var routes []*Route
	for _, cf := range files {
		for _, rc := range cf.Routes {
			if err := validate.Struct(rc); err != nil {
				panic(fmt.Sprintf("gateway: invalid route config: %v", err))
			}
			if seen[rc.ID] {
				panic(fmt.Sprintf("gateway: duplicate route id %q", rc.ID))
			}
			seen[rc.ID] = true
			routes = append(routes, compileRoute(rc))
		}
	}

	return routes
}

func errUnknownPredicateKind(kind string) error {
	return fmt.Errorf("unknown predicate kind %q", kind)
}

func errUnknownFilterKind(kind string) error {
	return fmt.Errorf("unknown filter kind %q", kind)
}
