package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yankesswang/PE-valuation/pkg/pev/types"
)

// YAMLCatalog loads industries from a YAML file or a directory of them.
//
// A catalog file looks like:
//
//	industries:
//	  - name: Semiconductors
//	    tickers: [NVDA, AMD, {sym: TSM, slug: taiwan-semiconductor-manufacturing}]
//	  - name: Software
//	    industries:
//	      - name: Cloud
//	        tickers: [SNOW, NET]
//
// Nested industry names are joined with "/".
type YAMLCatalog struct{}

// Load expects spec to be a string filepath.
func (YAMLCatalog) Load(ctx context.Context, spec any) ([]types.Industry, error) { //nolint:revive // ctx reserved for future use
	path, ok := spec.(string)
	if !ok {
		return nil, fmt.Errorf("yaml catalog expects filepath string spec")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		var files []string
		err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(d.Name()))
			if ext == ".yaml" || ext == ".yml" {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(files)

		var all []types.Industry
		for _, full := range files {
			data, err := readFile(full)
			if err != nil {
				return nil, err
			}
			inds, err := parseCatalog(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", full, err)
			}
			// Prefix names with the relative path (without extension), using forward slashes.
			rel, err := filepath.Rel(path, full)
			if err != nil {
				rel = filepath.Base(full)
			}
			prefix := filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))
			for i := range inds {
				if strings.TrimSpace(inds[i].Name) == "" {
					inds[i].Name = prefix
				} else if prefix != "" {
					inds[i].Name = prefix + "/" + inds[i].Name
				}
			}
			all = append(all, inds...)
		}
		return all, nil
	}

	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	inds, err := parseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	// An industry without a name takes the file name.
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for i := range inds {
		if strings.TrimSpace(inds[i].Name) == "" {
			inds[i].Name = base
		}
	}
	return inds, nil
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

type catalogNode struct {
	Name       string        `yaml:"name"`
	Tickers    []tickerNode  `yaml:"tickers"`
	Industries []catalogNode `yaml:"industries"`
}

// tickerNode accepts either a bare symbol or a {sym, slug} mapping.
type tickerNode types.Ticker

func (t *tickerNode) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		t.Sym = n.Value
	case yaml.MappingNode:
		var m struct {
			Sym  string `yaml:"sym"`
			Slug string `yaml:"slug"`
		}
		if err := n.Decode(&m); err != nil {
			return err
		}
		t.Sym, t.Slug = m.Sym, m.Slug
	default:
		return fmt.Errorf("line %d: ticker must be a symbol or a {sym, slug} map", n.Line)
	}
	t.Sym = strings.ToUpper(strings.TrimSpace(t.Sym))
	if t.Sym == "" {
		return fmt.Errorf("line %d: empty ticker symbol", n.Line)
	}
	return nil
}

func parseCatalog(data []byte) ([]types.Industry, error) {
	var root struct {
		Industries []catalogNode `yaml:"industries"`
	}
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Industries == nil {
		return nil, fmt.Errorf("invalid yaml: missing 'industries'")
	}

	var out []types.Industry
	var walk func(nodes []catalogNode, path []string)
	walk = func(nodes []catalogNode, path []string) {
		for _, n := range nodes {
			next := path
			if name := strings.TrimSpace(n.Name); name != "" {
				next = append(append([]string(nil), path...), name)
			}
			if len(n.Tickers) > 0 {
				ind := types.Industry{Name: strings.Join(next, "/")}
				for _, t := range n.Tickers {
					ind.Tickers = append(ind.Tickers, types.Ticker(t))
				}
				out = append(out, ind)
			}
			walk(n.Industries, next)
		}
	}
	walk(root.Industries, nil)
	return out, nil
}
