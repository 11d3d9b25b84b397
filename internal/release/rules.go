package release

import (
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"codeberg.org/mutker/wvasim/internal/errors"
)

// Rules decide which files of a tree go into an archive.
//
// IgnoreFilePatterns are regular expressions matched against the start of
// a file's base name, so "README" also excludes "README.md".
type Rules struct {
	IgnoreDirs         []string `yaml:"ignore_dirs"`
	IgnoreFilePatterns []string `yaml:"ignore_file_patterns"`
	PermittedDotFiles  []string `yaml:"permitted_dot_files"`
}

func DefaultRules() Rules {
	return Rules{
		IgnoreDirs: []string{
			"AppDoc", "gradle", "WVA_App_Test", "WVALib_Test",
			"doc", "bin", "gen", "test", "out",
		},
		IgnoreFilePatterns: []string{
			`gradlew(|.bat)`, `.*\.py`, `.*\.pyc`, `REVFILE`,
			`.*\.zip`, `.*\.sh`, `local.properties`, `.*\.gradle`,
			`.*\.iml`, `ant.properties`, `build.xml`, `Makefile`,
			`README`, `javadoc.xml`,
		},
		PermittedDotFiles: []string{".project", ".classpath"},
	}
}

// LoadRules reads a YAML rule file. Keys absent from the file keep their
// default lists.
func LoadRules(path string) (Rules, error) {
	errFactory := errors.New()

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, errFactory.Wrap(ErrInvalidRules, err)
	}

	rules := DefaultRules()
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, errFactory.Wrap(ErrInvalidRules, err)
	}
	if _, err := rules.compile(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

type compiledRules struct {
	dirs     map[string]bool
	patterns []*regexp.Regexp
	dots     map[string]bool
}

func (r Rules) compile() (*compiledRules, error) {
	c := &compiledRules{
		dirs: make(map[string]bool, len(r.IgnoreDirs)),
		dots: make(map[string]bool, len(r.PermittedDotFiles)),
	}
	for _, d := range r.IgnoreDirs {
		c.dirs[d] = true
	}
	for _, d := range r.PermittedDotFiles {
		c.dots[d] = true
	}
	for _, p := range r.IgnoreFilePatterns {
		re, err := regexp.Compile(`^(?:` + p + `)`)
		if err != nil {
			return nil, errors.New().WithData(ErrInvalidRules, struct {
				Pattern string
				Error   string
			}{p, err.Error()})
		}
		c.patterns = append(c.patterns, re)
	}
	return c, nil
}

func (c *compiledRules) ignoredFile(name string) bool {
	for _, re := range c.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
