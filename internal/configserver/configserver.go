package configserver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

var (
	ErrNotFound = errors.New("no configuration found")

	namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
)

type PropertySource struct {
	Name   string         `json:"name"`
	Source map[string]any `json:"source"`
}

type Environment struct {
	Name            string           `json:"name"`
	Profiles        []string         `json:"profiles"`
	PropertySources []PropertySource `json:"propertySources"`
}

// Repository reads {application}.yaml and {application}-{profile}.yaml
// from a directory.
type Repository struct {
	dir string
}

func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

// Find returns the property sources for application and profile, the
// profile-specific one first.
func (r *Repository) Find(application, profile string) (Environment, error) {
	err := validation.Errors{
		"application": validation.Validate(application, validation.Required, validation.Match(namePattern)),
		"profile":     validation.Validate(profile, validation.Required, validation.Match(namePattern)),
	}.Filter()
	if err != nil {
		return Environment{}, err
	}

	env := Environment{
		Name:            application,
		Profiles:        []string{profile},
		PropertySources: []PropertySource{},
	}

	for _, name := range []string{application + "-" + profile, application} {
		source, found, err := r.load(name)
		if err != nil {
			return Environment{}, err
		}
		if found {
			env.PropertySources = append(env.PropertySources, source)
		}
	}

	if len(env.PropertySources) == 0 {
		return Environment{}, fmt.Errorf("%s/%s: %w", application, profile, ErrNotFound)
	}
	return env, nil
}

func (r *Repository) load(name string) (PropertySource, bool, error) {
	path := filepath.Join(r.dir, name+".yaml")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return PropertySource{}, false, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return PropertySource{}, false, fmt.Errorf("reading %s: %w", path, err)
	}

	keys := v.AllKeys()
	sort.Strings(keys)

	source := make(map[string]any, len(keys))
	for _, key := range keys {
		source[key] = v.Get(key)
	}

	return PropertySource{Name: "file:" + path, Source: source}, true, nil
}
