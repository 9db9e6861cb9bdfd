// Package fixtures provides the seed certificate and user tables and the
// catalog of known categories, tags and units.
package fixtures

import (
	"context"
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/starford/certhub/internal/models"
)

//go:embed seed/*.yaml
var seedFS embed.FS

// Seed is the initial data set.
type Seed struct {
	Certificates []models.Certificate `yaml:"certificates"`
	Users        []models.User        `yaml:"users"`
}

// Loader provides the initial data set. It is called once at startup and
// again by the seed watcher.
type Loader interface {
	Load(ctx context.Context) (Seed, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (Seed, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context) (Seed, error) { return f(ctx) }

// Embedded returns a loader for the built-in seed data.
func Embedded() Loader {
	return LoaderFunc(func(ctx context.Context) (Seed, error) {
		if err := ctx.Err(); err != nil {
			return Seed{}, err
		}
		var seed Seed
		for _, name := range []string{"seed/certificates.yaml", "seed/users.yaml"} {
			data, err := seedFS.ReadFile(name)
			if err != nil {
				return Seed{}, fmt.Errorf("fixtures: read %s: %w", name, err)
			}
			if err := decodeInto(&seed, data); err != nil {
				return Seed{}, fmt.Errorf("fixtures: decode %s: %w", name, err)
			}
		}
		return seed, nil
	})
}

// File returns a loader that reads a single YAML document holding
// certificates and, optionally, users. Missing users fall back to the
// embedded user table.
func File(path string) Loader {
	return LoaderFunc(func(ctx context.Context) (Seed, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return Seed{}, fmt.Errorf("fixtures: read %s: %w", path, err)
		}
		var seed Seed
		if err := decodeInto(&seed, data); err != nil {
			return Seed{}, fmt.Errorf("fixtures: decode %s: %w", path, err)
		}
		if len(seed.Users) == 0 {
			base, err := Embedded().Load(ctx)
			if err != nil {
				return Seed{}, err
			}
			seed.Users = base.Users
		}
		return seed, nil
	})
}

// MustLoad loads the embedded seed and panics on error. Intended for tests.
func MustLoad() Seed {
	seed, err := Embedded().Load(context.Background())
	if err != nil {
		panic(err)
	}
	return seed
}

func decodeInto(seed *Seed, data []byte) error {
	var part Seed
	if err := yaml.Unmarshal(data, &part); err != nil {
		return err
	}
	for i := range part.Certificates {
		part.Certificates[i].Normalize()
	}
	if len(part.Certificates) > 0 {
		seed.Certificates = append(seed.Certificates, part.Certificates...)
	}
	if len(part.Users) > 0 {
		seed.Users = append(seed.Users, part.Users...)
	}
	return validate(*seed)
}

func validate(seed Seed) error {
	seen := make(map[string]struct{}, len(seed.Certificates))
	for _, c := range seed.Certificates {
		if c.ID == "" {
			return fmt.Errorf("certificate %q has no id", c.Title)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("duplicate certificate id %q", c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}
